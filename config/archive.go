package config

import "fmt"

// ArchiveConfig holds the optional remote archive for finished log
// artifacts. When nil or disabled, artifacts stay local.
type ArchiveConfig struct {
	Enabled bool `json:"enabled,omitempty" yaml:"enabled,omitempty" toml:"enabled,omitempty"`

	TimeoutSeconds int `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" toml:"timeout_seconds,omitempty"` // optional: operation timeout in seconds
	MaxRetries     int `json:"max_retries,omitempty" yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`             // optional: maximum number of upload retries

	FTP *FTPConfig `json:"ftp,omitempty" yaml:"ftp,omitempty" toml:"ftp,omitempty"`
}

// FTPConfig holds FTP-specific configuration
type FTPConfig struct {
	Host     string `json:"host" yaml:"host" toml:"host"`                                           // FTP server host
	Port     int    `json:"port" yaml:"port" toml:"port"`                                           // FTP server port (default: 21)
	Username string `json:"username" yaml:"username" toml:"username"`                               // FTP username
	Password string `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty"` // FTP password
	BasePath string `json:"base_path,omitempty" yaml:"base_path,omitempty" toml:"base_path"`        // Base path on FTP server (optional)
	UseTLS   bool   `json:"use_tls,omitempty" yaml:"use_tls,omitempty" toml:"use_tls,omitempty"`    // Use FTPS (FTP over TLS)
}

// Validate ensures the archive configuration is usable when enabled
func (ac *ArchiveConfig) Validate() error {
	if !ac.Enabled {
		return nil
	}
	if ac.FTP == nil {
		return fmt.Errorf("ftp configuration is required when the archive is enabled")
	}
	return ac.FTP.Validate()
}

// ApplyDefaults sets default values for archive configuration
func (ac *ArchiveConfig) ApplyDefaults() {
	if ac.TimeoutSeconds <= 0 {
		ac.TimeoutSeconds = 30
	}
	if ac.MaxRetries <= 0 {
		ac.MaxRetries = 3
	}
	if ac.FTP != nil {
		ac.FTP.ApplyDefaults()
	}
}

// Validate validates FTP configuration
func (fc *FTPConfig) Validate() error {
	if fc.Host == "" {
		return fmt.Errorf("ftp host is required")
	}
	if fc.Port <= 0 || fc.Port > 65535 {
		return fmt.Errorf("ftp port must be between 1 and 65535")
	}
	if fc.Username == "" {
		return fmt.Errorf("ftp username is required")
	}
	// Password can be empty for anonymous FTP
	return nil
}

// ApplyDefaults sets default values for FTP configuration
func (fc *FTPConfig) ApplyDefaults() {
	if fc.Port == 0 {
		fc.Port = 21 // Default FTP port
	}
	if fc.BasePath == "" {
		fc.BasePath = "/" // Default to root
	}
}
