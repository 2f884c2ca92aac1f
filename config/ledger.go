package config

import (
	"fmt"
	"os"
)

// LedgerConfig holds the run ledger configuration: the log artifact location
// and the optional durable run journal.
type LedgerConfig struct {
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty" toml:"log_file,omitempty"` // explicit log file path; derived from LogDir if empty
	LogDir  string `json:"log_dir,omitempty" yaml:"log_dir,omitempty" toml:"log_dir,omitempty"`    // directory for generated log files

	// Journal persists per-stage outcomes for audit and resume.
	Journal *JournalConfig `json:"journal,omitempty" yaml:"journal,omitempty" toml:"journal,omitempty"`
}

// JournalConfig holds bbolt-specific configuration for the run journal.
type JournalConfig struct {
	Path   string      `json:"path" yaml:"path" toml:"path"`                                        // Path to bbolt DB file
	Bucket string      `json:"bucket" yaml:"bucket" toml:"bucket"`                                  // Name of the bucket
	Mode   os.FileMode `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`          // File open mode: "0600", "0644"
	NoSync bool        `json:"no_sync,omitempty" yaml:"no_sync,omitempty" toml:"no_sync,omitempty"` // Disable fsync for better performance
}

// Validate validates the ledger configuration
func (lc *LedgerConfig) Validate() error {
	if lc.Journal != nil {
		return lc.Journal.Validate()
	}
	return nil
}

// ApplyDefaults sets default values if not provided
func (lc *LedgerConfig) ApplyDefaults() {
	if lc.LogDir == "" {
		lc.LogDir = "./.script-logs"
	}
	if lc.Journal != nil {
		lc.Journal.ApplyDefaults()
	}
}

func (jc *JournalConfig) Validate() error {
	if jc.Path == "" {
		return fmt.Errorf("journal path is required")
	}
	if jc.Bucket == "" {
		return fmt.Errorf("journal bucket is required")
	}
	return nil
}

// ApplyDefaults sets default values if not provided for the journal
func (jc *JournalConfig) ApplyDefaults() {
	if jc.Path == "" {
		jc.Path = "./run-journal.db"
	}
	if jc.Bucket == "" {
		jc.Bucket = "runs"
	}
	if jc.Mode == 0 {
		jc.Mode = 0600
	}
	// NoSync remains false by default for data safety
}
