package config

import (
	"fmt"
	"os"
	"strconv"
)

// ResourceKind selects which provider adapter a run operates on.
type ResourceKind string

const (
	KindBuckets       ResourceKind = "buckets"        // staged bucket teardown pipeline
	KindLogGroups     ResourceKind = "log-groups"     // CloudWatch log groups
	KindStacks        ResourceKind = "stacks"         // CloudFormation stacks
	KindEventRules    ResourceKind = "event-rules"    // EventBridge rules (targets detached first)
	KindImages        ResourceKind = "images"         // AMIs plus their snapshots
	KindBuilderImages ResourceKind = "builder-images" // Image Builder image build versions
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	Kind     ResourceKind  `json:"kind" yaml:"kind" toml:"kind"`
	Criteria Criteria      `json:"criteria" yaml:"criteria" toml:"criteria"`
	Engine   EngineConfig  `json:"engine" yaml:"engine" toml:"engine"`
	AWS      AWSConfig     `json:"aws" yaml:"aws" toml:"aws"`
	Ledger   LedgerConfig  `json:"ledger" yaml:"ledger" toml:"ledger"`
	Archive  ArchiveConfig `json:"archive" yaml:"archive" toml:"archive"`
	Logger   LoggerConfig  `json:"logger" yaml:"logger" toml:"logger"`

	DryRun      bool `json:"dry_run" yaml:"dry_run" toml:"dry_run"`                // enumerate and report, delete nothing
	Force       bool `json:"force" yaml:"force" toml:"force"`                      // skip interactive confirmation
	ConfirmEach bool `json:"confirm_each" yaml:"confirm_each" toml:"confirm_each"` // prompt per target instead of once per run
	FailFast    bool `json:"fail_fast" yaml:"fail_fast" toml:"fail_fast"`          // stop processing remaining targets after the first failed one

	// LifecycleWaitMinutes pauses the bucket pipeline after lifecycle rules
	// are applied, giving them time to propagate.
	LifecycleWaitMinutes int `json:"lifecycle_wait_minutes,omitempty" yaml:"lifecycle_wait_minutes,omitempty" toml:"lifecycle_wait_minutes,omitempty"`
}

// Validate validates the entire configuration
func (ac *AppConfig) Validate() error {
	switch ac.Kind {
	case KindBuckets, KindLogGroups, KindStacks, KindEventRules, KindImages, KindBuilderImages:
	default:
		return fmt.Errorf("unsupported resource kind: %s", ac.Kind)
	}
	if err := ac.Criteria.Validate(); err != nil {
		return fmt.Errorf("criteria error: %w", err)
	}
	if err := ac.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config error: %w", err)
	}
	if err := ac.AWS.Validate(); err != nil {
		return fmt.Errorf("aws config error: %w", err)
	}
	if err := ac.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger config error: %w", err)
	}
	if err := ac.Archive.Validate(); err != nil {
		return fmt.Errorf("archive config error: %w", err)
	}
	if err := ac.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config error: %w", err)
	}
	if ac.LifecycleWaitMinutes < 0 {
		return fmt.Errorf("lifecycle wait cannot be negative")
	}
	return nil
}

// ApplyDefaults applies default values to all components
func (ac *AppConfig) ApplyDefaults() {
	ac.Engine.ApplyDefaults()
	ac.AWS.ApplyDefaults()
	ac.Ledger.ApplyDefaults()
	ac.Archive.ApplyDefaults()
	ac.Logger.ApplyDefaults()
}

// LoadFromEnv loads configuration from environment variables
// This is a helper to populate config from env vars
func LoadFromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	cfg.Kind = ResourceKind(getEnv("SWEEP_KIND", string(KindBuckets)))
	cfg.DryRun = getEnvBool("DRY_RUN", false)
	cfg.Force = getEnvBool("SWEEP_FORCE", false)
	cfg.ConfirmEach = getEnvBool("SWEEP_CONFIRM_EACH", false)
	cfg.FailFast = getEnvBool("SWEEP_FAIL_FAST", false)
	cfg.LifecycleWaitMinutes = getEnvInt("SWEEP_LIFECYCLE_WAIT_MINUTES", 0)

	// Logger configuration
	cfg.Logger.Level = LogLevel(getEnv("LOG_LEVEL", string(LogLevelInfo)))

	// Engine configuration
	cfg.Engine.Workers = getEnvInt("ENGINE_WORKERS", 5)
	cfg.Engine.BatchSize = getEnvInt("ENGINE_BATCH_SIZE", 1000)
	cfg.Engine.MaxRetries = getEnvInt("ENGINE_MAX_RETRIES", 5)
	cfg.Engine.BaseBackoffSec = getEnvFloat("ENGINE_BASE_BACKOFF_SEC", 1.0)
	cfg.Engine.MaxRPS = getEnvInt("ENGINE_MAX_RPS", 0)
	cfg.Engine.TimeoutSeconds = getEnvInt("ENGINE_TIMEOUT_SECONDS", 30)

	// AWS configuration
	cfg.AWS = AWSConfig{
		Region:          getEnv("AWS_REGION", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Endpoint:        getEnv("AWS_ENDPOINT_URL", ""),
	}

	// Ledger configuration
	cfg.Ledger.LogFile = getEnv("SWEEP_LOG_FILE", "")
	cfg.Ledger.LogDir = getEnv("SWEEP_LOG_DIR", "./.script-logs")
	if path := getEnv("SWEEP_JOURNAL_PATH", ""); path != "" {
		cfg.Ledger.Journal = &JournalConfig{
			Path:   path,
			Bucket: getEnv("SWEEP_JOURNAL_BUCKET", "runs"),
			Mode:   0600,
			NoSync: getEnvBool("SWEEP_JOURNAL_NO_SYNC", false),
		}
	}

	// Archive configuration
	cfg.Archive.Enabled = getEnvBool("ARCHIVE_ENABLED", false)
	if cfg.Archive.Enabled {
		cfg.Archive.FTP = &FTPConfig{
			Host:     getEnv("ARCHIVE_FTP_HOST", ""),
			Port:     getEnvInt("ARCHIVE_FTP_PORT", 21),
			Username: getEnv("ARCHIVE_FTP_USERNAME", ""),
			Password: getEnv("ARCHIVE_FTP_PASSWORD", ""),
			BasePath: getEnv("ARCHIVE_FTP_BASE_PATH", "/"),
			UseTLS:   getEnvBool("ARCHIVE_FTP_USE_TLS", false),
		}
	}

	// Apply defaults
	cfg.ApplyDefaults()

	return cfg, nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
