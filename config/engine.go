package config

import "fmt"

// EngineConfig contains the knobs shared by every deletion pass. The worker
// count is the sole concurrency knob exposed to callers; it is fixed for the
// duration of one enumeration's deletion pass.
type EngineConfig struct {
	Workers        int     `json:"workers,omitempty" yaml:"workers,omitempty" toml:"workers,omitempty"`                         // optional: concurrent deletion batches
	BatchSize      int     `json:"batch_size,omitempty" yaml:"batch_size,omitempty" toml:"batch_size,omitempty"`                // optional: descriptors per deletion call
	MaxRetries     int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty" toml:"max_retries,omitempty"`             // optional: retry ceiling per batch on throttling
	BaseBackoffSec float64 `json:"base_backoff_sec,omitempty" yaml:"base_backoff_sec,omitempty" toml:"base_backoff_sec,omitempty"` // optional: base delay for exponential backoff
	MaxRPS         int     `json:"max_rps,omitempty" yaml:"max_rps,omitempty" toml:"max_rps,omitempty"`                         // optional: request ceiling toward the provider (0 = no limit)
	TimeoutSeconds int     `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty" toml:"timeout_seconds,omitempty"` // optional: per-call timeout
}

// ApplyDefaults sets default values if they are not provided
func (c *EngineConfig) ApplyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BaseBackoffSec <= 0 {
		c.BaseBackoffSec = 1.0
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	// MaxRPS leave 0 (means no limit)
}

func (c *EngineConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size cannot be negative")
	}
	if c.BatchSize > 1000 {
		return fmt.Errorf("batch_size cannot exceed 1000 (provider bulk-delete maximum)")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("max_rps cannot be negative")
	}
	return nil
}
