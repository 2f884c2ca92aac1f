package config

import "fmt"

// AWSConfig holds the client configuration shared by all service adapters.
type AWSConfig struct {
	Region          string `json:"region" yaml:"region" toml:"region"`
	AccessKeyID     string `json:"access_key_id,omitempty" yaml:"access_key_id,omitempty" toml:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty" yaml:"secret_access_key,omitempty" toml:"secret_access_key,omitempty"`
	Endpoint        string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" toml:"endpoint,omitempty"` // For S3-compatible services and local stacks
}

// Validate validates the AWS client configuration. Static credentials are
// optional: with none set, the default provider chain is used.
func (ac *AWSConfig) Validate() error {
	if (ac.AccessKeyID == "") != (ac.SecretAccessKey == "") {
		return fmt.Errorf("access key and secret key must be provided together")
	}
	return nil
}

// ApplyDefaults sets default values if they are not provided
func (ac *AWSConfig) ApplyDefaults() {
	if ac.Region == "" {
		ac.Region = "us-east-1"
	}
}
