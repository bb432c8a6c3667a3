package config

import (
	"runtime"

	"github.com/yamlr/yamlr/internal/models"
)

// Config holds all configuration for a scan, fully resolved: flag values
// layered over .yamlr.yaml layered over defaults.
type Config struct {
	// Threshold is the minimum heuristic confidence for a repair to be
	// applied automatically. Repairs below it are reported only.
	Threshold float64 `yaml:"threshold"`

	// IgnoreFiles are glob patterns excluded from the crawl.
	IgnoreFiles []string `yaml:"ignoreFiles"`

	// BackupKeep is how many rotated backups to keep per healed file.
	// Zero disables backups.
	BackupKeep int `yaml:"backupKeep"`

	// Workers is the number of files processed concurrently.
	Workers int `yaml:"workers"`

	// TargetVersion is the Kubernetes version deprecations are judged
	// against.
	TargetVersion string `yaml:"targetVersion"`

	// DefaultImageTag, when set, lets the latest-tag rule pin images.
	DefaultImageTag string `yaml:"defaultImageTag"`

	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string `yaml:"logLevel"`

	// TracingEnabled indicates whether OpenTelemetry tracing is enabled.
	TracingEnabled bool `yaml:"tracingEnabled"`

	// TracingEndpoint is the OTLP gRPC endpoint for trace export.
	TracingEndpoint string `yaml:"tracingEndpoint"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Threshold:     0.7,
		BackupKeep:    3,
		Workers:       runtime.NumCPU(),
		TargetVersion: "1.29",
		LogLevel:      "info",
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return models.NewConfigError("threshold must be between 0 and 1, got %v", c.Threshold)
	}
	if c.BackupKeep < 0 {
		return models.NewConfigError("backupKeep must not be negative, got %d", c.BackupKeep)
	}
	if c.Workers < 1 {
		return models.NewConfigError("workers must be at least 1, got %d", c.Workers)
	}
	if c.TargetVersion == "" {
		return models.NewConfigError("targetVersion must not be empty")
	}
	if c.TracingEnabled && c.TracingEndpoint == "" {
		return models.NewConfigError("tracingEndpoint must be set when tracing is enabled")
	}
	return nil
}
