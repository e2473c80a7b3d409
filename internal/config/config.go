// Package config loads the workbench configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Resubmit policies for re-running a channel id while a prior evaluation is
// still in flight.
const (
	// PolicyReject refuses the new submission with a busy error.
	PolicyReject = "reject"
	// PolicyPreempt cancels the running worker and starts the new one.
	PolicyPreempt = "preempt"
)

// ValidPolicies defines the recognized resubmit policies.
var ValidPolicies = []string{PolicyReject, PolicyPreempt}

// Config holds the workbench settings.
type Config struct {
	// ResubmitPolicy controls re-submission of an in-flight channel id.
	ResubmitPolicy string `yaml:"resubmit_policy"`

	// ProgressCadence overrides the samples-between-progress-frames
	// derivation. 0 derives one frame per 1% of N.
	ProgressCadence int `yaml:"progress_cadence"`

	// StoragePath is the SQLite database path for persisted computed
	// channels. Empty disables persistence.
	StoragePath string `yaml:"storage_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		ResubmitPolicy: PolicyReject,
		LogLevel:       "info",
	}
}

// Load reads and validates a YAML configuration file. Fields absent from
// the file keep their defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values against their recognized sets.
func (c Config) Validate() error {
	if !isValidPolicy(c.ResubmitPolicy) {
		return fmt.Errorf("invalid resubmit_policy %q: must be one of %v", c.ResubmitPolicy, ValidPolicies)
	}
	if c.ProgressCadence < 0 {
		return fmt.Errorf("progress_cadence must be >= 0, got %d", c.ProgressCadence)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	return nil
}

func isValidPolicy(p string) bool {
	for _, v := range ValidPolicies {
		if p == v {
			return true
		}
	}
	return false
}
