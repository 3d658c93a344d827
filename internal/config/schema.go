// Package config provides configuration loading and management for the
// ember agent: defaults, an optional YAML file, and EMBER_* environment
// overrides, resolved in that order.
package config

import (
	"fmt"
	"time"
)

// Config is the root ember-agent configuration.
type Config struct {
	Profile ProfileConfig `yaml:"profile"`
	Sampler SamplerConfig `yaml:"sampler"`
	Report  ReportConfig  `yaml:"report"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ProfileConfig bounds the hotspot profile.
type ProfileConfig struct {
	// Capacity is the maximum number of distinct code units tracked at once.
	Capacity int `yaml:"capacity" env:"EMBER_PROFILE_CAPACITY"`
	// Cumulative keeps counts across report intervals instead of clearing
	// the profile after each report.
	Cumulative bool `yaml:"cumulative" env:"EMBER_PROFILE_CUMULATIVE"`
}

// SamplerConfig controls the built-in runtime sampler.
type SamplerConfig struct {
	Enabled  bool          `yaml:"enabled" env:"EMBER_SAMPLER_ENABLED"`
	Interval time.Duration `yaml:"interval" env:"EMBER_SAMPLER_INTERVAL"`
}

// ReportConfig controls the periodic report cycle.
type ReportConfig struct {
	Interval time.Duration `yaml:"interval" env:"EMBER_REPORT_INTERVAL"`
	// Top is the number of ranked entries per report. Zero renders an empty
	// table but still logs and persists the interval totals.
	Top int `yaml:"top" env:"EMBER_REPORT_TOP"`
	// Output is the report sink: "stdout", "stderr", or a file path
	// (appended to).
	Output string `yaml:"output" env:"EMBER_REPORT_OUTPUT"`
}

// ServerConfig controls the agent HTTP endpoint.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" env:"EMBER_SERVER_ENABLED"`
	Listen  string `yaml:"listen" env:"EMBER_SERVER_LISTEN"`
}

// StorageConfig controls snapshot persistence.
type StorageConfig struct {
	Enabled bool `yaml:"enabled" env:"EMBER_STORAGE_ENABLED"`
	// Path is the DuckDB database file. Empty means in-memory, useful for
	// tests and ephemeral runs.
	Path      string        `yaml:"path" env:"EMBER_STORAGE_PATH"`
	Retention time.Duration `yaml:"retention" env:"EMBER_STORAGE_RETENTION"`
}

// LogConfig controls agent logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"EMBER_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"EMBER_LOG_PRETTY"`
}

// Default returns the default agent configuration.
func Default() *Config {
	return &Config{
		Profile: ProfileConfig{
			Capacity: 1024,
		},
		Sampler: SamplerConfig{
			Enabled:  true,
			Interval: 20 * time.Millisecond,
		},
		Report: ReportConfig{
			Interval: 10 * time.Second,
			Top:      20,
			Output:   "stdout",
		},
		Server: ServerConfig{
			Enabled: true,
			Listen:  "127.0.0.1:6060",
		},
		Storage: StorageConfig{
			Enabled:   false,
			Retention: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Validate checks the configuration for values the agent cannot run with.
func (c *Config) Validate() error {
	if c.Profile.Capacity < 1 {
		return fmt.Errorf("profile.capacity must be at least 1, got %d", c.Profile.Capacity)
	}
	if c.Sampler.Enabled && c.Sampler.Interval <= 0 {
		return fmt.Errorf("sampler.interval must be positive, got %s", c.Sampler.Interval)
	}
	if c.Report.Interval <= 0 {
		return fmt.Errorf("report.interval must be positive, got %s", c.Report.Interval)
	}
	if c.Report.Top < 0 {
		return fmt.Errorf("report.top must not be negative, got %d", c.Report.Top)
	}
	if c.Report.Output == "" {
		return fmt.Errorf("report.output must not be empty")
	}
	if c.Server.Enabled && c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty when the server is enabled")
	}
	if c.Storage.Enabled && c.Storage.Retention <= 0 {
		return fmt.Errorf("storage.retention must be positive, got %s", c.Storage.Retention)
	}
	return nil
}
