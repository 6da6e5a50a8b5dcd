// Package config loads the daemon configuration from defaults, an
// optional TOML file and XRPLHIST_ environment variables, in that
// priority order.
package config

import (
	"fmt"

	"github.com/LeJamon/xrplhist/internal/pipeline"
	"github.com/LeJamon/xrplhist/internal/source"
	"github.com/LeJamon/xrplhist/internal/storage"
	"github.com/LeJamon/xrplhist/internal/validator"
)

// Config is the complete daemon configuration.
type Config struct {
	Source    source.Config    `toml:"source" mapstructure:"source"`
	Storage   storage.Config   `toml:"storage" mapstructure:"storage"`
	Pipeline  pipeline.Config  `toml:"pipeline" mapstructure:"pipeline"`
	Validator validator.Config `toml:"validator" mapstructure:"validator"`
	Log       LogConfig        `toml:"log" mapstructure:"log"`
	Metrics   MetricsConfig    `toml:"metrics" mapstructure:"metrics"`

	configPath string
}

// LogConfig controls structured logging output.
type LogConfig struct {
	// Level is the minimum level emitted: debug, info, warn or error.
	Level string `toml:"level" mapstructure:"level"`

	// Format is "json" or "console".
	Format string `toml:"format" mapstructure:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics HTTP listener on.
	Enabled bool `toml:"enabled" mapstructure:"enabled"`

	// Listen is the host:port the metrics server binds to.
	Listen string `toml:"listen" mapstructure:"listen"`
}

// Path returns the config file the configuration was loaded from, empty
// when only defaults and environment were used.
func (c *Config) Path() string { return c.configPath }

// Validate checks the configuration for inconsistencies.
func Validate(c *Config) error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics: enabled without a listen address")
	}
	return nil
}
