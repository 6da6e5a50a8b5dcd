package storage

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the storage gateway configuration.
type Config struct {
	// Backend selects the key-value backend ("pebble", "leveldb", "memory").
	Backend string `json:"backend" mapstructure:"backend"`

	// Path is the file system location for persistent backends.
	Path string `json:"path" mapstructure:"path"`

	// BatchSize caps the number of rows per backend write.
	BatchSize int `json:"batch_size" mapstructure:"batch_size"`

	// MaxRetries bounds write/read attempts against the backend.
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// RetryBackoff is the initial delay between attempts; it doubles per
	// retry.
	RetryBackoff time.Duration `json:"retry_backoff" mapstructure:"retry_backoff"`

	// Cache configuration for the read-through row cache.
	CacheSize int           `json:"cache_size" mapstructure:"cache_size"`
	CacheTTL  time.Duration `json:"cache_ttl" mapstructure:"cache_ttl"`

	// Compression configuration for stored values.
	Compressor           string `json:"compressor" mapstructure:"compressor"`
	CompressionLevel     int    `json:"compression_level" mapstructure:"compression_level"`
	CompressionThreshold int    `json:"compression_threshold" mapstructure:"compression_threshold"`

	// PoolSize bounds concurrent backend leases; IdleTimeout is how long
	// an unused backend stays open before it is reclaimed.
	PoolSize    int           `json:"pool_size" mapstructure:"pool_size"`
	IdleTimeout time.Duration `json:"idle_timeout" mapstructure:"idle_timeout"`

	CreateIfMissing bool `json:"create_if_missing" mapstructure:"create_if_missing"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Backend:              "pebble",
		Path:                 "./data",
		BatchSize:            100,
		MaxRetries:           3,
		RetryBackoff:         250 * time.Millisecond,
		CacheSize:            4096,
		CacheTTL:             time.Hour,
		Compressor:           "lz4",
		CompressionLevel:     1,
		CompressionThreshold: 128,
		PoolSize:             8,
		IdleTimeout:          5 * time.Minute,
		CreateIfMissing:      true,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return errors.New("backend must be specified")
	}
	if c.Backend != "memory" && c.Path == "" {
		return errors.New("path must be specified for persistent backends")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache_size must not be negative, got %d", c.CacheSize)
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive, got %d", c.PoolSize)
	}
	return nil
}
