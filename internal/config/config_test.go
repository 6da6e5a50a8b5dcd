package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "wss://s2.ripple.com:443", cfg.Source.URL)
	assert.Equal(t, "pebble", cfg.Storage.Backend)
	assert.Equal(t, 100, cfg.Storage.BatchSize)
	assert.Equal(t, "lz4", cfg.Storage.Compressor)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, uint32(1), cfg.Validator.StartIndex)
	assert.Equal(t, 60*time.Second, cfg.Validator.TipInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "xrplhist.toml")
	content := `
[source]
url = "wss://xrpl.example.net:51233"
request_timeout = "10s"

[storage]
backend = "leveldb"
path = "/var/lib/xrplhist"

[pipeline]
workers = 16

[validator]
start_index = 32570

[log]
level = "debug"
format = "console"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://xrpl.example.net:51233", cfg.Source.URL)
	assert.Equal(t, 10*time.Second, cfg.Source.RequestTimeout)
	assert.Equal(t, "leveldb", cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/xrplhist", cfg.Storage.Path)
	assert.Equal(t, 16, cfg.Pipeline.Workers)
	assert.Equal(t, uint32(32570), cfg.Validator.StartIndex)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, path, cfg.Path())

	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, "lz4", cfg.Storage.Compressor)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("XRPLHIST_STORAGE_BACKEND", "memory")
	t.Setenv("XRPLHIST_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "[log]\nlevel = \"chatty\"\n"},
		{"bad log format", "[log]\nformat = \"xml\"\n"},
		{"missing storage path", "[storage]\npath = \"\"\n"},
		{"zero batch size", "[storage]\nbatch_size = 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "bad.toml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
