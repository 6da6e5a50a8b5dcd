package config

import (
	"github.com/spf13/viper"

	"github.com/LeJamon/xrplhist/internal/pipeline"
	"github.com/LeJamon/xrplhist/internal/source"
	"github.com/LeJamon/xrplhist/internal/storage"
	"github.com/LeJamon/xrplhist/internal/validator"
)

// setDefaults seeds every key from the per-package defaults, so an empty
// config file yields a runnable daemon.
func setDefaults(v *viper.Viper) {
	src := source.DefaultConfig()
	v.SetDefault("source.url", src.URL)
	v.SetDefault("source.handshake_timeout", src.HandshakeTimeout)
	v.SetDefault("source.request_timeout", src.RequestTimeout)
	v.SetDefault("source.initial_backoff", src.InitialBackoff)
	v.SetDefault("source.max_backoff", src.MaxBackoff)
	v.SetDefault("source.not_closed_retry", src.NotClosedRetry)

	st := storage.DefaultConfig()
	v.SetDefault("storage.backend", st.Backend)
	v.SetDefault("storage.path", st.Path)
	v.SetDefault("storage.batch_size", st.BatchSize)
	v.SetDefault("storage.max_retries", st.MaxRetries)
	v.SetDefault("storage.retry_backoff", st.RetryBackoff)
	v.SetDefault("storage.cache_size", st.CacheSize)
	v.SetDefault("storage.cache_ttl", st.CacheTTL)
	v.SetDefault("storage.compressor", st.Compressor)
	v.SetDefault("storage.compression_level", st.CompressionLevel)
	v.SetDefault("storage.compression_threshold", st.CompressionThreshold)
	v.SetDefault("storage.pool_size", st.PoolSize)
	v.SetDefault("storage.idle_timeout", st.IdleTimeout)
	v.SetDefault("storage.create_if_missing", true)

	pl := pipeline.DefaultConfig()
	v.SetDefault("pipeline.workers", pl.Workers)
	v.SetDefault("pipeline.max_attempts", pl.MaxAttempts)
	v.SetDefault("pipeline.retry_backoff", pl.RetryBackoff)

	val := validator.DefaultConfig()
	v.SetDefault("validator.start_index", val.StartIndex)
	v.SetDefault("validator.tip_interval", val.TipInterval)
	v.SetDefault("validator.recover_backoff", val.RecoverBackoff)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen", "127.0.0.1:9351")
}
