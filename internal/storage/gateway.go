package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/LeJamon/xrplhist/internal/storage/compression"
)

// gateway implements Gateway over a registered backend.
type gateway struct {
	cfg  *Config
	pool *leasePool
	comp compression.Compressor
	log  *zap.Logger

	cache *lru.LRU[string, Row]

	stats struct {
		reads       uint64
		writes      uint64
		cacheHits   uint64
		cacheMisses uint64
		retries     uint64
	}
}

// Open builds a gateway from the configuration: it creates the backend,
// opens it and wires the compressor, cache and lease pool.
func Open(cfg *Config, log *zap.Logger) (Gateway, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("storage config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	backend, err := CreateBackend(cfg.Backend, cfg)
	if err != nil {
		return nil, err
	}
	if err := backend.Open(cfg.CreateIfMissing); err != nil {
		return nil, err
	}

	comp, err := compression.Get(cfg.Compressor)
	if err != nil {
		backend.Close()
		return nil, err
	}

	g := &gateway{
		cfg:  cfg,
		pool: newLeasePool(backend, cfg.PoolSize, cfg.IdleTimeout),
		comp: comp,
		log:  log.Named("storage"),
	}
	if cfg.CacheSize > 0 {
		g.cache = lru.NewLRU[string, Row](cfg.CacheSize, nil, cfg.CacheTTL)
	}

	g.log.Info("storage gateway open",
		zap.String("backend", backend.Name()),
		zap.String("compressor", comp.Name()),
		zap.Int("batch_size", cfg.BatchSize))
	return g, nil
}

func cacheKey(table Table, key string) string {
	return string(table) + "\x00" + key
}

// PutRows upserts rows, chunked to the configured batch size. Each chunk
// is retried independently so one bad chunk never rolls back its siblings.
func (g *gateway) PutRows(ctx context.Context, table Table, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	for _, row := range rows {
		if row.Key == "" {
			return ErrEmptyKey
		}
	}

	for start := 0; start < len(rows); start += g.cfg.BatchSize {
		end := start + g.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := g.putChunk(ctx, table, rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (g *gateway) putChunk(ctx context.Context, table Table, rows []Row) error {
	kvs := make([]KV, 0, len(rows))
	for _, row := range rows {
		value, err := frameValue(row.Columns, g.comp, g.cfg.CompressionThreshold, g.cfg.CompressionLevel)
		if err != nil {
			return fmt.Errorf("table %s row %s: %w", table, row.Key, err)
		}
		kvs = append(kvs, KV{Key: []byte(row.Key), Value: value})
	}

	err := g.withRetry(ctx, "put_rows", func(backend Backend) error {
		return backend.PutBatch(table, kvs)
	})
	if err != nil {
		return err
	}

	atomic.AddUint64(&g.stats.writes, uint64(len(rows)))
	if g.cache != nil {
		for _, row := range rows {
			g.cache.Add(cacheKey(table, row.Key), row)
		}
	}
	return nil
}

// GetRow fetches one row, serving repeats from the read cache.
func (g *gateway) GetRow(ctx context.Context, table Table, key string) (Row, error) {
	if key == "" {
		return Row{}, ErrEmptyKey
	}

	atomic.AddUint64(&g.stats.reads, 1)
	if g.cache != nil {
		if row, ok := g.cache.Get(cacheKey(table, key)); ok {
			atomic.AddUint64(&g.stats.cacheHits, 1)
			return row, nil
		}
		atomic.AddUint64(&g.stats.cacheMisses, 1)
	}

	var value []byte
	err := g.withRetry(ctx, "get_row", func(backend Backend) error {
		var err error
		value, err = backend.Get(table, []byte(key))
		return err
	})
	if err != nil {
		return Row{}, err
	}

	columns, err := unframeValue(value)
	if err != nil {
		return Row{}, fmt.Errorf("table %s row %s: %w", table, key, err)
	}

	row := Row{Key: key, Columns: columns}
	if g.cache != nil {
		g.cache.Add(cacheKey(table, key), row)
	}
	return row, nil
}

// Scan returns rows in rowkey order. Results bypass the cache; scans are
// dominated by cold history reads.
func (g *gateway) Scan(ctx context.Context, table Table, opts ScanOptions) ([]Row, error) {
	var rows []Row
	err := g.withRetry(ctx, "scan", func(backend Backend) error {
		rows = rows[:0]
		return backend.Scan(table, []byte(opts.Start), []byte(opts.Stop), opts.Descending,
			func(key, value []byte) error {
				columns, err := unframeValue(value)
				if err != nil {
					return fmt.Errorf("table %s row %s: %w", table, key, err)
				}
				rows = append(rows, Row{Key: string(key), Columns: columns})
				if opts.Limit > 0 && len(rows) >= opts.Limit {
					return errStopScan
				}
				return nil
			})
	})
	if err != nil {
		return nil, err
	}
	atomic.AddUint64(&g.stats.reads, uint64(len(rows)))
	return rows, nil
}

// withRetry runs op under a backend lease, retrying with doubling backoff
// up to the configured attempt budget. Not-found and decode errors are
// never retried.
func (g *gateway) withRetry(ctx context.Context, name string, op func(Backend) error) error {
	backoff := g.cfg.RetryBackoff
	var err error

	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		if err = g.pool.acquire(ctx); err != nil {
			return err
		}
		err = op(g.pool.backend)
		g.pool.release(err)

		if err == nil || err == ErrRowNotFound || err == ErrClosed {
			return err
		}
		if attempt == g.cfg.MaxRetries {
			break
		}

		atomic.AddUint64(&g.stats.retries, 1)
		g.log.Warn("storage operation failed, retrying",
			zap.String("op", name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, g.cfg.MaxRetries, err)
}

// Stats returns cumulative gateway counters.
func (g *gateway) Stats() Statistics {
	return Statistics{
		Reads:       atomic.LoadUint64(&g.stats.reads),
		Writes:      atomic.LoadUint64(&g.stats.writes),
		CacheHits:   atomic.LoadUint64(&g.stats.cacheHits),
		CacheMisses: atomic.LoadUint64(&g.stats.cacheMisses),
		Retries:     atomic.LoadUint64(&g.stats.retries),
		BackendName: g.pool.backend.Name(),
	}
}

// Close flushes and shuts down the backend.
func (g *gateway) Close() error {
	return g.pool.close()
}
