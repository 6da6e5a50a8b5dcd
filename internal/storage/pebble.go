package storage

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
)

// PebbleBackend is the primary persistent backend: an LSM store tuned for
// heavy sequential writes and point lookups by rowkey.
type PebbleBackend struct {
	db     *pebble.DB
	config *Config
	open   int64
}

// NewPebbleBackend creates a new PebbleDB backend.
func NewPebbleBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return &PebbleBackend{config: config}, nil
}

// Name returns the name of this backend.
func (p *PebbleBackend) Name() string {
	return fmt.Sprintf("pebble(%s)", p.config.Path)
}

// Open opens the backend for use.
func (p *PebbleBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&p.open, 0, 1) {
		return fmt.Errorf("backend already open")
	}

	if createIfMissing {
		if err := os.MkdirAll(p.config.Path, 0o755); err != nil {
			atomic.StoreInt64(&p.open, 0)
			return fmt.Errorf("failed to create directory %s: %w", p.config.Path, err)
		}
	}

	db, err := pebble.Open(p.config.Path, p.buildOptions())
	if err != nil {
		atomic.StoreInt64(&p.open, 0)
		return fmt.Errorf("failed to open pebble at %s: %w", p.config.Path, err)
	}
	p.db = db
	return nil
}

// buildOptions tunes pebble for the ingestion workload: bulk batched
// writes, point lookups by rowkey and long range scans.
func (p *PebbleBackend) buildOptions() *pebble.Options {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(256 << 20),
		MaxOpenFiles:                4096,
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
		MaxConcurrentCompactions: func() int {
			return runtime.NumCPU()
		},
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 20,
		LBaseMaxBytes:         256 << 20,
		Levels:                make([]pebble.LevelOptions, 7),
	}

	for i := range opts.Levels {
		opts.Levels[i] = pebble.LevelOptions{
			BlockSize:      32 << 10,
			IndexBlockSize: 256 << 10,
			FilterPolicy:   bloom.FilterPolicy(10),
			FilterType:     pebble.TableFilter,
			TargetFileSize: int64(8<<20) << uint(i),
			// Values are already framed by the gateway's compressor.
			Compression: pebble.NoCompression,
		}
		if opts.Levels[i].TargetFileSize > 256<<20 {
			opts.Levels[i].TargetFileSize = 256 << 20
		}
	}
	return opts
}

// Close closes the backend and releases resources.
func (p *PebbleBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&p.open, 1, 0) {
		return nil
	}

	var err error
	if p.db != nil {
		if flushErr := p.db.Flush(); flushErr != nil {
			err = flushErr
		}
		if closeErr := p.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		p.db = nil
	}
	return err
}

// IsOpen reports whether the backend is currently open.
func (p *PebbleBackend) IsOpen() bool {
	return atomic.LoadInt64(&p.open) != 0
}

// Get retrieves one value.
func (p *PebbleBackend) Get(table Table, key []byte) ([]byte, error) {
	if !p.IsOpen() {
		return nil, ErrClosed
	}

	value, closer, err := p.db.Get(tableKey(table, key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, ErrRowNotFound
		}
		return nil, fmt.Errorf("pebble get: %w", err)
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// PutBatch writes all pairs in one pebble batch.
func (p *PebbleBackend) PutBatch(table Table, kvs []KV) error {
	if !p.IsOpen() {
		return ErrClosed
	}
	if len(kvs) == 0 {
		return nil
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	for _, kv := range kvs {
		if err := batch.Set(tableKey(table, kv.Key), kv.Value, nil); err != nil {
			return fmt.Errorf("pebble batch set: %w", err)
		}
	}

	// The WAL covers durability; Sync() is available for explicit flushes.
	if err := batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("pebble commit: %w", err)
	}
	return nil
}

// Scan visits keys in [start, stop) in order.
func (p *PebbleBackend) Scan(table Table, start, stop []byte, descending bool, fn func(key, value []byte) error) error {
	if !p.IsOpen() {
		return ErrClosed
	}

	lower, upper := tableBounds(table, start, stop)
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return fmt.Errorf("pebble iterator: %w", err)
	}
	defer iter.Close()

	advance := iter.Next
	valid := iter.First()
	if descending {
		advance = iter.Prev
		valid = iter.Last()
	}

	for ; valid; valid = advance() {
		if err := fn(stripTable(table, iter.Key()), iter.Value()); err != nil {
			if err == errStopScan {
				return nil
			}
			return err
		}
	}
	return iter.Error()
}

// Sync forces pending writes to be flushed.
func (p *PebbleBackend) Sync() error {
	if !p.IsOpen() {
		return ErrClosed
	}
	return p.db.Flush()
}
