package storage

import (
	"fmt"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBBackend is a secondary persistent backend on goleveldb, kept for
// smaller deployments where pebble's memory footprint is unwelcome.
type LevelDBBackend struct {
	db     *leveldb.DB
	config *Config
	open   int64
}

// NewLevelDBBackend creates a new goleveldb backend.
func NewLevelDBBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}
	return &LevelDBBackend{config: config}, nil
}

// Name returns the name of this backend.
func (l *LevelDBBackend) Name() string {
	return fmt.Sprintf("leveldb(%s)", l.config.Path)
}

// Open opens the backend for use.
func (l *LevelDBBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&l.open, 0, 1) {
		return fmt.Errorf("backend already open")
	}

	db, err := leveldb.OpenFile(l.config.Path, &opt.Options{
		ErrorIfMissing: !createIfMissing,
		// Values are already framed by the gateway's compressor.
		Compression: opt.NoCompression,
	})
	if err != nil {
		atomic.StoreInt64(&l.open, 0)
		return fmt.Errorf("failed to open leveldb at %s: %w", l.config.Path, err)
	}
	l.db = db
	return nil
}

// Close closes the backend and releases resources.
func (l *LevelDBBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&l.open, 1, 0) {
		return nil
	}
	if l.db != nil {
		err := l.db.Close()
		l.db = nil
		return err
	}
	return nil
}

// IsOpen reports whether the backend is currently open.
func (l *LevelDBBackend) IsOpen() bool {
	return atomic.LoadInt64(&l.open) != 0
}

// Get retrieves one value.
func (l *LevelDBBackend) Get(table Table, key []byte) ([]byte, error) {
	if !l.IsOpen() {
		return nil, ErrClosed
	}

	value, err := l.db.Get(tableKey(table, key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrRowNotFound
		}
		return nil, fmt.Errorf("leveldb get: %w", err)
	}
	return value, nil
}

// PutBatch writes all pairs in one leveldb batch.
func (l *LevelDBBackend) PutBatch(table Table, kvs []KV) error {
	if !l.IsOpen() {
		return ErrClosed
	}
	if len(kvs) == 0 {
		return nil
	}

	batch := new(leveldb.Batch)
	for _, kv := range kvs {
		batch.Put(tableKey(table, kv.Key), kv.Value)
	}
	if err := l.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb write: %w", err)
	}
	return nil
}

// Scan visits keys in [start, stop) in order.
func (l *LevelDBBackend) Scan(table Table, start, stop []byte, descending bool, fn func(key, value []byte) error) error {
	if !l.IsOpen() {
		return ErrClosed
	}

	lower, upper := tableBounds(table, start, stop)
	iter := l.db.NewIterator(&util.Range{Start: lower, Limit: upper}, nil)
	defer iter.Release()

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
func (l *LevelDBBackend) Sync() error {
	if !l.IsOpen() {
		return ErrClosed
	}
	// goleveldb has no explicit flush; a synced no-op write forces the
	// journal to disk.
	return l.db.Write(new(leveldb.Batch), &opt.WriteOptions{Sync: true})
}
