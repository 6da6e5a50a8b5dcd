package storage

import (
	"fmt"
	"sync"
)

// KV is one encoded key-value pair handed to a backend.
type KV struct {
	Key   []byte
	Value []byte
}

// Backend is the raw ordered key-value store underneath the gateway.
// Implementations are safe for concurrent use once opened.
type Backend interface {
	// Name returns a human-readable name for this backend.
	Name() string

	// Open opens the backend for use.
	Open(createIfMissing bool) error

	// Close closes the backend and releases resources.
	Close() error

	// IsOpen reports whether the backend is currently open.
	IsOpen() bool

	// Get retrieves one value, or ErrRowNotFound.
	Get(table Table, key []byte) ([]byte, error)

	// PutBatch writes all pairs atomically.
	PutBatch(table Table, kvs []KV) error

	// Scan visits keys in [start, stop) in order, reversed when
	// descending. Empty bounds mean the edge of the table. Returning an
	// error from fn stops the scan; errStopScan stops it cleanly.
	Scan(table Table, start, stop []byte, descending bool, fn func(key, value []byte) error) error

	// Sync forces pending writes to be flushed.
	Sync() error
}

// errStopScan terminates a Scan early without surfacing an error.
var errStopScan = fmt.Errorf("stop scan")

// BackendFactory builds a backend from the storage configuration.
type BackendFactory func(config *Config) (Backend, error)

var (
	backendMu        sync.RWMutex
	backendFactories = make(map[string]BackendFactory)
)

// RegisterBackend registers a backend factory with the given name.
func RegisterBackend(name string, factory BackendFactory) {
	backendMu.Lock()
	defer backendMu.Unlock()
	backendFactories[name] = factory
}

// CreateBackend creates a new backend instance for the given name.
func CreateBackend(name string, config *Config) (Backend, error) {
	backendMu.RLock()
	factory, ok := backendFactories[name]
	backendMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown backend: %s", name)
	}
	return factory(config)
}

// AvailableBackends returns the registered backend names.
func AvailableBackends() []string {
	backendMu.RLock()
	defer backendMu.RUnlock()

	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, name)
	}
	return names
}

// tableKey prefixes key with the table name and a zero separator so each
// table occupies a disjoint, contiguous key range.
func tableKey(table Table, key []byte) []byte {
	out := make([]byte, 0, len(table)+1+len(key))
	out = append(out, table...)
	out = append(out, 0)
	return append(out, key...)
}

// tableBounds returns the backend key range of [start, stop) within table.
// An empty stop extends to the end of the table.
func tableBounds(table Table, start, stop []byte) (lower, upper []byte) {
	lower = tableKey(table, start)
	if len(stop) > 0 {
		upper = tableKey(table, stop)
	} else {
		// 0x01 sorts after the 0x00 separator, closing the table range.
		upper = append([]byte(table), 1)
	}
	return lower, upper
}

// stripTable removes the table prefix from a backend key.
func stripTable(table Table, key []byte) []byte {
	return key[len(table)+1:]
}

func init() {
	RegisterBackend("pebble", NewPebbleBackend)
	RegisterBackend("leveldb", NewLevelDBBackend)
	RegisterBackend("memory", NewMemoryBackend)
}
