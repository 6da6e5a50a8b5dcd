package storage

import (
	"sort"
	"sync"
)

// MemoryBackend is an in-memory backend for tests and ephemeral runs.
type MemoryBackend struct {
	mu   sync.RWMutex
	open bool
	data map[string][]byte
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend(config *Config) (Backend, error) {
	return &MemoryBackend{}, nil
}

// Name returns the name of this backend.
func (m *MemoryBackend) Name() string { return "memory" }

// Open opens the backend for use.
func (m *MemoryBackend) Open(createIfMissing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		return nil
	}
	m.data = make(map[string][]byte)
	m.open = true
	return nil
}

// Close closes the backend and discards all data.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = false
	m.data = nil
	return nil
}

// IsOpen reports whether the backend is currently open.
func (m *MemoryBackend) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.open
}

// Get retrieves one value.
func (m *MemoryBackend) Get(table Table, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.open {
		return nil, ErrClosed
	}

	value, ok := m.data[string(tableKey(table, key))]
	if !ok {
		return nil, ErrRowNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// PutBatch writes all pairs.
func (m *MemoryBackend) PutBatch(table Table, kvs []KV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.open {
		return ErrClosed
	}

	for _, kv := range kvs {
		value := make([]byte, len(kv.Value))
		copy(value, kv.Value)
		m.data[string(tableKey(table, kv.Key))] = value
	}
	return nil
}

// Scan visits keys in [start, stop) in order.
func (m *MemoryBackend) Scan(table Table, start, stop []byte, descending bool, fn func(key, value []byte) error) error {
	m.mu.RLock()
	if !m.open {
		m.mu.RUnlock()
		return ErrClosed
	}

	lower, upper := tableBounds(table, start, stop)
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if k >= string(lower) && k < string(upper) {
			keys = append(keys, k)
		}
	}
	m.mu.RUnlock()

	sort.Strings(keys)
	if descending {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	for _, k := range keys {
		m.mu.RLock()
		value, ok := m.data[k]
		m.mu.RUnlock()
		if !ok {
			continue
		}
		if err := fn(stripTable(table, []byte(k)), value); err != nil {
			if err == errStopScan {
				return nil
			}
			return err
		}
	}
	return nil
}

// Sync is a no-op for the in-memory backend.
func (m *MemoryBackend) Sync() error { return nil }
