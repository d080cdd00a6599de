package cache

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory cache store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]cachedValue
	closed bool
}

type cachedValue struct {
	format string
	data   []byte
}

// NewMemoryStore creates a new in-memory cache store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]cachedValue)}
}

// Get implements Store.
func (m *MemoryStore) Get(node string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	cv, ok := m.data[node]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy to prevent modification
	out := make([]byte, len(cv.data))
	copy(out, cv.data)
	return out, nil
}

// Put implements Store.
func (m *MemoryStore) Put(node, format string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	// Copy data to avoid retaining caller's slice
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[node] = cachedValue{format: format, data: stored}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(node string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, node)
	return nil
}

// List implements Store.
func (m *MemoryStore) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	out := make([]string, 0, len(m.data))
	for node := range m.data {
		out = append(out, node)
	}
	sort.Strings(out)
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of cached values. Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
