package kv

import (
	"sort"
	"sync"
)

type MutexMap[V any] struct {
	mu sync.RWMutex
	m  map[uint64]V
}

var _ Store[string] = (*MutexMap[string])(nil)

func NewMutexMap[V any]() *MutexMap[V] {
	return &MutexMap[V]{m: make(map[uint64]V)}
}

// Get implements Store
func (m *MutexMap[V]) Get(key uint64) (V, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.m[key]
	return v, ok, nil
}

// Set implements Store
func (m *MutexMap[V]) Set(key uint64, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.m[key] = value
	return nil
}

// Delete implements Store
func (m *MutexMap[V]) Delete(key uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.m, key)
	return nil
}

func (m *MutexMap[V]) Range(f func(key uint64, value V) bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]uint64, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if !f(k, m.m[k]) {
			return nil
		}
	}
	return nil
}

func (m *MutexMap[V]) Close() error { return nil }
