package cache

import (
	"context"
	"time"
)

// MemoryProvider implements Provider with a process-local LRU. It is the
// shared embedding tier when caching is enabled without a Valkey address.
type MemoryProvider struct {
	lru *LRU[[]byte]
}

// NewMemoryProvider creates a provider holding up to capacity keys.
func NewMemoryProvider(capacity int) *MemoryProvider {
	return &MemoryProvider{lru: NewLRU[[]byte](capacity, 0)}
}

// SetClock replaces the time source used for expiry.
func (m *MemoryProvider) SetClock(now func() time.Time) {
	m.lru.SetClock(now)
}

// Get returns a copy of the stored bytes or ErrCacheMiss.
func (m *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value.
func (m *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.SetWithTTL(key, append([]byte(nil), value...), ttl)
	return nil
}

// SetNX stores value only when key is absent or expired.
func (m *MemoryProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.lru.mu.Lock()
	defer m.lru.mu.Unlock()
	if _, ok := m.lru.getLocked(key); ok {
		return false, nil
	}
	m.lru.setLocked(key, append([]byte(nil), value...), ttl)
	return true, nil
}

// Del removes key.
func (m *MemoryProvider) Del(_ context.Context, key string) error {
	m.lru.Delete(key)
	return nil
}

// Close is a no-op.
func (m *MemoryProvider) Close() error { return nil }
