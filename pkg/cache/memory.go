package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	maxSize int
	ttl     time.Duration
}

func WithMemoryMaxSize(size int) MemoryOption {
	return func(c *memoryConfig) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithMemoryTTL bounds every entry, including those set without a TTL.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

type memoryEntry struct {
	data     []byte
	deadline time.Time
}

func (e memoryEntry) live(now time.Time) bool {
	return e.deadline.IsZero() || now.Before(e.deadline)
}

// MemoryCache is a size-bounded LRU. The LRU enforces the global TTL and
// shorter per-key TTLs are checked on read.
type MemoryCache struct {
	lru *expirable.LRU[string, memoryEntry]
	mu  sync.Mutex // TryLock check-and-set
}

var _ Service = (*MemoryCache)(nil)

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := memoryConfig{maxSize: 1000, ttl: 10 * time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MemoryCache{lru: expirable.NewLRU[string, memoryEntry](cfg.maxSize, nil, cfg.ttl)}
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encode(value)
	if err != nil {
		return err
	}
	m.put(key, data, ttl)
	return nil
}

func (m *MemoryCache) put(key string, data []byte, ttl time.Duration) {
	e := memoryEntry{data: data}
	if ttl > 0 {
		e.deadline = time.Now().Add(ttl)
	}
	m.lru.Add(key, e)
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	data, ok := m.raw(key)
	if !ok {
		return ErrCacheMiss
	}
	return decode(data, dest)
}

func (m *MemoryCache) raw(key string) ([]byte, bool) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !e.live(time.Now()) {
		m.lru.Remove(key)
		return nil, false
	}
	return e.data, true
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.lru.Remove(k)
	}
	return nil
}

func (m *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.raw(key); held {
		return false, nil
	}
	m.put(key, []byte{1}, ttl)
	return true, nil
}

func (m *MemoryCache) Unlock(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Len counts entries, including expired ones not yet read.
func (m *MemoryCache) Len() int {
	return m.lru.Len()
}

func (m *MemoryCache) Close() error {
	m.lru.Purge()
	return nil
}
