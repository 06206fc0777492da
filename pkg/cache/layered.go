package cache

import (
	"context"
	"time"
)

type LayeredOption func(*layeredConfig)

type layeredConfig struct {
	l1Size int
	l1TTL  time.Duration
}

func WithLayeredMemorySize(size int) LayeredOption {
	return func(c *layeredConfig) {
		if size > 0 {
			c.l1Size = size
		}
	}
}

// WithLayeredMemoryTTL caps how long L1 serves an entry without asking L2.
func WithLayeredMemoryTTL(ttl time.Duration) LayeredOption {
	return func(c *layeredConfig) {
		if ttl > 0 {
			c.l1TTL = ttl
		}
	}
}

// LayeredCache fronts a shared cache with a short-lived process-local LRU.
// Writes go through to the shared layer first; locks live only there.
type LayeredCache struct {
	l1 *MemoryCache
	l2 Service
}

var _ Service = (*LayeredCache)(nil)

func NewLayeredCache(shared Service, opts ...LayeredOption) *LayeredCache {
	cfg := layeredConfig{l1Size: 1000, l1TTL: time.Minute}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LayeredCache{
		l1: NewMemoryCache(WithMemoryMaxSize(cfg.l1Size), WithMemoryTTL(cfg.l1TTL)),
		l2: shared,
	}
}

func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if data, ok := c.l1.raw(key); ok {
		return decode(data, dest)
	}
	if err := c.l2.Get(ctx, key, dest); err != nil {
		return err
	}
	return c.l1.Set(ctx, key, dest, 0)
}

func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		_ = c.l1.Delete(ctx, key)
		return err
	}
	return c.l1.Set(ctx, key, value, ttl)
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.l1.Delete(ctx, keys...)
	return c.l2.Delete(ctx, keys...)
}

func (c *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.l2.TryLock(ctx, key, ttl)
}

func (c *LayeredCache) Unlock(ctx context.Context, key string) error {
	return c.l2.Unlock(ctx, key)
}

// Close drops L1 only; the shared layer belongs to the caller.
func (c *LayeredCache) Close() error {
	return c.l1.Close()
}
