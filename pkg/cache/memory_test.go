package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	RunID string  `json:"runId"`
	MAE   float64 `json:"mae"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	require.NoError(t, mc.Set(ctx, "forecast:latest:1", payload{RunID: "r1", MAE: 2.5}, 0))
	var got payload
	require.NoError(t, mc.Get(ctx, "forecast:latest:1", &got))
	assert.Equal(t, payload{RunID: "r1", MAE: 2.5}, got)

	require.NoError(t, mc.Set(ctx, "plain", "text", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "plain", &s))
	assert.Equal(t, "text", s)

	assert.ErrorIs(t, mc.Get(ctx, "missing", &s), ErrCacheMiss)
}

func TestMemoryCachePerKeyTTL(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	require.NoError(t, mc.Set(ctx, "k", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	var s string
	assert.ErrorIs(t, mc.Get(ctx, "k", &s), ErrCacheMiss)
	assert.Zero(t, mc.Len())
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))

	require.NoError(t, mc.Set(ctx, "a", "1", 0))
	require.NoError(t, mc.Set(ctx, "b", "2", 0))
	var s string
	require.NoError(t, mc.Get(ctx, "a", &s))
	require.NoError(t, mc.Set(ctx, "c", "3", 0))

	assert.ErrorIs(t, mc.Get(ctx, "b", &s), ErrCacheMiss)
	assert.NoError(t, mc.Get(ctx, "a", &s))
	assert.Equal(t, 2, mc.Len())
}

func TestMemoryCacheTryLock(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()

	ok, err := mc.TryLock(ctx, "forecast:lock:1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mc.TryLock(ctx, "forecast:lock:1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, mc.Unlock(ctx, "forecast:lock:1"))
	ok, _ = mc.TryLock(ctx, "forecast:lock:1", time.Minute)
	assert.True(t, ok)
}

func TestLayeredCacheFillsL1(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryCache()
	lc := NewLayeredCache(shared, WithLayeredMemorySize(8))

	require.NoError(t, shared.Set(ctx, "k", payload{RunID: "r9"}, 0))
	require.NoError(t, shared.Set(ctx, "s", "raw", 0))

	var got payload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "r9", got.RunID)
	var s string
	require.NoError(t, lc.Get(ctx, "s", &s))

	// both now come from L1
	require.NoError(t, shared.Delete(ctx, "k", "s"))
	got, s = payload{}, ""
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "r9", got.RunID)
	require.NoError(t, lc.Get(ctx, "s", &s))
	assert.Equal(t, "raw", s)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestLayeredCacheLocksUseSharedLayer(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryCache()
	a, b := NewLayeredCache(shared), NewLayeredCache(shared)

	ok, err := a.TryLock(ctx, "forecast:lock:3", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.TryLock(ctx, "forecast:lock:3", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "forecast:latest:42", Key("forecast", "latest", int64(42)))
	assert.Equal(t, "solo", Key("solo"))
}
