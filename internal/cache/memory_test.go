package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vyrodovalexey/avrouter/internal/config"
	"github.com/vyrodovalexey/avrouter/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestMemoryCache(t *testing.T, mutate func(*config.CacheConfig)) Cache {
	t.Helper()

	cfg := &config.CacheConfig{
		Enabled:       true,
		Type:          config.CacheTypeMemory,
		MaxEntries:    100,
		TTL:           config.Duration(time.Minute),
		SweepInterval: config.Duration(time.Minute),
	}
	if mutate != nil {
		mutate(cfg)
	}

	c, err := New(cfg, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c
}

func TestMemoryCacheSetGet(t *testing.T) {
	c := newTestMemoryCache(t, nil)

	require.NoError(t, c.Set(context.Background(), "k", []byte("value"), 0))

	value, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), value)

	exists, err := c.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryCacheMiss(t *testing.T) {
	c := newTestMemoryCache(t, nil)

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestMemoryCacheLazyExpiry(t *testing.T) {
	c := newTestMemoryCache(t, nil)

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 20*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// The expired entry was removed on read.
	assert.Equal(t, int64(0), c.Stats().Size)
}

func TestMemoryCacheDelete(t *testing.T) {
	c := newTestMemoryCache(t, nil)

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))
	require.NoError(t, c.Delete(context.Background(), "k"))

	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCacheEvictsOverCapacity(t *testing.T) {
	c := newTestMemoryCache(t, func(cfg *config.CacheConfig) {
		cfg.MaxEntries = 3
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Set(context.Background(), fmt.Sprintf("k%d", i), []byte("v"), 0))
	}

	// Touch k0 so k1 becomes the least recently used.
	_, err := c.Get(context.Background(), "k0")
	require.NoError(t, err)

	require.NoError(t, c.Set(context.Background(), "k3", []byte("v"), 0))

	assert.Equal(t, int64(3), c.Stats().Size)

	_, err = c.Get(context.Background(), "k1")
	assert.ErrorIs(t, err, ErrCacheMiss)

	_, err = c.Get(context.Background(), "k0")
	assert.NoError(t, err)
}

func TestMemoryCacheUpdateRefreshesEntry(t *testing.T) {
	c := newTestMemoryCache(t, nil)

	require.NoError(t, c.Set(context.Background(), "k", []byte("old"), 0))
	require.NoError(t, c.Set(context.Background(), "k", []byte("new"), 0))

	value, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), value)
	assert.Equal(t, int64(1), c.Stats().Size)
}

func TestMemoryCacheSweeperRemovesExpired(t *testing.T) {
	c := newTestMemoryCache(t, func(cfg *config.CacheConfig) {
		cfg.SweepInterval = config.Duration(10 * time.Millisecond)
	})

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 5*time.Millisecond))

	assert.Eventually(t, func() bool {
		return c.Stats().Size == 0
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryCacheStats(t *testing.T) {
	c := newTestMemoryCache(t, nil)

	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), 0))

	_, _ = c.Get(context.Background(), "k")
	_, _ = c.Get(context.Background(), "k")
	_, _ = c.Get(context.Background(), "missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Size)
	assert.InDelta(t, 66.6, stats.HitRate(), 0.1)
}

func TestDisabledCache(t *testing.T) {
	cfg := &config.CacheConfig{Enabled: false}

	c, err := New(cfg, observability.NopLogger())
	require.NoError(t, err)
	defer func() { require.NoError(t, c.Close()) }()

	_, err = c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrCacheDisabled)

	err = c.Set(context.Background(), "k", []byte("v"), 0)
	assert.ErrorIs(t, err, ErrCacheDisabled)
}

func TestNewUnknownType(t *testing.T) {
	cfg := &config.CacheConfig{Enabled: true, Type: "memcached"}

	_, err := New(cfg, observability.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown cache type")
}

func TestNewNilConfig(t *testing.T) {
	_, err := New(nil, observability.NopLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
