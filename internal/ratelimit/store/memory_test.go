package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := newTestMemoryStore(t)

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsKeyNotFound(err))
}

func TestMemoryStoreIncrementWithExpiry(t *testing.T) {
	s := newTestMemoryStore(t)

	count, err := s.IncrementWithExpiry(context.Background(), "k", 1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = s.IncrementWithExpiry(context.Background(), "k", 2, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	value, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(3), value)
}

func TestMemoryStoreExpiration(t *testing.T) {
	s := newTestMemoryStore(t)

	_, err := s.IncrementWithExpiry(context.Background(), "k", 5, 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	_, err = s.Get(context.Background(), "k")
	assert.True(t, IsKeyNotFound(err))

	// An expired key restarts from the delta.
	count, err := s.IncrementWithExpiry(context.Background(), "k", 1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := newTestMemoryStore(t)

	_, err := s.IncrementWithExpiry(context.Background(), "k", 1, time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), "k"))

	_, err = s.Get(context.Background(), "k")
	assert.True(t, IsKeyNotFound(err))
}

func TestMemoryStoreConcurrentIncrement(t *testing.T) {
	s := newTestMemoryStore(t)

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := s.IncrementWithExpiry(context.Background(), "k", 1, time.Hour)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	value, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, int64(goroutines), value)
}

func TestMemoryStoreCleanupRemovesExpired(t *testing.T) {
	s := NewMemoryStoreWithCleanupInterval(10 * time.Millisecond)
	defer func() { require.NoError(t, s.Close()) }()

	_, err := s.IncrementWithExpiry(context.Background(), "k", 1, 5*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, ok := s.data["k"]
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStoreCloseIdempotent(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	s := newTestMemoryStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = s.IncrementWithExpiry(ctx, "k", 1, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
