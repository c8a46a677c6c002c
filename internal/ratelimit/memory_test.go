package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterAllow(t *testing.T) {
	l := NewMemoryLimiter()
	defer func() { require.NoError(t, l.Close()) }()

	limit := Limit{Count: 3, Window: time.Hour}

	for i := 0; i < 3; i++ {
		result, err := l.Allow(context.Background(), "client", limit)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d", i)
		assert.Equal(t, 3, result.Limit)
		assert.Equal(t, 2-i, result.Remaining)
		assert.Zero(t, result.RetryAfter)
	}

	result, err := l.Allow(context.Background(), "client", limit)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Zero(t, result.Remaining)
	assert.Positive(t, result.RetryAfter)
	assert.LessOrEqual(t, result.RetryAfter, time.Hour)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l := NewMemoryLimiter()
	defer func() { require.NoError(t, l.Close()) }()

	limit := Limit{Count: 1, Window: time.Hour}

	first, err := l.Allow(context.Background(), "a", limit)
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	denied, err := l.Allow(context.Background(), "a", limit)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	other, err := l.Allow(context.Background(), "b", limit)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestMemoryLimiterWindowReset(t *testing.T) {
	l := NewMemoryLimiter()
	defer func() { require.NoError(t, l.Close()) }()

	limit := Limit{Count: 1, Window: 50 * time.Millisecond}

	first, err := l.Allow(context.Background(), "client", limit)
	require.NoError(t, err)
	assert.True(t, first.Allowed)

	denied, err := l.Allow(context.Background(), "client", limit)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	time.Sleep(60 * time.Millisecond)

	renewed, err := l.Allow(context.Background(), "client", limit)
	require.NoError(t, err)
	assert.True(t, renewed.Allowed)
}

func TestMemoryLimiterReset(t *testing.T) {
	l := NewMemoryLimiter()
	defer func() { require.NoError(t, l.Close()) }()

	limit := Limit{Count: 1, Window: time.Hour}

	_, err := l.Allow(context.Background(), "client", limit)
	require.NoError(t, err)

	denied, err := l.Allow(context.Background(), "client", limit)
	require.NoError(t, err)
	assert.False(t, denied.Allowed)

	require.NoError(t, l.Reset(context.Background(), "client"))

	renewed, err := l.Allow(context.Background(), "client", limit)
	require.NoError(t, err)
	assert.True(t, renewed.Allowed)
}

func TestMemoryLimiterEvictsLeastRecentKey(t *testing.T) {
	l := NewMemoryLimiter(WithMaxKeys(3))
	defer func() { require.NoError(t, l.Close()) }()

	limit := Limit{Count: 100, Window: time.Hour}

	for _, key := range []string{"a", "b", "c"} {
		_, err := l.Allow(context.Background(), key, limit)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, l.Len())

	// Touch "a" so "b" becomes the least recent.
	_, err := l.Allow(context.Background(), "a", limit)
	require.NoError(t, err)

	_, err = l.Allow(context.Background(), "d", limit)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())

	// "b" was evicted; its budget starts over.
	result, err := l.Allow(context.Background(), "b", limit)
	require.NoError(t, err)
	assert.Equal(t, 99, result.Remaining)
}

func TestMemoryLimiterTableNeverExceedsBound(t *testing.T) {
	l := NewMemoryLimiter(WithMaxKeys(10))
	defer func() { require.NoError(t, l.Close()) }()

	limit := Limit{Count: 1, Window: time.Hour}
	for i := 0; i < 100; i++ {
		_, err := l.Allow(context.Background(), fmt.Sprintf("key-%d", i), limit)
		require.NoError(t, err)
		assert.LessOrEqual(t, l.Len(), 10)
	}
}

func TestMemoryLimiterConcurrentExactBudget(t *testing.T) {
	l := NewMemoryLimiter()
	defer func() { require.NoError(t, l.Close()) }()

	const (
		goroutines = 100
		budget     = 37
	)
	limit := Limit{Count: budget, Window: time.Hour}

	var allowed int64
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			result, err := l.Allow(context.Background(), "shared", limit)
			if err == nil && result.Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(budget), allowed)
}

func TestMemoryLimiterCanceledContext(t *testing.T) {
	l := NewMemoryLimiter()
	defer func() { require.NoError(t, l.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Allow(ctx, "client", Limit{Count: 1, Window: time.Second})
	assert.ErrorIs(t, err, context.Canceled)
}
