package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/ratelimit/store"
)

// StoreLimiter enforces fixed window limits against a shared counter
// store so multiple instances agree on one budget per key.
type StoreLimiter struct {
	store  store.CounterStore
	logger observability.Logger
}

// StoreOption is a functional option for the store limiter.
type StoreOption func(*StoreLimiter)

// WithStoreLogger sets the logger.
func WithStoreLogger(logger observability.Logger) StoreOption {
	return func(l *StoreLimiter) {
		l.logger = logger
	}
}

// NewStoreLimiter creates a limiter backed by a counter store.
func NewStoreLimiter(s store.CounterStore, opts ...StoreOption) *StoreLimiter {
	l := &StoreLimiter{
		store:  s,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// windowKey names the store key for one key's current window.
func windowKey(key string, start time.Time) string {
	return fmt.Sprintf("%s:fw:%d", key, start.UnixNano())
}

// Allow implements Limiter.
func (l *StoreLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	now := time.Now()
	start := windowStart(now, limit.Window)
	wk := windowKey(key, start)

	// Window keys expire slightly after the window ends to absorb
	// clock skew between instances.
	expiration := limit.Window + time.Second
	count, err := l.store.IncrementWithExpiry(ctx, wk, 1, expiration)
	if err != nil {
		return nil, err
	}

	allowed := count <= int64(limit.Count)

	remaining := limit.Count - int(count)
	if remaining < 0 {
		remaining = 0
	}

	resetAfter := start.Add(limit.Window).Sub(now)
	if resetAfter < 0 {
		resetAfter = 0
	}

	var retryAfter time.Duration
	if !allowed {
		retryAfter = resetAfter
	}

	return &Result{
		Allowed:    allowed,
		Limit:      limit.Count,
		Remaining:  remaining,
		ResetAfter: resetAfter,
		RetryAfter: retryAfter,
	}, nil
}

// Reset implements Limiter. Only the current window's counter is
// cleared; expired windows age out on their own.
func (l *StoreLimiter) Reset(ctx context.Context, key string) error {
	// Without the limit we cannot reconstruct the window key exactly,
	// so reset walks the known window granularities.
	now := time.Now()
	for _, window := range []time.Duration{time.Second, time.Minute, time.Hour, 24 * time.Hour} {
		wk := windowKey(key, windowStart(now, window))
		if err := l.store.Delete(ctx, wk); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Limiter.
func (l *StoreLimiter) Close() error {
	return l.store.Close()
}
