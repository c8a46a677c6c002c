package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// DefaultMaxKeys bounds the in-memory key table.
const DefaultMaxKeys = 10000

// windowCounter tracks one key's count within the current fixed
// window. Each counter has its own mutex so contention on one key
// never blocks checks on another.
type windowCounter struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// keyEntry ties a key to its counter and its position in the recency
// list.
type keyEntry struct {
	key     string
	counter *windowCounter
}

// MemoryLimiter is an in-process fixed window limiter with a bounded
// key table. When the table is full the least-recently-touched key is
// evicted. Eviction holds only the table lock, never a counter mutex.
type MemoryLimiter struct {
	mu      sync.Mutex
	keys    map[string]*list.Element
	lru     *list.List
	maxKeys int
	logger  observability.Logger
}

// MemoryOption is a functional option for the memory limiter.
type MemoryOption func(*MemoryLimiter)

// WithMaxKeys bounds the key table size.
func WithMaxKeys(n int) MemoryOption {
	return func(l *MemoryLimiter) {
		if n > 0 {
			l.maxKeys = n
		}
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(logger observability.Logger) MemoryOption {
	return func(l *MemoryLimiter) {
		l.logger = logger
	}
}

// NewMemoryLimiter creates an in-memory fixed window limiter.
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		keys:    make(map[string]*list.Element),
		lru:     list.New(),
		maxKeys: DefaultMaxKeys,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(ctx context.Context, key string, limit Limit) (*Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	counter := l.touch(key)

	now := time.Now()
	start := windowStart(now, limit.Window)

	counter.mu.Lock()
	if !counter.windowStart.Equal(start) {
		counter.count = 0
		counter.windowStart = start
	}

	allowed := counter.count+1 <= limit.Count
	if allowed {
		counter.count++
	}
	remaining := limit.Count - counter.count
	counter.mu.Unlock()

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

// touch returns the counter for a key, creating it and evicting the
// least-recently-touched key if the table is full.
func (l *MemoryLimiter) touch(key string) *windowCounter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.keys[key]; ok {
		l.lru.MoveToFront(elem)
		return elem.Value.(*keyEntry).counter
	}

	for l.lru.Len() >= l.maxKeys {
		oldest := l.lru.Back()
		if oldest == nil {
			break
		}
		evicted := oldest.Value.(*keyEntry)
		l.lru.Remove(oldest)
		delete(l.keys, evicted.key)
		l.logger.Debug("rate limit key evicted",
			observability.String("key", evicted.key),
		)
	}

	entry := &keyEntry{key: key, counter: &windowCounter{}}
	l.keys[key] = l.lru.PushFront(entry)
	return entry.counter
}

// Reset implements Limiter.
func (l *MemoryLimiter) Reset(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.keys[key]; ok {
		l.lru.Remove(elem)
		delete(l.keys, key)
	}
	return nil
}

// Close implements Limiter.
func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = make(map[string]*list.Element)
	l.lru.Init()
	return nil
}

// Len returns the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
