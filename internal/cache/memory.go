package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avrouter/internal/config"
	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// cacheTracerName is the OpenTelemetry tracer name for cache operations.
const cacheTracerName = "avrouter/cache"

// defaultMaxEntries bounds the memory cache when unconfigured.
const defaultMaxEntries = 1000

// memoryCache implements an in-memory LRU cache with TTL expiry.
type memoryCache struct {
	logger        observability.Logger
	metrics       *observability.Metrics
	maxEntries    int
	defaultTTL    time.Duration
	sweepInterval time.Duration

	mu       sync.RWMutex
	items    map[string]*list.Element
	eviction *list.List

	hits   int64
	misses int64

	stopCh   chan struct{}
	stopOnce sync.Once
}

// entry is a cached value with its expiration and recency position.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

// newMemoryCache creates an in-memory cache and starts its sweeper.
func newMemoryCache(cfg *config.CacheConfig, logger observability.Logger, metrics *observability.Metrics) *memoryCache {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	sweepInterval := cfg.SweepInterval.Duration()
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}

	c := &memoryCache{
		logger:        logger,
		metrics:       metrics,
		maxEntries:    maxEntries,
		defaultTTL:    cfg.TTL.Duration(),
		sweepInterval: sweepInterval,
		items:         make(map[string]*list.Element),
		eviction:      list.New(),
		stopCh:        make(chan struct{}),
	}

	go c.sweepLoop()

	logger.Info("memory cache initialized",
		observability.Int("maxEntries", maxEntries),
		observability.Duration("defaultTTL", c.defaultTTL),
		observability.Duration("sweepInterval", sweepInterval))

	return c
}

// Get retrieves a value, refreshing its recency. Expired entries are
// removed lazily and reported as misses.
func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "memory"),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.recordMiss(span)
		return nil, ErrCacheMiss
	}

	e := elem.Value.(*entry)
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.removeElement(elem)
		c.recordMiss(span)
		return nil, ErrCacheMiss
	}

	c.eviction.MoveToFront(elem)

	atomic.AddInt64(&c.hits, 1)
	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.Int("cache.value_size", len(e.value)),
	)

	return e.value, nil
}

// recordMiss counts a miss. Must be called with lock held.
func (c *memoryCache) recordMiss(span trace.Span) {
	atomic.AddInt64(&c.misses, 1)
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))
}

// Set stores a value, evicting from the back while over capacity.
func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "memory"),
			attribute.String("cache.key", key),
			attribute.Int("cache.value_size", len(value)),
		),
	)
	defer span.End()

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.eviction.MoveToFront(elem)
		elem.Value = e
		return nil
	}

	c.items[key] = c.eviction.PushFront(e)

	for c.eviction.Len() > c.maxEntries {
		c.evictOldest()
	}

	if c.metrics != nil {
		c.metrics.SetCacheEntries(c.eviction.Len())
	}

	return nil
}

// Delete removes a value from the cache.
func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
	return nil
}

// Exists checks if a key exists without refreshing recency.
func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		return false, nil
	}

	e := elem.Value.(*entry)
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.removeElement(elem)
		return false, nil
	}
	return true, nil
}

// Stats returns cache statistics.
func (c *memoryCache) Stats() Stats {
	c.mu.RLock()
	size := int64(c.eviction.Len())
	c.mu.RUnlock()

	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
		Size:   size,
	}
}

// Close stops the sweeper and drops all entries.
func (c *memoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.eviction.Init()

	c.logger.Info("memory cache closed")
	return nil
}

// evictOldest removes the least recently used entry.
// Must be called with lock held.
func (c *memoryCache) evictOldest() {
	elem := c.eviction.Back()
	if elem == nil {
		return
	}
	c.removeElement(elem)
	if c.metrics != nil {
		c.metrics.RecordCacheEviction()
	}
}

// removeElement removes an element from the map and recency list.
// Must be called with lock held.
func (c *memoryCache) removeElement(elem *list.Element) {
	c.eviction.Remove(elem)
	e := elem.Value.(*entry)
	delete(c.items, e.key)
}

// sweepLoop periodically removes expired entries until Close.
func (c *memoryCache) sweepLoop() {
	ticker := time.NewTicker(c.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stopCh:
			return
		}
	}
}

// sweep removes expired entries under one write lock.
func (c *memoryCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var expired []*list.Element

	for elem := c.eviction.Back(); elem != nil; elem = elem.Prev() {
		e := elem.Value.(*entry)
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			expired = append(expired, elem)
		}
	}

	for _, elem := range expired {
		c.removeElement(elem)
	}

	if len(expired) > 0 {
		if c.metrics != nil {
			c.metrics.SetCacheEntries(c.eviction.Len())
		}
		c.logger.Debug("cache sweep completed",
			observability.Int("removed", len(expired)))
	}
}
