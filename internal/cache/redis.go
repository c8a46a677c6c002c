package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avrouter/internal/config"
	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// redisCache implements Cache on a shared Redis instance. TTL expiry
// is delegated to Redis.
type redisCache struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     observability.Logger
	metrics    *observability.Metrics

	hits   int64
	misses int64
}

// newRedisCache creates a Redis-backed cache and verifies the
// connection with a ping.
func newRedisCache(cfg *config.CacheConfig, logger observability.Logger, metrics *observability.Metrics) (*redisCache, error) {
	rc := cfg.Redis
	if rc == nil || rc.Address == "" {
		return nil, ErrInvalidConfig
	}

	poolSize := rc.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	dialTimeout := rc.DialTimeout.Duration()
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:         rc.Address,
		Password:     rc.Password,
		DB:           rc.DB,
		PoolSize:     poolSize,
		MinIdleConns: rc.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  rc.ReadTimeout.Duration(),
		WriteTimeout: rc.WriteTimeout.Duration(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", rc.Address, err)
	}

	prefix := rc.Prefix
	if prefix == "" {
		prefix = "cache:"
	}

	logger.Info("redis cache initialized",
		observability.String("address", rc.Address),
		observability.String("prefix", prefix))

	return &redisCache{
		client:     client,
		prefix:     prefix,
		defaultTTL: cfg.TTL.Duration(),
		logger:     logger,
		metrics:    metrics,
	}, nil
}

// prefixedKey returns the key with the cache prefix applied.
func (c *redisCache) prefixedKey(key string) string {
	return c.prefix + key
}

// Get retrieves a value from Redis.
func (c *redisCache) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Get",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "redis"),
			attribute.String("cache.key", key),
		),
	)
	defer span.End()

	value, err := c.client.Get(ctx, c.prefixedKey(key)).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		if c.metrics != nil {
			c.metrics.RecordCacheMiss()
		}
		span.SetAttributes(attribute.Bool("cache.hit", false))
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	atomic.AddInt64(&c.hits, 1)
	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
	span.SetAttributes(
		attribute.Bool("cache.hit", true),
		attribute.Int("cache.value_size", len(value)),
	)

	return value, nil
}

// Set stores a value in Redis with the given TTL.
func (c *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, span := otel.Tracer(cacheTracerName).Start(ctx, "cache.Set",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.backend", "redis"),
			attribute.String("cache.key", key),
			attribute.Int("cache.value_size", len(value)),
		),
	)
	defer span.End()

	if ttl == 0 {
		ttl = c.defaultTTL
	}

	if err := c.client.Set(ctx, c.prefixedKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete removes a value from Redis.
func (c *redisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefixedKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Exists checks if a key exists in Redis.
func (c *redisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefixedKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// Stats returns cache statistics. Size is not tracked for the shared
// backend.
func (c *redisCache) Stats() Stats {
	return Stats{
		Hits:   atomic.LoadInt64(&c.hits),
		Misses: atomic.LoadInt64(&c.misses),
	}
}

// Close closes the Redis connection.
func (c *redisCache) Close() error {
	return c.client.Close()
}
