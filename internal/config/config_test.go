package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, AdapterGin, cfg.Adapter)
	assert.Equal(t, "routes", cfg.Routes.Root)
	assert.Equal(t, 30*time.Second, cfg.Routes.DefaultTimeout.Duration())
	assert.True(t, cfg.Docs.Enabled)
	assert.Equal(t, "/_routes", cfg.Docs.Path)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	assert.Equal(t, 1000, cfg.Cache.MaxEntries)
	assert.Equal(t, RateLimitStoreMemory, cfg.RateLimit.Store)
	assert.Equal(t, 10000, cfg.RateLimit.MaxKeys)
	assert.False(t, cfg.Breaker.Enabled)

	require.NoError(t, ValidateConfig(cfg))
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, AdapterGin, cfg.Adapter)
	assert.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	assert.Equal(t, 10000, cfg.RateLimit.MaxKeys)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1.0, cfg.Tracing.SamplingRate)
}

func TestApplyDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Server.Port = 9090
	cfg.Adapter = AdapterEcho
	cfg.Cache.MaxEntries = 50
	cfg.applyDefaults()

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, AdapterEcho, cfg.Adapter)
	assert.Equal(t, 50, cfg.Cache.MaxEntries)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid default config",
			mutate: func(_ *Config) {},
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "negative body limit",
			mutate:  func(c *Config) { c.Server.MaxBodyBytes = -1 },
			wantErr: "server.maxBodyBytes",
		},
		{
			name:    "missing routes root",
			mutate:  func(c *Config) { c.Routes.Root = "" },
			wantErr: "routes.root",
		},
		{
			name:    "unknown adapter",
			mutate:  func(c *Config) { c.Adapter = "fiber" },
			wantErr: "adapter",
		},
		{
			name:    "unknown cache type",
			mutate:  func(c *Config) { c.Cache.Type = "memcached" },
			wantErr: "cache.type",
		},
		{
			name: "redis cache without address",
			mutate: func(c *Config) {
				c.Cache.Type = CacheTypeRedis
				c.Cache.Redis = nil
			},
			wantErr: "cache.redis.address",
		},
		{
			name: "disabled cache skips backend validation",
			mutate: func(c *Config) {
				c.Cache.Enabled = false
				c.Cache.Type = "memcached"
			},
		},
		{
			name:    "unknown rate limit store",
			mutate:  func(c *Config) { c.RateLimit.Store = "etcd" },
			wantErr: "rateLimit.store",
		},
		{
			name: "redis rate limit store without address",
			mutate: func(c *Config) {
				c.RateLimit.Store = RateLimitStoreRedis
			},
			wantErr: "rateLimit.redis.address",
		},
		{
			name:    "sampling rate out of range",
			mutate:  func(c *Config) { c.Tracing.SamplingRate = 1.5 },
			wantErr: "tracing.samplingRate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := ValidateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConfigNil(t *testing.T) {
	err := ValidateConfig(nil)
	require.Error(t, err)
}

func TestRedisCacheWithAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cache.Type = CacheTypeRedis
	cfg.Cache.Redis = &RedisConfig{Address: "localhost:6379"}

	assert.NoError(t, ValidateConfig(cfg))
}
