package config

import (
	"fmt"
	"time"

	"github.com/vyrodovalexey/avrouter/internal/util"
)

// Adapter names for the host framework binding.
const (
	AdapterGin  = "gin"
	AdapterEcho = "echo"
)

// Cache backend types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Rate limit store types.
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Config is the root configuration for the routing engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Routes    RoutesConfig    `yaml:"routes"`
	Adapter   string          `yaml:"adapter"`
	Docs      DocsConfig      `yaml:"docs"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Cache     CacheConfig     `yaml:"cache"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Log       LogConfig       `yaml:"log"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	MaxHeaderBytes  int      `yaml:"maxHeaderBytes"`
	MaxBodyBytes    int64    `yaml:"maxBodyBytes"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// RoutesConfig describes where routes are discovered from.
type RoutesConfig struct {
	// Root is the directory whose layout defines the URL tree.
	Root string `yaml:"root"`

	// Watch enables hot reload of the route tree on filesystem changes.
	Watch bool `yaml:"watch"`

	// DefaultTimeout applies to routes that do not declare their own.
	DefaultTimeout Duration `yaml:"defaultTimeout"`
}

// DocsConfig controls the built-in route index endpoint. When disabled
// the endpoint is not registered at all: requests to its path produce
// the host framework's standard 404.
type DocsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CacheConfig holds response cache settings.
type CacheConfig struct {
	Enabled       bool         `yaml:"enabled"`
	Type          string       `yaml:"type"`
	MaxEntries    int          `yaml:"maxEntries"`
	TTL           Duration     `yaml:"ttl"`
	SweepInterval Duration     `yaml:"sweepInterval"`
	Redis         *RedisConfig `yaml:"redis"`
}

// RateLimitConfig holds rate limiter settings.
type RateLimitConfig struct {
	Store   string       `yaml:"store"`
	MaxKeys int          `yaml:"maxKeys"`
	Redis   *RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings shared by the cache and
// rate limit backends.
type RedisConfig struct {
	Address      string   `yaml:"address"`
	Password     string   `yaml:"password"`
	DB           int      `yaml:"db"`
	Prefix       string   `yaml:"prefix"`
	PoolSize     int      `yaml:"poolSize"`
	MinIdleConns int      `yaml:"minIdleConns"`
	DialTimeout  Duration `yaml:"dialTimeout"`
	ReadTimeout  Duration `yaml:"readTimeout"`
	WriteTimeout Duration `yaml:"writeTimeout"`
}

// BreakerConfig holds the optional circuit breaker stage settings.
type BreakerConfig struct {
	Enabled          bool     `yaml:"enabled"`
	MaxRequests      uint32   `yaml:"maxRequests"`
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
	FailureThreshold uint32   `yaml:"failureThreshold"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			IdleTimeout:     Duration(60 * time.Second),
			MaxHeaderBytes:  1 << 20,  // 1MB
			MaxBodyBytes:    10 << 20, // 10MB
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Routes: RoutesConfig{
			Root:           "routes",
			Watch:          false,
			DefaultTimeout: Duration(30 * time.Second),
		},
		Adapter: AdapterGin,
		Docs: DocsConfig{
			Enabled: true,
			Path:    "/_routes",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Cache: CacheConfig{
			Enabled:       true,
			Type:          CacheTypeMemory,
			MaxEntries:    1000,
			TTL:           Duration(60 * time.Second),
			SweepInterval: Duration(60 * time.Second),
		},
		RateLimit: RateLimitConfig{
			Store:   RateLimitStoreMemory,
			MaxKeys: 10000,
		},
		Breaker: BreakerConfig{
			Enabled:          false,
			MaxRequests:      1,
			Interval:         Duration(60 * time.Second),
			Timeout:          Duration(30 * time.Second),
			FailureThreshold: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			Enabled:      false,
			ServiceName:  "avrouter",
			SamplingRate: 1.0,
		},
	}
}

// applyDefaults fills zero values with defaults before validation.
func (c *Config) applyDefaults() {
	def := DefaultConfig()

	if c.Server.Host == "" {
		c.Server.Host = def.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = def.Server.IdleTimeout
	}
	if c.Server.MaxHeaderBytes == 0 {
		c.Server.MaxHeaderBytes = def.Server.MaxHeaderBytes
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = def.Server.MaxBodyBytes
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
	if c.Routes.Root == "" {
		c.Routes.Root = def.Routes.Root
	}
	if c.Routes.DefaultTimeout == 0 {
		c.Routes.DefaultTimeout = def.Routes.DefaultTimeout
	}
	if c.Adapter == "" {
		c.Adapter = def.Adapter
	}
	if c.Docs.Path == "" {
		c.Docs.Path = def.Docs.Path
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = def.Metrics.Path
	}
	if c.Cache.Type == "" {
		c.Cache.Type = def.Cache.Type
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = def.Cache.MaxEntries
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = def.Cache.TTL
	}
	if c.Cache.SweepInterval == 0 {
		c.Cache.SweepInterval = def.Cache.SweepInterval
	}
	if c.RateLimit.Store == "" {
		c.RateLimit.Store = def.RateLimit.Store
	}
	if c.RateLimit.MaxKeys == 0 {
		c.RateLimit.MaxKeys = def.RateLimit.MaxKeys
	}
	if c.Breaker.MaxRequests == 0 {
		c.Breaker.MaxRequests = def.Breaker.MaxRequests
	}
	if c.Breaker.Interval == 0 {
		c.Breaker.Interval = def.Breaker.Interval
	}
	if c.Breaker.Timeout == 0 {
		c.Breaker.Timeout = def.Breaker.Timeout
	}
	if c.Breaker.FailureThreshold == 0 {
		c.Breaker.FailureThreshold = def.Breaker.FailureThreshold
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = def.Log.Format
	}
	if c.Log.Output == "" {
		c.Log.Output = def.Log.Output
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = def.Tracing.ServiceName
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = def.Tracing.SamplingRate
	}
}

// ValidateConfig validates the full configuration.
func ValidateConfig(c *Config) error {
	if c == nil {
		return util.NewConfigError("", "configuration is nil")
	}

	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Routes.Validate(); err != nil {
		return err
	}

	switch c.Adapter {
	case AdapterGin, AdapterEcho:
	default:
		return util.NewConfigError("adapter",
			fmt.Sprintf("unknown adapter %q (expected %s or %s)", c.Adapter, AdapterGin, AdapterEcho))
	}

	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.RateLimit.Validate(); err != nil {
		return err
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}

	return nil
}

// Validate validates server settings.
func (s *ServerConfig) Validate() error {
	if err := util.ValidateNonNegativePort(s.Port); err != nil {
		return util.NewConfigErrorWithCause("server.port", "invalid port", err)
	}
	if err := util.ValidateDuration(s.ReadTimeout.Duration()); err != nil {
		return util.NewConfigErrorWithCause("server.readTimeout", "invalid duration", err)
	}
	if err := util.ValidateDuration(s.WriteTimeout.Duration()); err != nil {
		return util.NewConfigErrorWithCause("server.writeTimeout", "invalid duration", err)
	}
	if s.MaxBodyBytes < 0 {
		return util.NewConfigError("server.maxBodyBytes", "must not be negative")
	}
	return nil
}

// Validate validates route discovery settings.
func (r *RoutesConfig) Validate() error {
	if err := util.ValidateNonEmpty(r.Root, "routes.root"); err != nil {
		return util.NewConfigErrorWithCause("routes.root", "missing routes root", err)
	}
	if err := util.ValidateDuration(r.DefaultTimeout.Duration()); err != nil {
		return util.NewConfigErrorWithCause("routes.defaultTimeout", "invalid duration", err)
	}
	return nil
}

// Validate validates cache settings.
func (c *CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Type {
	case CacheTypeMemory:
	case CacheTypeRedis:
		if c.Redis == nil || c.Redis.Address == "" {
			return util.NewConfigError("cache.redis.address", "required for redis cache")
		}
	default:
		return util.NewConfigError("cache.type",
			fmt.Sprintf("unknown cache type %q", c.Type))
	}

	if c.MaxEntries < 0 {
		return util.NewConfigError("cache.maxEntries", "must not be negative")
	}
	return nil
}

// Validate validates rate limiter settings.
func (r *RateLimitConfig) Validate() error {
	switch r.Store {
	case RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if r.Redis == nil || r.Redis.Address == "" {
			return util.NewConfigError("rateLimit.redis.address", "required for redis store")
		}
	default:
		return util.NewConfigError("rateLimit.store",
			fmt.Sprintf("unknown rate limit store %q", r.Store))
	}

	if r.MaxKeys < 0 {
		return util.NewConfigError("rateLimit.maxKeys", "must not be negative")
	}
	return nil
}

// Validate validates tracing settings.
func (t *TracingConfig) Validate() error {
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		return util.NewConfigError("tracing.samplingRate", "must be between 0 and 1")
	}
	return nil
}
