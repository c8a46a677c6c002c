// Package engine is the composition root: it wires configuration,
// discovery, pipelines, and the framework adapter into a runnable
// server with hot reload.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/avrouter/internal/adapter"
	"github.com/vyrodovalexey/avrouter/internal/authz"
	"github.com/vyrodovalexey/avrouter/internal/cache"
	"github.com/vyrodovalexey/avrouter/internal/config"
	"github.com/vyrodovalexey/avrouter/internal/discovery"
	"github.com/vyrodovalexey/avrouter/internal/handler"
	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/ratelimit"
	"github.com/vyrodovalexey/avrouter/internal/ratelimit/store"
	"github.com/vyrodovalexey/avrouter/internal/util"
)

// metricsNamespace prefixes every Prometheus metric.
const metricsNamespace = "avrouter"

// Option configures the engine.
type Option func(*Engine)

// WithLogger injects a logger instead of building one from config.
func WithLogger(logger observability.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegistrar injects an adapter instead of selecting one from
// config.
func WithRegistrar(reg adapter.Registrar) Option {
	return func(e *Engine) {
		e.registrar = reg
	}
}

// WithCheckFunc sets the authorization check used by routes that
// demand auth. Without one, such routes deny with 500.
func WithCheckFunc(check authz.CheckFunc) Option {
	return func(e *Engine) {
		e.check = check
	}
}

// Engine owns the full serving stack. The route tree is rebuilt and
// swapped as a whole on reload; request dispatch never sees a
// half-built table.
type Engine struct {
	registry  *handler.Registry
	logger    observability.Logger
	ownLogger bool
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	cache     cache.Cache
	limiter   ratelimit.Limiter
	gate      *authz.Gate
	registrar adapter.Registrar
	check     authz.CheckFunc

	mu     sync.Mutex
	cfg    *config.Config
	tree   *discovery.Tree
	closed bool

	watcher    *routeWatcher
	reloadRate *rate.Limiter

	closeOnce sync.Once
	closeErr  error
}

// New wires the engine from configuration.
func New(cfg *config.Config, reg *handler.Registry, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = handler.Default()
	}

	e := &Engine{
		registry:   reg,
		cfg:        cfg,
		reloadRate: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		logger, err := observability.NewLogger(observability.LogConfig{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		})
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
		e.logger = logger
		e.ownLogger = true
	}

	e.metrics = observability.NewMetrics(metricsNamespace)

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("build tracer: %w", err)
	}
	e.tracer = tracer

	c, err := cache.New(&cfg.Cache, e.logger, cache.WithMetrics(e.metrics))
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	e.cache = c

	limiter, err := buildLimiter(cfg, e.logger)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("build rate limiter: %w", err)
	}
	e.limiter = limiter

	e.gate = authz.NewGate(e.check,
		authz.WithLogger(e.logger),
		authz.WithMetrics(e.metrics),
	)

	if e.registrar == nil {
		switch cfg.Adapter {
		case config.AdapterEcho:
			e.registrar = adapter.NewEcho(
				adapter.WithEchoMaxBodyBytes(cfg.Server.MaxBodyBytes),
				adapter.WithEchoLogger(e.logger),
			)
		default:
			e.registrar = adapter.NewGin(
				adapter.WithGinMaxBodyBytes(cfg.Server.MaxBodyBytes),
				adapter.WithGinLogger(e.logger),
			)
		}
	}

	return e, nil
}

func buildLimiter(cfg *config.Config, logger observability.Logger) (ratelimit.Limiter, error) {
	switch cfg.RateLimit.Store {
	case config.RateLimitStoreRedis:
		rc := cfg.RateLimit.Redis
		if rc == nil {
			return nil, util.NewMisconfigurationError("rateLimit", "redis", "redis store selected without connection settings")
		}
		s, err := store.NewRedisStore(&store.RedisConfig{
			Address:      rc.Address,
			Password:     rc.Password,
			DB:           rc.DB,
			Prefix:       rc.Prefix,
			PoolSize:     rc.PoolSize,
			MinIdleConns: rc.MinIdleConns,
			DialTimeout:  rc.DialTimeout.Duration(),
			ReadTimeout:  rc.ReadTimeout.Duration(),
			WriteTimeout: rc.WriteTimeout.Duration(),
			Logger:       logger,
		})
		if err != nil {
			return nil, err
		}
		return ratelimit.NewStoreLimiter(s, ratelimit.WithStoreLogger(logger)), nil
	default:
		return ratelimit.NewMemoryLimiter(
			ratelimit.WithMaxKeys(cfg.RateLimit.MaxKeys),
			ratelimit.WithMemoryLogger(logger),
		), nil
	}
}

// Load discovers routes and applies them to the adapter. On failure
// the previously applied table keeps serving.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadLocked(ctx)
}

// Reload rebuilds the route table, same contract as Load.
func (e *Engine) Reload(ctx context.Context) error {
	return e.Load(ctx)
}

func (e *Engine) loadLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tree, err := discovery.Discover(e.cfg.Routes.Root, e.registry, discovery.WithLogger(e.logger))
	if err != nil {
		return err
	}

	routes := e.buildRoutes(tree)
	if err := e.registrar.Apply(routes); err != nil {
		return err
	}

	e.tree = tree
	e.metrics.SetRoutesLoaded(tree.Len())

	if e.cfg.Routes.Watch {
		if err := e.ensureWatcherLocked(tree.Dirs()); err != nil {
			e.logger.Error("route watcher unavailable", observability.Error(err))
		}
	}

	e.logger.Info("routes loaded",
		observability.Int("routes", tree.Len()),
		observability.Int("bindings", len(routes)),
		observability.String("root", e.cfg.Routes.Root),
	)
	return nil
}

// ApplyConfig swaps the active configuration and rebuilds the route
// table under it. Backends built at New (cache, limiter, adapter) are
// not reconstructed.
func (e *Engine) ApplyConfig(ctx context.Context, cfg *config.Config) error {
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	prev := e.cfg
	e.cfg = cfg
	if err := e.loadLocked(ctx); err != nil {
		e.cfg = prev
		return err
	}
	return nil
}

// SetBuildInfo exports build metadata through the metrics endpoint.
func (e *Engine) SetBuildInfo(version, commit, buildTime string) {
	e.metrics.SetBuildInfo(version, commit, buildTime)
}

// Handler returns the live HTTP handler.
func (e *Engine) Handler() http.Handler {
	return e.registrar.Handler()
}

// Routes lists the applied bindings.
func (e *Engine) Routes() []string {
	return e.registrar.Routes()
}

// Tree returns the most recently loaded route tree.
func (e *Engine) Tree() *discovery.Tree {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tree
}

// Run serves HTTP until the context is cancelled, then drains within
// the configured shutdown timeout.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        e.registrar.Handler(),
		ReadTimeout:    cfg.Server.ReadTimeout.Duration(),
		WriteTimeout:   cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:    cfg.Server.IdleTimeout.Duration(),
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	e.logger.Info("server listening",
		observability.String("addr", srv.Addr),
		observability.String("adapter", cfg.Adapter),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()

		e.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// Close releases background resources. Safe to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		var errs []error

		e.mu.Lock()
		watcher := e.watcher
		e.watcher = nil
		e.closed = true
		e.mu.Unlock()

		if watcher != nil {
			if err := watcher.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := e.limiter.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := e.cache.Close(); err != nil {
			errs = append(errs, err)
		}
		if e.tracer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := e.tracer.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
			cancel()
		}
		if e.ownLogger {
			_ = e.logger.Sync() // stdout sync fails on some platforms
		}
		e.closeErr = errors.Join(errs...)
	})
	return e.closeErr
}
