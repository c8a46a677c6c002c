package pipeline

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avrouter/internal/authz"
	"github.com/vyrodovalexey/avrouter/internal/cache"
	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/ratelimit"
)

// Config declares the stages of one route and method chain. A nil or
// zero collaborator omits its stage; the relative order of the
// remaining stages is fixed.
type Config struct {
	// Invoke is the innermost handler invocation, usually built with
	// Invoker.
	Invoke HandlerFunc

	Logger  observability.Logger
	Metrics *observability.Metrics

	// Timeout bounds the chain below logging. Zero disables the stage.
	Timeout time.Duration

	// Limiter, Limit, and LimitKey configure the rate limit stage.
	Limiter  ratelimit.Limiter
	Limit    ratelimit.Limit
	LimitKey KeyFunc

	// Gate, AuthRoles, and AuthRequired configure authorization.
	Gate         *authz.Gate
	AuthRoles    []string
	AuthRequired bool

	// Cache and CacheTTL configure the response cache stage.
	Cache    cache.Cache
	CacheTTL time.Duration

	// Breaker wraps the handler invocation when set.
	Breaker *gobreaker.CircuitBreaker
}

// Build assembles the decorator chain, innermost first: handler
// invocation, optional circuit breaker, response cache, authorization,
// rate limit, timeout, and logging outermost.
func Build(cfg Config) HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	chain := cfg.Invoke

	if cfg.Breaker != nil {
		chain = Breaker(cfg.Breaker, logger)(chain)
	}

	if cfg.Cache != nil && cfg.CacheTTL > 0 {
		chain = Cached(cfg.Cache, cfg.CacheTTL, logger)(chain)
	}

	if cfg.Gate != nil && (cfg.AuthRequired || len(cfg.AuthRoles) > 0) {
		chain = Authorize(cfg.Gate, cfg.AuthRoles, cfg.AuthRequired)(chain)
	}

	if cfg.Limiter != nil && !cfg.Limit.IsZero() {
		key := cfg.LimitKey
		if key == nil {
			key = GlobalKey()
		}
		chain = RateLimit(cfg.Limiter, cfg.Limit, key, logger, cfg.Metrics)(chain)
	}

	if cfg.Timeout > 0 {
		chain = Timeout(cfg.Timeout, logger, cfg.Metrics)(chain)
	}

	return Logging(logger, cfg.Metrics)(chain)
}
