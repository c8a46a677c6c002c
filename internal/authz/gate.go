// Package authz evaluates per-route authorization through a pluggable
// check function. The engine never parses credentials itself; the host
// application supplies a CheckFunc and the gate maps its outcome onto
// an HTTP decision. The default posture is deny.
package authz

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/avrouter/internal/observability"
)

// gateTracer is the OTEL tracer used for authorization decisions.
var gateTracer = otel.Tracer("avrouter/authz")

// ErrNoIdentity is the sentinel a CheckFunc returns when the request
// carries no authenticated identity.
var ErrNoIdentity = errors.New("no authenticated identity")

// CheckFunc is the authorization contract supplied by the host
// application. The in-flight request is available from ctx; roles are
// the route's required roles (may be empty when the route only demands
// authentication). It returns whether the caller may proceed, or an
// error when authentication itself failed.
type CheckFunc func(ctx context.Context, roles []string) (bool, error)

// Decision is the outcome of one authorization evaluation. StatusCode
// is meaningful only when Allowed is false.
type Decision struct {
	Allowed    bool
	StatusCode int
	Reason     string
}

// Evaluation outcomes recorded in metrics.
const (
	outcomeAllow           = "allow"
	outcomeUnauthenticated = "deny_unauthenticated"
	outcomeForbidden       = "deny_forbidden"
	outcomeMisconfigured   = "deny_misconfigured"
)

// Gate evaluates authorization for routes that demand it. Decisions
// are never cached; every request re-evaluates.
type Gate struct {
	check   CheckFunc
	logger  observability.Logger
	metrics *observability.Metrics
}

// GateOption is a functional option for the gate.
type GateOption func(*Gate)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics *observability.Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = metrics
	}
}

// NewGate creates a gate around a check function. A nil check is
// legal; routes that demand authorization then deny with 500.
func NewGate(check CheckFunc, opts ...GateOption) *Gate {
	g := &Gate{
		check:  check,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate decides whether the current request may proceed. required
// reflects the route's auth flag; roles are its required roles. A
// route that demands authorization while no check function is
// configured denies with 500 rather than failing open.
func (g *Gate) Evaluate(ctx context.Context, roles []string, required bool) Decision {
	ctx, span := gateTracer.Start(ctx, "authz.evaluate",
		trace.WithAttributes(
			attribute.StringSlice("authz.roles", roles),
			attribute.Bool("authz.required", required),
		),
	)
	defer span.End()

	demanded := required || len(roles) > 0
	if !demanded {
		return g.finish(span, outcomeAllow, Decision{Allowed: true})
	}

	if g.check == nil {
		g.logger.Error("authorization demanded but no check function configured",
			observability.String("event", "security"),
			observability.Any("roles", roles),
		)
		return g.finish(span, outcomeMisconfigured, Decision{
			Allowed:    false,
			StatusCode: 500,
			Reason:     "authorization misconfigured",
		})
	}

	allowed, err := g.check(ctx, roles)
	switch {
	case err != nil:
		g.logger.Warn("authentication failed",
			observability.String("event", "security"),
			observability.Error(err),
		)
		return g.finish(span, outcomeUnauthenticated, Decision{
			Allowed:    false,
			StatusCode: 401,
			Reason:     "authentication required",
		})

	case !allowed:
		g.logger.Warn("authorization denied",
			observability.String("event", "security"),
			observability.Any("roles", roles),
		)
		return g.finish(span, outcomeForbidden, Decision{
			Allowed:    false,
			StatusCode: 403,
			Reason:     "insufficient role",
		})

	case allowed:
		return g.finish(span, outcomeAllow, Decision{Allowed: true})

	default:
		return g.finish(span, outcomeMisconfigured, Decision{
			Allowed:    false,
			StatusCode: 500,
			Reason:     "authorization failed",
		})
	}
}

// finish records the outcome on the span and in metrics.
func (g *Gate) finish(span trace.Span, outcome string, d Decision) Decision {
	span.SetAttributes(
		attribute.String("authz.outcome", outcome),
		attribute.Bool("authz.allowed", d.Allowed),
	)
	if g.metrics != nil {
		g.metrics.RecordAuthzDecision(outcome)
	}
	return d
}
