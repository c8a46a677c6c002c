// Package ratelimit provides fixed window rate limiting keyed by
// arbitrary client strings. Limits are parsed from compact route
// declarations like "100/min" and enforced per key by an in-memory or
// store-backed limiter.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vyrodovalexey/avrouter/internal/util"
)

// Limit is a parsed rate limit declaration.
type Limit struct {
	// Count is the maximum number of requests allowed per window.
	Count int

	// Window is the fixed window duration.
	Window time.Duration
}

// String returns the compact form of the limit.
func (l Limit) String() string {
	return fmt.Sprintf("%d/%s", l.Count, l.Window)
}

// IsZero reports whether the limit is unset.
func (l Limit) IsZero() bool {
	return l.Count == 0 && l.Window == 0
}

// periodNames maps declaration period names to window durations.
var periodNames = map[string]time.Duration{
	"sec":    time.Second,
	"second": time.Second,
	"min":    time.Minute,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseLimit parses a "<count>/<period>" declaration. Count must be a
// positive integer; period is one of sec, second, min, minute, hour,
// day. Whitespace around either part is tolerated. Parse failures are
// registration-time misconfigurations, never request-time errors.
func ParseLimit(s string) (Limit, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return Limit{}, util.NewMisconfigurationError("ratelimit", "limit",
			fmt.Sprintf("invalid limit %q (expected <count>/<period>)", s))
	}

	count, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || count <= 0 {
		return Limit{}, util.NewMisconfigurationError("ratelimit", "limit",
			fmt.Sprintf("invalid count in limit %q (expected a positive integer)", s))
	}

	period := strings.ToLower(strings.TrimSpace(parts[1]))
	window, ok := periodNames[period]
	if !ok {
		return Limit{}, util.NewMisconfigurationError("ratelimit", "limit",
			fmt.Sprintf("invalid period %q in limit %q (expected sec, min, hour, or day)", period, s))
	}

	return Limit{Count: count, Window: window}, nil
}

// Limiter checks requests against fixed window limits.
type Limiter interface {
	// Allow checks whether one more request is allowed for the key
	// under the given limit, incrementing the window counter when it
	// is. The check and increment happen atomically per key.
	Allow(ctx context.Context, key string, limit Limit) (*Result, error)

	// Reset clears the state for the given key.
	Reset(ctx context.Context, key string) error

	// Close releases limiter resources.
	Close() error
}

// Result represents the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request is allowed.
	Allowed bool

	// Limit is the maximum number of requests allowed per window.
	Limit int

	// Remaining is the number of requests remaining in the window.
	Remaining int

	// ResetAfter is the duration until the window resets.
	ResetAfter time.Duration

	// RetryAfter is the duration to wait before retrying (when denied).
	RetryAfter time.Duration
}

// windowStart truncates t to the start of its fixed window.
func windowStart(t time.Time, window time.Duration) time.Time {
	windowNanos := window.Nanoseconds()
	return time.Unix(0, (t.UnixNano()/windowNanos)*windowNanos)
}

// NoopLimiter always allows requests.
type NoopLimiter struct{}

// NewNoopLimiter creates a limiter that never denies.
func NewNoopLimiter() *NoopLimiter {
	return &NoopLimiter{}
}

// Allow implements Limiter.
func (l *NoopLimiter) Allow(_ context.Context, _ string, limit Limit) (*Result, error) {
	return &Result{Allowed: true, Limit: limit.Count, Remaining: limit.Count}, nil
}

// Reset implements Limiter.
func (l *NoopLimiter) Reset(_ context.Context, _ string) error {
	return nil
}

// Close implements Limiter.
func (l *NoopLimiter) Close() error {
	return nil
}
