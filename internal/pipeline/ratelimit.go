package pipeline

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/ratelimit"
)

// RateLimit enforces the route's limit per client key. Denials carry
// Retry-After and the X-RateLimit headers. A limiter failure fails
// open: the request proceeds and the error is logged.
func RateLimit(limiter ratelimit.Limiter, limit ratelimit.Limit, key KeyFunc, logger observability.Logger, metrics *observability.Metrics) Stage {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			clientKey := req.Pattern + "|" + key(req)

			result, err := limiter.Allow(ctx, clientKey, limit)
			if err != nil {
				logger.Warn("rate limit check failed",
					observability.String("route", req.Pattern),
					observability.Error(err),
				)
				return next(ctx, req)
			}

			if result.Allowed {
				resp := next(ctx, req)
				if resp != nil {
					setLimitHeaders(resp, result)
				}
				return resp
			}

			if metrics != nil {
				metrics.RecordRateLimitRejection(req.Pattern)
			}
			logger.Warn("rate limit exceeded",
				observability.String("event", "security"),
				observability.String("route", req.Pattern),
				observability.String("key", clientKey),
				observability.Int("limit", result.Limit),
			)

			resp := Error(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", nil)
			setLimitHeaders(resp, result)
			retrySecs := int(math.Ceil(result.RetryAfter.Seconds()))
			if retrySecs < 1 {
				retrySecs = 1
			}
			resp.SetHeader("Retry-After", strconv.Itoa(retrySecs))
			return resp
		}
	}
}

// setLimitHeaders writes the X-RateLimit response headers.
func setLimitHeaders(resp *Response, result *ratelimit.Result) {
	resp.SetHeader("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	resp.SetHeader("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	resp.SetHeader("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(result.ResetAfter.Seconds()))))
}
