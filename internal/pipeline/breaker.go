package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/util"
)

// Breaker wraps the handler invocation in a circuit breaker. An open
// circuit short-circuits with 503 before the handler runs; 5xx
// responses and panics count as failures.
func Breaker(cb *gobreaker.CircuitBreaker, logger observability.Logger) Stage {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) *Response {
			result, err := cb.Execute(func() (any, error) {
				resp := next(ctx, req)
				if resp != nil && resp.Status >= 500 {
					return resp, util.NewServerError(resp.Status)
				}
				return resp, nil
			})

			if err != nil {
				if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
					logger.Warn("circuit breaker rejected request",
						observability.String("route", req.Pattern),
						observability.Error(err),
					)
					return Error(http.StatusServiceUnavailable, "circuit_open", "service unavailable", nil)
				}
				// Failure responses pass through; the error only feeds
				// the breaker's failure count.
				if resp, ok := result.(*Response); ok && resp != nil {
					return resp
				}
				return Error(http.StatusInternalServerError, "internal_error",
					fmt.Sprintf("handler failed: %v", err), nil)
			}

			resp, _ := result.(*Response)
			return resp
		}
	}
}
