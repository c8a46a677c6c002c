package pipeline

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/avrouter/internal/binding"
	"github.com/vyrodovalexey/avrouter/internal/observability"
	"github.com/vyrodovalexey/avrouter/internal/util"
)

// CallFunc is a handler method bound to one verb.
type CallFunc func(ctx context.Context, req *Request) (*Response, error)

// Invoker builds the innermost HandlerFunc: it binds parameters
// immediately before the call, recovers panics, and maps handler
// errors onto HTTP responses. specs may be nil for verbs without
// declared parameters.
func Invoker(specs *binding.BoundSpecs, call CallFunc, logger observability.Logger) HandlerFunc {
	return func(ctx context.Context, req *Request) (resp *Response) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("handler panicked",
					observability.Any("panic", r),
					observability.String("route", req.Pattern),
					observability.String("method", req.Method),
					observability.String("stack", string(debug.Stack())),
				)
				resp = Error(http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()

		if specs != nil {
			args, merr := specs.Bind(req.BindingInput())
			if merr != nil {
				return JSON(http.StatusUnprocessableEntity, map[string]any{
					"errors": merr.Violations,
				})
			}
			req.Args = args
		}

		result, err := call(ctx, req)
		if err != nil {
			return errorResponse(err)
		}
		if result == nil {
			return Error(http.StatusInternalServerError, "internal_error", "handler returned no response", nil)
		}
		return result
	}
}

// errorResponse maps a handler error onto an HTTP response.
func errorResponse(err error) *Response {
	switch {
	case errors.Is(err, util.ErrNotFound):
		return Error(http.StatusNotFound, "not_found", "resource not found", nil)
	case errors.Is(err, util.ErrInvalidInput):
		return Error(http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.Is(err, util.ErrUnauthorized):
		return Error(http.StatusUnauthorized, "unauthorized", "unauthorized", nil)
	case errors.Is(err, util.ErrForbidden):
		return Error(http.StatusForbidden, "forbidden", "forbidden", nil)
	case errors.Is(err, util.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return Error(http.StatusRequestTimeout, "timeout", "request timeout", nil)
	default:
		return Error(http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}
