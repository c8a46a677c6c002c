package util

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDiscoveryError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		kind           DiscoveryErrorKind
		path           string
		pattern        string
		cause          error
		expectedString string
	}{
		{
			name:           "path escape",
			kind:           DiscoveryPathEscape,
			path:           "/routes/users/link",
			expectedString: "route discovery failed (path_escape) at /routes/users/link",
		},
		{
			name:           "duplicate with pattern",
			kind:           DiscoveryDuplicateRoute,
			path:           "/routes/users/[name]",
			pattern:        "/users/{name}",
			expectedString: "route discovery failed (duplicate_route) at /routes/users/[name] (pattern /users/{name})",
		},
		{
			name:           "with cause",
			kind:           DiscoveryInvalidHandler,
			path:           "/routes/orders",
			cause:          ErrHandlerNotFound,
			expectedString: "route discovery failed (invalid_handler) at /routes/orders: handler not registered",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewDiscoveryError(tt.kind, tt.path, tt.pattern, tt.cause)

			assert.Equal(t, tt.expectedString, err.Error())
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.cause, err.Unwrap())
		})
	}
}

func TestDiscoveryError_Is(t *testing.T) {
	t.Parallel()

	err := NewDiscoveryError(DiscoveryPathEscape, "/routes/x", "", nil)

	assert.True(t, errors.Is(err, ErrConfigInvalid))
	assert.True(t, errors.Is(err, &DiscoveryError{}))
	assert.True(t, errors.Is(err, &DiscoveryError{Kind: DiscoveryPathEscape}))
	assert.False(t, errors.Is(err, &DiscoveryError{Kind: DiscoveryDuplicateRoute}))

	wrapped := NewDiscoveryError(DiscoveryInvalidHandler, "/routes/y", "", ErrHandlerNotFound)
	assert.True(t, errors.Is(wrapped, ErrHandlerNotFound))
}

func TestConfigError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		field          string
		message        string
		cause          error
		expectedString string
	}{
		{
			name:           "with field",
			field:          "routes.root",
			message:        "directory does not exist",
			cause:          nil,
			expectedString: "config error at routes.root: directory does not exist",
		},
		{
			name:           "without field",
			field:          "",
			message:        "invalid configuration",
			cause:          nil,
			expectedString: "config error: invalid configuration",
		},
		{
			name:           "with cause",
			field:          "server.port",
			message:        "invalid port",
			cause:          errors.New("port out of range"),
			expectedString: "config error at server.port: invalid port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var err *ConfigError
			if tt.cause != nil {
				err = NewConfigErrorWithCause(tt.field, tt.message, tt.cause)
			} else {
				err = NewConfigError(tt.field, tt.message)
			}

			assert.Equal(t, tt.expectedString, err.Error())
			assert.Equal(t, tt.field, err.Field)
			assert.Equal(t, tt.message, err.Message)
			assert.Equal(t, tt.cause, err.Unwrap())
		})
	}
}

func TestConfigError_Is(t *testing.T) {
	t.Parallel()

	err := NewConfigError("field", "message")

	assert.True(t, err.Is(&ConfigError{}))
	assert.True(t, errors.Is(err, ErrConfigInvalid))
	assert.False(t, err.Is(errors.New("other error")))

	errWithCause := NewConfigErrorWithCause("field", "message", ErrInvalidInput)
	assert.True(t, errors.Is(errWithCause, ErrInvalidInput))
}

func TestMisconfigurationError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		component      string
		field          string
		reason         string
		expectedString string
	}{
		{
			name:           "with field",
			component:      "ratelimit",
			field:          "rateLimitPer",
			reason:         "cannot combine ip with a custom key",
			expectedString: "ratelimit misconfigured: rateLimitPer: cannot combine ip with a custom key",
		},
		{
			name:           "without field",
			component:      "authorization",
			reason:         "roles require a check function",
			expectedString: "authorization misconfigured: roles require a check function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := NewMisconfigurationError(tt.component, tt.field, tt.reason)

			assert.Equal(t, tt.expectedString, err.Error())
			assert.True(t, errors.Is(err, ErrConfigInvalid))
		})
	}
}

func TestTimeoutError(t *testing.T) {
	t.Parallel()

	err := NewTimeoutError("dispatch", 5*time.Second)

	assert.Equal(t, "timeout after 5s during dispatch", err.Error())
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, err.Is(&TimeoutError{}))
	assert.False(t, err.Is(ErrNotFound))
}

func TestRateLimitError(t *testing.T) {
	t.Parallel()

	err := NewRateLimitError(100, 30*time.Second)

	assert.Contains(t, err.Error(), "limit: 100")
	assert.Contains(t, err.Error(), "retry after: 30s")
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.True(t, err.Is(&RateLimitError{}))
}

func TestCircuitOpenError(t *testing.T) {
	t.Parallel()

	err := NewCircuitOpenError("GET /users/{id}", "open")

	assert.Equal(t, "circuit breaker GET /users/{id} is open", err.Error())
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestServerError(t *testing.T) {
	t.Parallel()

	err := NewServerError(503)

	assert.Equal(t, "server error: status 503", err.Error())
	assert.Equal(t, 503, err.StatusCode)
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, "context"))

	wrapped := WrapError(ErrNotFound, "loading route")
	assert.Equal(t, "loading route: not found", wrapped.Error())
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestIsClientError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "not found", err: ErrNotFound, expected: true},
		{name: "invalid input", err: ErrInvalidInput, expected: true},
		{name: "rate limited", err: NewRateLimitError(10, time.Second), expected: true},
		{name: "timeout", err: ErrTimeout, expected: false},
		{name: "other", err: errors.New("boom"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsClientError(tt.err))
		})
	}
}

func TestIsServerError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "timeout", err: NewTimeoutError("dispatch", time.Second), expected: true},
		{name: "circuit open", err: NewCircuitOpenError("x", "open"), expected: true},
		{name: "server error", err: NewServerError(500), expected: true},
		{name: "rate limited", err: ErrRateLimited, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, IsServerError(tt.err))
		})
	}
}
