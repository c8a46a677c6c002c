// Package util provides utility functions and types for the routing engine.
//
// # Error Conventions
//
// This project follows a standardized error pattern across all packages:
//
//   - Sentinel errors (errors.New) for well-known, stable conditions
//     that callers check with errors.Is(). Example: ErrNotFound.
//   - Structured error types for context-rich errors that carry
//     additional fields (e.g., DiscoveryError, ConfigError). Each type
//     implements Error(), Unwrap() (if wrapping), and Is().
//   - fmt.Errorf with %w for ad-hoc wrapping that adds context to an
//     existing error without introducing a new type.
//
// All custom error types must implement:
//
//	Error() string           – human-readable message
//	Unwrap() error           – if the type wraps another error
//	Is(target error) bool    – for errors.Is() compatibility
package util

import (
	"errors"
	"fmt"
	"time"
)

// Common sentinel errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrTimeout         = errors.New("timeout")
	ErrCircuitOpen     = errors.New("circuit breaker open")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrConfigInvalid   = errors.New("invalid configuration")
	ErrHandlerNotFound = errors.New("handler not registered")
	ErrRouteExists     = errors.New("route already registered")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrMisconfigured   = errors.New("misconfigured")
)

// DiscoveryErrorKind classifies route discovery failures.
type DiscoveryErrorKind string

// Discovery failure kinds.
const (
	DiscoveryPathEscape       DiscoveryErrorKind = "path_escape"
	DiscoveryDuplicateRoute   DiscoveryErrorKind = "duplicate_route"
	DiscoveryInvalidExtension DiscoveryErrorKind = "invalid_extension"
	DiscoveryInvalidHandler   DiscoveryErrorKind = "invalid_handler"
	DiscoveryInvalidParam     DiscoveryErrorKind = "invalid_param"
)

// DiscoveryError represents a route discovery failure. Discovery is
// fail-fast: the first DiscoveryError aborts the walk and no partial
// route tree is produced.
type DiscoveryError struct {
	Kind    DiscoveryErrorKind
	Path    string // filesystem path that triggered the failure
	Pattern string // URL pattern involved, if resolved
	Cause   error
}

// Error implements the error interface.
func (e *DiscoveryError) Error() string {
	msg := fmt.Sprintf("route discovery failed (%s) at %s", e.Kind, e.Path)
	if e.Pattern != "" {
		msg += fmt.Sprintf(" (pattern %s)", e.Pattern)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *DiscoveryError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *DiscoveryError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	if other, ok := target.(*DiscoveryError); ok {
		return other.Kind == "" || other.Kind == e.Kind
	}
	return errors.Is(e.Cause, target)
}

// NewDiscoveryError creates a new DiscoveryError.
func NewDiscoveryError(kind DiscoveryErrorKind, path, pattern string, cause error) *DiscoveryError {
	return &DiscoveryError{Kind: kind, Path: path, Pattern: pattern, Cause: cause}
}

// ConfigError represents a configuration-related error.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error at %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *ConfigError) Is(target error) bool {
	if target == ErrConfigInvalid {
		return true
	}
	_, ok := target.(*ConfigError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewConfigErrorWithCause creates a new ConfigError with a cause.
func NewConfigErrorWithCause(field, message string, cause error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Cause: cause}
}

// MisconfigurationError represents an invalid per-route or per-component
// setting detected at registration time. Misconfiguration is never
// deferred to request handling.
type MisconfigurationError struct {
	Component string
	Field     string
	Reason    string
}

// Error implements the error interface.
func (e *MisconfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s misconfigured: %s: %s", e.Component, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s misconfigured: %s", e.Component, e.Reason)
}

// Is checks if the error matches the target.
func (e *MisconfigurationError) Is(target error) bool {
	if target == ErrConfigInvalid || target == ErrMisconfigured {
		return true
	}
	_, ok := target.(*MisconfigurationError)
	return ok
}

// NewMisconfigurationError creates a new MisconfigurationError.
func NewMisconfigurationError(component, field, reason string) *MisconfigurationError {
	return &MisconfigurationError{Component: component, Field: field, Reason: reason}
}

// TimeoutError represents a timeout error.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	Cause     error
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %v during %s", e.Duration, e.Operation)
}

// Unwrap returns the underlying error.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if target == ErrTimeout {
		return true
	}
	_, ok := target.(*TimeoutError)
	return ok || errors.Is(e.Cause, target)
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

// RateLimitError represents a rate limit exceeded error.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded (limit: %d, retry after: %v)", e.Limit, e.RetryAfter)
}

// Is checks if the error matches the target.
func (e *RateLimitError) Is(target error) bool {
	if target == ErrRateLimited {
		return true
	}
	_, ok := target.(*RateLimitError)
	return ok
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(limit int, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{Limit: limit, RetryAfter: retryAfter}
}

// CircuitOpenError represents a circuit breaker open error.
type CircuitOpenError struct {
	Name  string
	State string
}

// Error implements the error interface.
func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is %s", e.Name, e.State)
}

// Is checks if the error matches the target.
func (e *CircuitOpenError) Is(target error) bool {
	if target == ErrCircuitOpen {
		return true
	}
	_, ok := target.(*CircuitOpenError)
	return ok
}

// NewCircuitOpenError creates a new CircuitOpenError.
func NewCircuitOpenError(name, state string) *CircuitOpenError {
	return &CircuitOpenError{Name: name, State: state}
}

// ServerError signals that a handler produced a 5xx status code. It is
// used by the circuit breaker stage to count failures.
type ServerError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error: status %d", e.StatusCode)
}

// NewServerError creates a new ServerError with the given status code.
func NewServerError(statusCode int) *ServerError {
	return &ServerError{StatusCode: statusCode}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsClientError returns true if the error maps to a client fault (4xx).
func IsClientError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNotFound) {
		return true
	}

	if errors.Is(err, ErrInvalidInput) {
		return true
	}

	return errors.Is(err, ErrRateLimited)
}

// IsServerError returns true if the error maps to a server fault (5xx).
func IsServerError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) {
		return true
	}

	if errors.Is(err, ErrTimeout) {
		return true
	}

	var srvErr *ServerError
	return errors.As(err, &srvErr)
}
