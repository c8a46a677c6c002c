// Package util provides utility functions and types for the
// routing engine.
//
// This package contains shared utilities used across the engine
// including error types and validation functions.
//
// # Error Types
//
// Structured error types for consistent error handling:
//
//   - DiscoveryError: route discovery failures with a failure kind
//   - ConfigError: configuration validation errors
//   - MisconfigurationError: invalid per-route settings caught at registration
//   - Common sentinel errors: ErrNotFound, ErrTimeout, etc.
//
// # Validation
//
// Input validation helpers for durations, methods, and headers:
//
//	err := util.ValidateHTTPMethod("GET")
//	err := util.ValidateHeaderName("X-Custom-Header")
package util
