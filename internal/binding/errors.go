package binding

import "fmt"

// Violation describes one failed binding for one parameter.
type Violation struct {
	Field  string `json:"field"`
	Source string `json:"source"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

// Error returns a formatted message for the violation.
func (v Violation) Error() string {
	return fmt.Sprintf("binding field %q (%s): %s", v.Field, v.Source, v.Reason)
}

// MultiError aggregates every violation from one Bind call. Binding
// never stops at the first error; the caller reports all of them in
// one response.
type MultiError struct {
	Violations []Violation
}

// Error returns a formatted error message.
func (m *MultiError) Error() string {
	if len(m.Violations) == 0 {
		return "no binding errors"
	}
	if len(m.Violations) == 1 {
		return m.Violations[0].Error()
	}
	return fmt.Sprintf("%d binding errors occurred", len(m.Violations))
}

// Add appends a violation.
func (m *MultiError) Add(field string, source Source, value, reason string) {
	m.Violations = append(m.Violations, Violation{
		Field:  field,
		Source: source.String(),
		Value:  value,
		Reason: reason,
	})
}

// HasErrors returns true if any violation was recorded.
func (m *MultiError) HasErrors() bool {
	return len(m.Violations) > 0
}

// ErrorOrNil returns nil when no violation was recorded.
func (m *MultiError) ErrorOrNil() *MultiError {
	if !m.HasErrors() {
		return nil
	}
	return m
}
