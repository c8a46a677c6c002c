package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateHeaderName(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		expectErr bool
	}{
		{
			name:      "valid simple header",
			header:    "X-Request-ID",
			expectErr: false,
		},
		{
			name:      "valid with special chars",
			header:    "X-Custom_Header.v2",
			expectErr: false,
		},
		{
			name:      "empty header",
			header:    "",
			expectErr: true,
		},
		{
			name:      "header with space",
			header:    "X Request",
			expectErr: true,
		},
		{
			name:      "header with colon",
			header:    "X-Header:",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeaderName(tt.header)
			if tt.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePort(t *testing.T) {
	assert.NoError(t, ValidatePort(1))
	assert.NoError(t, ValidatePort(8080))
	assert.NoError(t, ValidatePort(65535))
	assert.Error(t, ValidatePort(0))
	assert.Error(t, ValidatePort(-1))
	assert.Error(t, ValidatePort(65536))
}

func TestValidateNonNegativePort(t *testing.T) {
	assert.NoError(t, ValidateNonNegativePort(0))
	assert.NoError(t, ValidateNonNegativePort(65535))
	assert.Error(t, ValidateNonNegativePort(-1))
	assert.Error(t, ValidateNonNegativePort(70000))
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  time.Duration
		expectErr bool
	}{
		{
			name:     "empty string",
			input:    "",
			expected: 0,
		},
		{
			name:     "go duration",
			input:    "30s",
			expected: 30 * time.Second,
		},
		{
			name:     "composite duration",
			input:    "1h30m",
			expected: 90 * time.Minute,
		},
		{
			name:     "bare number is seconds",
			input:    "45",
			expected: 45 * time.Second,
		},
		{
			name:      "garbage",
			input:     "not-a-duration",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDuration(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, d)
		})
	}
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, ValidateDuration(0))
	assert.NoError(t, ValidateDuration(time.Second))
	assert.Error(t, ValidateDuration(-time.Second))
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Millisecond))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.Error(t, ValidatePositiveDuration(-time.Second))
}

func TestValidateRegex(t *testing.T) {
	assert.NoError(t, ValidateRegex(""))
	assert.NoError(t, ValidateRegex(`^[a-z]+$`))
	assert.Error(t, ValidateRegex(`([unclosed`))
}

func TestValidateHTTPMethod(t *testing.T) {
	for _, method := range []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "get"} {
		assert.NoError(t, ValidateHTTPMethod(method), method)
	}

	for _, method := range []string{"", "OPTIONS", "TRACE", "CONNECT", "FETCH"} {
		assert.Error(t, ValidateHTTPMethod(method), method)
	}
}

func TestValidateNonEmpty(t *testing.T) {
	assert.NoError(t, ValidateNonEmpty("value", "field"))
	assert.Error(t, ValidateNonEmpty("", "field"))
	assert.Error(t, ValidateNonEmpty("   ", "field"))
}

func TestIsNumeric(t *testing.T) {
	assert.True(t, isNumeric("123"))
	assert.False(t, isNumeric(""))
	assert.False(t, isNumeric("12a"))
	assert.False(t, isNumeric("-5"))
}
