package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		retryable bool
	}{
		{ErrorTypeTransient, true},
		{ErrorTypeRateLimit, true},
		{ErrorTypeInvalidInput, false},
		{ErrorTypeAuth, false},
		{ErrorTypeQuota, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errorType), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(tt.errorType))
		})
	}
}

func TestClassifyStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{0, ErrorTypeTransient},
		{429, ErrorTypeRateLimit},
		{401, ErrorTypeAuth},
		{403, ErrorTypeAuth},
		{402, ErrorTypeQuota},
		{400, ErrorTypeInvalidInput},
		{413, ErrorTypeInvalidInput},
		{422, ErrorTypeInvalidInput},
		{500, ErrorTypeTransient},
		{502, ErrorTypeTransient},
		{503, ErrorTypeTransient},
		{418, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStatusCode(tt.code))
		})
	}
}

func TestTypeOf(t *testing.T) {
	t.Run("DirectError", func(t *testing.T) {
		err := New(ErrorTypeRateLimit, "slow down")
		assert.Equal(t, ErrorTypeRateLimit, TypeOf(err))
	})

	t.Run("WrappedError", func(t *testing.T) {
		err := fmt.Errorf("page 3: %w", New(ErrorTypeAuth, "bad key"))
		assert.Equal(t, ErrorTypeAuth, TypeOf(err))
	})

	t.Run("UntypedError", func(t *testing.T) {
		assert.Equal(t, ErrorTypeUnknown, TypeOf(errors.New("plain")))
	})
}

func TestErrorFormatting(t *testing.T) {
	withCode := NewWithCode(ErrorTypeRateLimit, 429, "too many requests")
	assert.Contains(t, withCode.Error(), "429")
	assert.Contains(t, withCode.Error(), "rate_limit")

	plain := New(ErrorTypeTransient, "connection reset")
	assert.Contains(t, plain.Error(), "transient")
	assert.NotContains(t, plain.Error(), "code")
}

func TestCorruptCheckpointSentinel(t *testing.T) {
	wrapped := fmt.Errorf("%w: /tmp/checkpoint.json: unexpected end of input", ErrCorruptCheckpoint)
	assert.True(t, errors.Is(wrapped, ErrCorruptCheckpoint))
}
