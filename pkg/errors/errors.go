package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents different types of errors the conversion endpoint can return
type ErrorType string

const (
	ErrorTypeTransient    ErrorType = "transient"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeInvalidInput ErrorType = "invalid_input"
	ErrorTypeAuth         ErrorType = "auth"
	ErrorTypeQuota        ErrorType = "quota_exhausted"
	ErrorTypeUnknown      ErrorType = "unknown"
)

// ErrCorruptCheckpoint is returned when persisted checkpoint state cannot be
// parsed. It is fatal for the run and must never be silently discarded.
var ErrCorruptCheckpoint = errors.New("checkpoint file is corrupt")

// Error represents a conversion error with type information
type Error struct {
	Type    ErrorType
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Type, e.Message)
}

// New creates a typed conversion error
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// NewWithCode creates a typed conversion error carrying an HTTP status code
func NewWithCode(errorType ErrorType, code int, message string) *Error {
	return &Error{Type: errorType, Message: message, Code: code}
}

// IsRetryable checks if an error type should be retried
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeTransient, ErrorTypeRateLimit:
		return true
	case ErrorTypeInvalidInput, ErrorTypeAuth, ErrorTypeQuota:
		return false
	default:
		return false
	}
}

// TypeOf returns the classification of err, or ErrorTypeUnknown if err does
// not wrap a typed conversion error.
func TypeOf(err error) ErrorType {
	var convErr *Error
	if errors.As(err, &convErr) {
		return convErr.Type
	}
	return ErrorTypeUnknown
}

// ClassifyStatusCode maps an HTTP status code from the conversion endpoint to
// an error type
func ClassifyStatusCode(statusCode int) ErrorType {
	switch {
	case statusCode == 0: // Network error
		return ErrorTypeTransient
	case statusCode == 429:
		return ErrorTypeRateLimit
	case statusCode == 401 || statusCode == 403:
		return ErrorTypeAuth
	case statusCode == 402:
		return ErrorTypeQuota
	case statusCode == 400 || statusCode == 413 || statusCode == 422:
		return ErrorTypeInvalidInput
	case statusCode >= 500:
		return ErrorTypeTransient
	default:
		return ErrorTypeUnknown
	}
}
