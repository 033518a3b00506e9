package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the engine.
type ErrorCode string

const (
	// ErrNoMatchingPeers indicates the capability matcher found no peer
	// satisfying any required descriptor.
	ErrNoMatchingPeers ErrorCode = "NO_MATCHING_PEERS"
	// ErrNoEligiblePeers indicates selection produced an empty set, for
	// example because every matched peer's circuit breaker is open.
	ErrNoEligiblePeers ErrorCode = "NO_ELIGIBLE_PEERS"
	// ErrPartialResultsDisallowed indicates the global dispatch timeout
	// fired before every peer completed and partial results are off.
	ErrPartialResultsDisallowed ErrorCode = "PARTIAL_RESULTS_DISALLOWED"
	// ErrNoSuccessfulResponses indicates a strategy that must pick a
	// concrete response had zero successes to pick from.
	ErrNoSuccessfulResponses ErrorCode = "NO_SUCCESSFUL_RESPONSES"
	// ErrSimilarityFunction indicates a caller-supplied similarity
	// function failed. Built-in methods never surface this.
	ErrSimilarityFunction ErrorCode = "SIMILARITY_FUNCTION"
	// ErrEmbeddingUnavailable indicates an embedding provider call
	// failed. Recovered internally by the similarity engine.
	ErrEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	// ErrTransport indicates a peer request could not be delivered.
	ErrTransport ErrorCode = "TRANSPORT"
	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrTimeout indicates a single peer request exceeded its deadline.
	ErrTimeout ErrorCode = "TIMEOUT"
)

// Error is a structured error with a code, message, and optional cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// GetErrorCode extracts the error code from an error, unwrapping as
// needed. Returns "" for plain errors.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}
