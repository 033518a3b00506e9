package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrNoEligiblePeers, "no peers eligible after breaker filter")
	assert.Equal(t, "[NO_ELIGIBLE_PEERS] no peers eligible after breaker filter", err.Error())

	withCause := NewError(ErrTransport, "send failed").WithCause(errors.New("connection refused"))
	assert.Equal(t, "[TRANSPORT] send failed: connection refused", withCause.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrTransport, "send failed").WithCause(cause)

	assert.ErrorIs(t, err, cause)
}

func TestGetErrorCode(t *testing.T) {
	err := Errorf(ErrPartialResultsDisallowed, "%d of %d peers completed", 2, 5)
	assert.Equal(t, ErrPartialResultsDisallowed, GetErrorCode(err))
	assert.True(t, IsCode(err, ErrPartialResultsDisallowed))

	// Wrapped errors still resolve.
	wrapped := fmt.Errorf("round failed: %w", err)
	assert.Equal(t, ErrPartialResultsDisallowed, GetErrorCode(wrapped))

	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsCode(nil, ErrTransport))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(ErrTransport, "send failed").WithRetryable(true)))
	assert.False(t, IsRetryable(NewError(ErrInvalidConfig, "bad threshold")))
	assert.False(t, IsRetryable(errors.New("plain")))
}
