package providers

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// SendError describes a failed provider dispatch.
//
// StatusCode is the upstream HTTP status, or 0 for transport-level failures
// (connection refused, timeout, DNS) where no response was received. The
// router uses Retryable to decide whether to try the next candidate, and the
// circuit breaker uses it to decide whether the failure counts against the
// (provider, model) pair.
type SendError struct {
	// Provider is the name of the provider that produced the error
	Provider string

	// StatusCode is the upstream HTTP status (0 = no response received)
	StatusCode int

	// Message is a human-readable description of the failure
	Message string

	// Err is the underlying error, if any
	Err error
}

// Error implements the error interface.
func (e *SendError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As chains.
func (e *SendError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is worth attempting on a different
// candidate. Transport failures and timeouts (StatusCode 0), server errors
// (5xx), rate limiting (429), and upstream payment errors (402) are
// retryable; every other client error is the caller's fault and retrying
// elsewhere would only repeat it.
func (e *SendError) Retryable() bool {
	return RetryableStatus(e.StatusCode)
}

// RetryableStatus classifies an HTTP status code for failover purposes.
// Status 0 denotes a transport-level failure and is always retryable.
func RetryableStatus(code int) bool {
	switch {
	case code == 0:
		return true
	case code >= 500:
		return true
	case code == 429:
		return true
	case code == 402:
		return true
	default:
		return false
	}
}

// NewStatusError builds a SendError from an upstream HTTP status.
func NewStatusError(provider string, status int, message string) *SendError {
	return &SendError{
		Provider:   provider,
		StatusCode: status,
		Message:    message,
	}
}

// NewTransportError wraps a transport-level failure (no response received).
// Timeouts and connection errors are normalized to StatusCode 0 so they
// classify as retryable.
func NewTransportError(provider string, err error) *SendError {
	msg := "transport failure"
	var netErr net.Error
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		msg = "request timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "request timed out"
	case err != nil:
		msg = err.Error()
	}
	return &SendError{
		Provider: provider,
		Message:  msg,
		Err:      err,
	}
}
