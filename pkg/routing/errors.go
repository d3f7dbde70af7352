package routing

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAllProvidersFailed is the sentinel wrapped by AllProvidersFailedError,
// for errors.Is checks.
var ErrAllProvidersFailed = errors.New("all providers failed")

// AllProvidersFailedError reports an exhausted failover walk. Attempts holds
// every candidate tried or skipped, in order.
type AllProvidersFailedError struct {
	Model    string
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all providers failed for model %q:", e.Model)
	for i, a := range e.Attempts {
		fmt.Fprintf(&b, " [%d] %s/%s: %s", i+1, a.Provider, a.ProviderModelID, a.Outcome)
		if a.StatusCode != 0 {
			fmt.Fprintf(&b, " (status %d)", a.StatusCode)
		}
	}
	return b.String()
}

func (e *AllProvidersFailedError) Unwrap() error {
	return ErrAllProvidersFailed
}

// StreamInterruptedError reports a stream that failed after its first bytes
// were delivered. Failover is no longer possible at that point; the caller
// sees the partial output and this error.
type StreamInterruptedError struct {
	Provider string
	Err      error
}

func (e *StreamInterruptedError) Error() string {
	return fmt.Sprintf("stream from provider %q interrupted: %v", e.Provider, e.Err)
}

func (e *StreamInterruptedError) Unwrap() error {
	return e.Err
}
