package routing

import (
	"time"

	"meridian-hq/meridian/pkg/providers"
)

// Attempt outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeRetryable   = "retryable_error"
	OutcomePermanent   = "permanent_error"
	OutcomeBreakerOpen = "breaker_open"
	OutcomeEmergency   = "emergency"
	OutcomeCanceled    = "canceled"
)

// Attempt records one step of the failover walk.
type Attempt struct {
	// Provider is the candidate provider name.
	Provider string `json:"provider"`

	// ProviderModelID is the provider-side model id dispatched.
	ProviderModelID string `json:"provider_model_id"`

	// Outcome is one of the Outcome* constants.
	Outcome string `json:"outcome"`

	// StatusCode is the provider status for failed dispatches (0 for
	// transport errors and skipped candidates).
	StatusCode int `json:"status_code,omitempty"`

	// Latency is the dispatch duration. Zero for skipped candidates.
	Latency time.Duration `json:"latency"`
}

// Result is a completed non-streaming route.
type Result struct {
	// Response is the provider response delivered to the caller.
	Response *providers.Response

	// CanonicalID is the resolved catalog model id.
	CanonicalID string

	// Provider and ProviderModelID identify the winning dispatch.
	Provider        string
	ProviderModelID string

	// Attempts is the full failover walk, including the winning attempt.
	Attempts []Attempt

	// CostMicros is the amount debited, in micro-dollars. Zero when the
	// model is unmetered or the debit could not be collected.
	CostMicros int64

	// Unmetered reports that the model carries the default pricing
	// sentinel and was deliberately not billed.
	Unmetered bool

	// Emergency reports that the dispatch bypassed an all-open breaker set.
	Emergency bool
}

// StreamResult is an established streaming route. Billing and breaker
// bookkeeping happen inside Stream as it is consumed.
type StreamResult struct {
	// Stream yields the response chunks. It must be closed by the caller.
	Stream providers.Stream

	// CanonicalID is the resolved catalog model id.
	CanonicalID string

	// Provider and ProviderModelID identify the committed dispatch.
	Provider        string
	ProviderModelID string

	// Attempts is the failover walk up to and including the committed
	// dispatch.
	Attempts []Attempt

	// Emergency reports that the dispatch bypassed an all-open breaker set.
	Emergency bool
}

// Config controls failover behavior.
type Config struct {
	// AttemptTimeout bounds each individual provider dispatch. The overall
	// request deadline comes from the caller's context.
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`

	// ProviderPins maps canonical model ids to a preferred provider. A
	// pinned provider is tried first; the remaining candidates keep their
	// catalog order behind it.
	ProviderPins map[string]string `yaml:"provider_pins"`

	// EmergencyFallback enables dispatching through the first candidate
	// when every candidate's breaker is open.
	EmergencyFallback bool `yaml:"emergency_fallback"`
}

// DefaultConfig returns the default routing configuration.
func DefaultConfig() Config {
	return Config{
		AttemptTimeout:    30 * time.Second,
		EmergencyFallback: true,
	}
}

func (c Config) withDefaults() Config {
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 30 * time.Second
	}
	return c
}
