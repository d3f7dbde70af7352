package ratelimit

import (
	"fmt"
	"time"
)

// Config contains the rate limits for a single client key.
// A zero value for any dimension disables that check.
type Config struct {
	// RequestsPerMinute limits requests over a rolling one-minute window.
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// TokensPerMinute limits tokens (prompt + completion) over a rolling
	// one-minute window. Admission checks the pre-dispatch estimate; the
	// window records actual usage after completion.
	TokensPerMinute int `yaml:"tokens_per_minute"`

	// BurstLimit is the burst bucket capacity. The bucket refills at
	// BurstLimit/60 tokens per second, smoothing short spikes without
	// changing the sustained rate.
	BurstLimit int `yaml:"burst_limit"`

	// ConcurrencyLimit caps simultaneous in-flight requests.
	ConcurrencyLimit int `yaml:"concurrency_limit"`
}

// Validate rejects configurations that cannot behave as intended.
//
// A burst capacity below the per-minute request rate is the pathological
// case: the bucket refills at BurstLimit/60 per second, so it would throttle
// traffic below the configured request rate and the window limit could never
// be reached.
func (c Config) Validate() error {
	if c.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must be >= 0, got %d", c.RequestsPerMinute)
	}
	if c.TokensPerMinute < 0 {
		return fmt.Errorf("tokens_per_minute must be >= 0, got %d", c.TokensPerMinute)
	}
	if c.BurstLimit < 0 {
		return fmt.Errorf("burst_limit must be >= 0, got %d", c.BurstLimit)
	}
	if c.ConcurrencyLimit < 0 {
		return fmt.Errorf("concurrency_limit must be >= 0, got %d", c.ConcurrencyLimit)
	}
	if c.BurstLimit > 0 && c.RequestsPerMinute > 0 && c.BurstLimit < c.RequestsPerMinute {
		return fmt.Errorf("burst_limit %d is below requests_per_minute %d: refill rate would throttle the configured request rate",
			c.BurstLimit, c.RequestsPerMinute)
	}
	return nil
}

// Denial reasons reported in CheckResult.Reason.
const (
	ReasonRequestsPerMinute = "requests per minute limit exceeded"
	ReasonTokensPerMinute   = "tokens per minute limit exceeded"
	ReasonBurst             = "burst limit exceeded"
	ReasonConcurrency       = "concurrency limit exceeded"
)

// CheckResult contains the outcome of an admission check.
type CheckResult struct {
	// Allowed indicates if the request is permitted.
	Allowed bool

	// Reason explains why the request was denied (if Allowed=false).
	Reason string

	// Limit is the configured limit of the dimension that denied.
	Limit int64

	// Remaining is how many requests/tokens remain in that dimension.
	Remaining int64

	// RetryAfter suggests how long to wait before retrying.
	RetryAfter time.Duration
}
