package limits

import (
	"time"

	"meridian-hq/meridian/pkg/limits/ratelimit"
)

// Decision is the outcome of an admission check. A denial is an expected
// outcome and is never surfaced as an error.
type Decision struct {
	// Allowed indicates if the request may proceed.
	Allowed bool

	// Reason explains the denial (empty when allowed).
	Reason string

	// Limit is the configured limit of the denying dimension.
	Limit int64

	// Remaining is the headroom left in the denying dimension.
	Remaining int64

	// RetryAfter is the suggested client backoff.
	RetryAfter time.Duration
}

// ReleaseFunc finishes an admitted request: it frees the concurrency slot
// and records actual token usage in the rolling window. It is safe to call
// more than once; only the first call has effect. For denied decisions it is
// a no-op.
type ReleaseFunc func(actualTokens int)

// ConfigProvider supplies the rate limit configuration for a client key.
// Implementations typically read from the gateway configuration; a lookup
// error triggers degraded mode with the registry's default config.
type ConfigProvider interface {
	ConfigFor(key string) (ratelimit.Config, error)
}

// ConfigProviderFunc adapts a function to the ConfigProvider interface.
type ConfigProviderFunc func(key string) (ratelimit.Config, error)

// ConfigFor implements ConfigProvider.
func (f ConfigProviderFunc) ConfigFor(key string) (ratelimit.Config, error) {
	return f(key)
}

// DefaultConfig is the conservative fallback applied when a key's
// configuration cannot be resolved.
var DefaultConfig = ratelimit.Config{
	RequestsPerMinute: 60,
	TokensPerMinute:   100000,
	BurstLimit:        60,
	ConcurrencyLimit:  8,
}

// DefaultIdleTimeout is how long a key may sit unused before its limiter
// state is pruned.
const DefaultIdleTimeout = 15 * time.Minute
