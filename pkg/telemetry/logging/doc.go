// Package logging configures the structured logger used across the gateway.
//
// All components log through log/slog. This package owns the handler setup
// (level, format, destination) and the context helpers that thread a request
// id through every log line of a routing attempt.
package logging
