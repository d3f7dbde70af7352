package tracing

import "go.opentelemetry.io/otel/attribute"

// Span attribute keys used by the router. Centralized so dashboards can rely
// on stable names.
const (
	keyRequestID = "meridian.request_id"
	keyClientID  = "meridian.client_model_id"
	keyCanonical = "meridian.canonical_model_id"
	keyProvider  = "meridian.provider"
	keyModel     = "meridian.provider_model_id"
	keyAttempt   = "meridian.attempt"
	keyOutcome   = "meridian.outcome"
)

// RequestID annotates a span with the gateway request id.
func RequestID(id string) attribute.KeyValue {
	return attribute.String(keyRequestID, id)
}

// ClientModelID annotates a span with the model id the client asked for.
func ClientModelID(id string) attribute.KeyValue {
	return attribute.String(keyClientID, id)
}

// CanonicalModelID annotates a span with the resolved canonical id.
func CanonicalModelID(id string) attribute.KeyValue {
	return attribute.String(keyCanonical, id)
}

// Provider annotates a span with the dispatching provider.
func Provider(name string) attribute.KeyValue {
	return attribute.String(keyProvider, name)
}

// ProviderModelID annotates a span with the provider-side model id.
func ProviderModelID(id string) attribute.KeyValue {
	return attribute.String(keyModel, id)
}

// Attempt annotates a span with the 1-based attempt index.
func Attempt(n int) attribute.KeyValue {
	return attribute.Int(keyAttempt, n)
}

// Outcome annotates a span with the attempt outcome.
func Outcome(outcome string) attribute.KeyValue {
	return attribute.String(keyOutcome, outcome)
}
