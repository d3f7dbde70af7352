package providers

import "context"

// Client is the interface every upstream provider adapter implements.
//
// All methods accept a context.Context for cancellation and timeout control.
// Implementations must respect context cancellation and return promptly when
// the context is cancelled; the router bounds every dispatch with a
// per-attempt timeout.
//
// Send and SendStream return *SendError rather than a plain error so the
// caller always has the status classification needed for failover decisions.
// A nil *SendError means success.
type Client interface {
	// Name returns the provider's configured name (e.g. "openai", "bedrock").
	// Names are unique within a router and match catalog candidate entries.
	Name() string

	// Send performs a non-streaming inference call against the given
	// provider-side model id. On failure the returned *SendError reports
	// whether the failure is retryable on another candidate.
	Send(ctx context.Context, providerModelID string, req *Request) (*Response, *SendError)

	// SendStream opens a streaming inference call. A non-nil Stream means the
	// upstream accepted the request and response bytes are flowing; from that
	// point on, errors surface through Stream.Recv and are never retried.
	SendStream(ctx context.Context, providerModelID string, req *Request) (Stream, *SendError)
}

// Stream yields incremental chunks of a streaming response.
//
// Recv returns io.EOF when the stream ends cleanly; any other error means the
// stream terminated abnormally. Close releases the underlying connection and
// is safe to call more than once.
type Stream interface {
	Recv() (*Chunk, error)
	Close() error
}
