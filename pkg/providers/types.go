package providers

// Message is a single conversation turn in a normalized request.
type Message struct {
	// Role is the message role: "system", "user", or "assistant"
	Role string `json:"role"`

	// Content is the message text content
	Content string `json:"content"`
}

// Request is the provider-agnostic inference request. The router fills
// ProviderModelID per candidate; callers address models by their client-facing
// id, which the catalog resolves before dispatch.
type Request struct {
	// Messages is the conversation history, oldest first
	Messages []Message `json:"messages"`

	// MaxTokens caps the completion length (0 = provider default)
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling randomness (0.0-2.0)
	Temperature float64 `json:"temperature,omitempty"`

	// Metadata carries opaque request annotations (request id, client key)
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Usage reports token consumption for a completed request as counted by the
// provider. The ledger charges actual usage, never the pre-admission estimate.
type Usage struct {
	// InputTokens is the number of prompt tokens consumed
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the number of completion tokens generated
	OutputTokens int `json:"output_tokens"`
}

// Total returns the combined input and output token count.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Response is the provider-agnostic inference response.
type Response struct {
	// Content is the completion text
	Content string `json:"content"`

	// Model is the provider-side model id that served the request
	Model string `json:"model"`

	// Usage is the provider-reported token consumption
	Usage Usage `json:"usage"`

	// FinishReason indicates why generation stopped ("stop", "length", etc.)
	FinishReason string `json:"finish_reason,omitempty"`
}

// Chunk is one increment of a streaming response.
type Chunk struct {
	// Delta is the incremental completion text
	Delta string `json:"delta"`

	// Usage is non-nil only on the final chunk of a stream
	Usage *Usage `json:"usage,omitempty"`
}
