package tokens

import "meridian-hq/meridian/pkg/providers"

// Estimator estimates token counts before dispatch.
// Implementations may use different algorithms (character-based, BPE, etc.).
type Estimator interface {
	// EstimateText estimates tokens for a single text string.
	EstimateText(text string, model string) int

	// EstimateRequest estimates all tokens for a complete request,
	// including formatting overhead and the expected completion length.
	EstimateRequest(req *providers.Request, model string) *Estimate
}

// Estimate contains detailed token estimation results.
type Estimate struct {
	// PromptTokens is the estimated number of prompt tokens.
	PromptTokens int

	// CompletionTokens is the estimated completion length, taken from
	// MaxTokens when set or derived from the prompt length otherwise.
	CompletionTokens int

	// TotalTokens is PromptTokens + CompletionTokens. This is the value
	// the rate limiter admits against.
	TotalTokens int

	// Model is the model id used to pick the estimation ratio.
	Model string
}
