package tokens

import (
	"strings"
	"sync"

	"meridian-hq/meridian/pkg/providers"
)

// defaultRatios maps model family prefixes to characters-per-token ratios.
var defaultRatios = map[string]float64{
	"gpt":     4.0,
	"claude":  3.5,
	"gemini":  4.0,
	"llama":   3.8,
	"mistral": 3.8,
	"default": 4.0,
}

// SimpleEstimator implements character-based token estimation using
// model-specific characters-per-token ratios. It is fast (<1ms) and accurate
// enough for admission control; billing never relies on it.
type SimpleEstimator struct {
	// ratios maps model ids or family prefixes to chars-per-token
	ratios map[string]float64

	// mu protects ratios for concurrent access
	mu sync.RWMutex
}

// NewSimpleEstimator creates a character-based estimator. A nil ratios map
// selects the built-in defaults.
func NewSimpleEstimator(ratios map[string]float64) *SimpleEstimator {
	if ratios == nil {
		ratios = defaultRatios
	}
	return &SimpleEstimator{ratios: ratios}
}

// EstimateText estimates tokens for a single text string using the
// model-specific characters-per-token ratio. Non-empty text is always at
// least one token.
func (e *SimpleEstimator) EstimateText(text string, model string) int {
	if text == "" {
		return 0
	}

	charsPerToken := e.charsPerToken(model)
	tokens := float64(len(text)) / charsPerToken
	if tokens < 1.0 {
		tokens = 1.0
	}

	return int(tokens + 0.5)
}

// EstimateRequest estimates all tokens for a complete request.
func (e *SimpleEstimator) EstimateRequest(req *providers.Request, model string) *Estimate {
	estimate := &Estimate{Model: model}
	if req == nil {
		return estimate
	}

	for _, msg := range req.Messages {
		// ~1 token for the role, ~3 per message for formatting
		estimate.PromptTokens += 1 + e.EstimateText(msg.Content, model) + 3
	}
	if len(req.Messages) > 0 {
		// Conversation framing overhead
		estimate.PromptTokens += 3
	}

	if req.MaxTokens > 0 {
		estimate.CompletionTokens = req.MaxTokens
	} else {
		// Completions typically run 20-50% of prompt length; clamp to a
		// sane admission range when the client sets no cap.
		estimate.CompletionTokens = estimate.PromptTokens / 3
		if estimate.CompletionTokens < 100 {
			estimate.CompletionTokens = 100
		}
		if estimate.CompletionTokens > 1000 {
			estimate.CompletionTokens = 1000
		}
	}

	estimate.TotalTokens = estimate.PromptTokens + estimate.CompletionTokens
	return estimate
}

// charsPerToken returns the ratio for a model: exact match, then family
// prefix match, then the default.
func (e *SimpleEstimator) charsPerToken(model string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if ratio, ok := e.ratios[model]; ok {
		return ratio
	}

	for prefix, ratio := range e.ratios {
		if prefix != "default" && strings.HasPrefix(model, prefix) {
			return ratio
		}
	}

	if ratio, ok := e.ratios["default"]; ok {
		return ratio
	}
	return 4.0
}
