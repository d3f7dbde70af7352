package catalog

import "errors"

// ErrModelNotFound is returned when a client model id resolves to nothing,
// including the ambiguous-fuzzy-match case. Callers fail the request with
// this; nothing is ever synthesized for unknown ids.
var ErrModelNotFound = errors.New("model not found in catalog")

// PricingSource records which tier resolved a model's pricing.
type PricingSource string

const (
	// SourceManual is an explicit price in the catalog file.
	SourceManual PricingSource = "manual"
	// SourceCrossReference is a price inherited from the underlying model
	// behind a gateway provider.
	SourceCrossReference PricingSource = "cross_reference"
	// SourceDefault is the zero-cost sentinel for unpriced models.
	SourceDefault PricingSource = "default"
)

// microsPerDollar and tokensPerMTok fix the pricing scale: prices are
// micro-dollars per million tokens.
const (
	microsPerDollar = 1_000_000
	tokensPerMTok   = 1_000_000
)

// Pricing is a model's resolved price in micro-dollars per million tokens.
type Pricing struct {
	// InputPerMTokMicros is the prompt price.
	InputPerMTokMicros int64 `json:"input_per_mtok_micros"`

	// OutputPerMTokMicros is the completion price.
	OutputPerMTokMicros int64 `json:"output_per_mtok_micros"`

	// Source is the tier that produced this price.
	Source PricingSource `json:"source"`
}

// Cost returns the charge in micro-dollars for the given token counts,
// rounding half up. Default-priced models cost zero by construction.
func (p Pricing) Cost(inputTokens, outputTokens int) int64 {
	input := (int64(inputTokens)*p.InputPerMTokMicros + tokensPerMTok/2) / tokensPerMTok
	output := (int64(outputTokens)*p.OutputPerMTokMicros + tokensPerMTok/2) / tokensPerMTok
	return input + output
}

// Candidate is one provider able to serve a canonical model. Order in the
// slice is failover priority.
type Candidate struct {
	// Provider is the provider name, matching providers.Client.Name.
	Provider string `json:"provider"`

	// Model is the provider-side model id to dispatch with.
	Model string `json:"model"`
}

// CanonicalModel is one resolved catalog entry. Instances are immutable
// after load; the catalog swaps whole tables, never mutates entries.
type CanonicalModel struct {
	// ID is the canonical model id.
	ID string `json:"id"`

	// Aliases are case-insensitive alternative ids.
	Aliases []string `json:"aliases,omitempty"`

	// Candidates is the ordered failover list.
	Candidates []Candidate `json:"candidates"`

	// Pricing is the resolved price.
	Pricing Pricing `json:"pricing"`

	// Underlying names the canonical model this entry wraps when served
	// through a gateway provider; it feeds cross-reference pricing.
	Underlying string `json:"underlying,omitempty"`
}

// DefaultPriced reports whether the model fell through to the sentinel.
func (m *CanonicalModel) DefaultPriced() bool {
	return m.Pricing.Source == SourceDefault
}
