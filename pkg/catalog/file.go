package catalog

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// catalogFile is the YAML schema of the catalog file.
type catalogFile struct {
	// GatewayProviders names providers that front other providers' models;
	// their models may inherit pricing via `underlying`.
	GatewayProviders []string     `yaml:"gateway_providers"`
	Models           []modelEntry `yaml:"models"`
}

type modelEntry struct {
	ID         string           `yaml:"id"`
	Aliases    []string         `yaml:"aliases"`
	Candidates []candidateEntry `yaml:"candidates"`
	Pricing    *pricingEntry    `yaml:"pricing"`
	Underlying string           `yaml:"underlying"`
}

type candidateEntry struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

// pricingEntry carries USD-per-million-token prices as written by
// operators; the loader converts to micros immediately.
type pricingEntry struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// table is one immutable resolved catalog generation. The Catalog swaps
// whole tables atomically on reload.
type table struct {
	models  map[string]*CanonicalModel
	aliases map[string]string // lowercased alias or id -> canonical id
	fuzzy   map[string]string // normalized form -> canonical id, "" = ambiguous
	// defaultPriced lists models on the pricing sentinel, for the gauge
	// and the admin listing.
	defaultPriced []string
}

// parseFile decodes the YAML catalog.
func parseFile(data []byte) (*catalogFile, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return &f, nil
}

// buildTable validates the parsed file and resolves pricing and indexes.
// Any validation failure rejects the whole file; a half-applied catalog
// would bill or route wrongly.
func buildTable(f *catalogFile) (*table, error) {
	t := &table{
		models:  make(map[string]*CanonicalModel, len(f.Models)),
		aliases: make(map[string]string),
		fuzzy:   make(map[string]string),
	}

	gateway := make(map[string]bool, len(f.GatewayProviders))
	for _, p := range f.GatewayProviders {
		gateway[p] = true
	}

	// First pass: validate entries and claim ids and aliases.
	for i, entry := range f.Models {
		if entry.ID == "" {
			return nil, fmt.Errorf("model %d: id is required", i)
		}
		if _, dup := t.models[entry.ID]; dup {
			return nil, fmt.Errorf("model %q: duplicate id", entry.ID)
		}
		if len(entry.Candidates) == 0 {
			return nil, fmt.Errorf("model %q: at least one candidate is required", entry.ID)
		}
		for j, c := range entry.Candidates {
			if c.Provider == "" || c.Model == "" {
				return nil, fmt.Errorf("model %q: candidate %d: provider and model are required", entry.ID, j)
			}
		}
		if p := entry.Pricing; p != nil && (p.InputPerMTok < 0 || p.OutputPerMTok < 0) {
			return nil, fmt.Errorf("model %q: negative pricing", entry.ID)
		}

		m := &CanonicalModel{
			ID:         entry.ID,
			Aliases:    entry.Aliases,
			Underlying: entry.Underlying,
			Candidates: make([]Candidate, len(entry.Candidates)),
		}
		for j, c := range entry.Candidates {
			m.Candidates[j] = Candidate{Provider: c.Provider, Model: c.Model}
		}
		t.models[entry.ID] = m

		for _, name := range append([]string{entry.ID}, entry.Aliases...) {
			lower := strings.ToLower(name)
			if owner, taken := t.aliases[lower]; taken && owner != entry.ID {
				return nil, fmt.Errorf("alias %q claimed by both %q and %q", name, owner, entry.ID)
			}
			t.aliases[lower] = entry.ID

			norm := normalize(name)
			if owner, seen := t.fuzzy[norm]; seen && owner != entry.ID {
				// Two models normalize to the same form: the form is
				// ambiguous and fuzzy lookups for it fail closed.
				t.fuzzy[norm] = ""
			} else if !seen {
				t.fuzzy[norm] = entry.ID
			}
		}
	}

	// Second pass: resolve pricing now that every id is known.
	for _, entry := range f.Models {
		m := t.models[entry.ID]

		switch {
		case entry.Pricing != nil:
			m.Pricing = Pricing{
				InputPerMTokMicros:  dollarsToMicros(entry.Pricing.InputPerMTok),
				OutputPerMTokMicros: dollarsToMicros(entry.Pricing.OutputPerMTok),
				Source:              SourceManual,
			}

		case entry.Underlying != "" && servedByGateway(m, gateway):
			underEntry := findEntry(f, entry.Underlying)
			if underEntry == nil {
				return nil, fmt.Errorf("model %q: underlying model %q not in catalog", entry.ID, entry.Underlying)
			}
			// Only a manual price may be inherited; chaining through
			// another cross-reference would hide how far from a real
			// price the number is.
			if underEntry.Pricing != nil {
				m.Pricing = Pricing{
					InputPerMTokMicros:  dollarsToMicros(underEntry.Pricing.InputPerMTok),
					OutputPerMTokMicros: dollarsToMicros(underEntry.Pricing.OutputPerMTok),
					Source:              SourceCrossReference,
				}
			} else {
				m.Pricing = Pricing{Source: SourceDefault}
				t.defaultPriced = append(t.defaultPriced, m.ID)
			}

		default:
			m.Pricing = Pricing{Source: SourceDefault}
			t.defaultPriced = append(t.defaultPriced, m.ID)
		}
	}

	return t, nil
}

// servedByGateway reports whether any candidate routes through a configured
// gateway provider.
func servedByGateway(m *CanonicalModel, gateway map[string]bool) bool {
	for _, c := range m.Candidates {
		if gateway[c.Provider] {
			return true
		}
	}
	return false
}

// findEntry returns the raw file entry for an id.
func findEntry(f *catalogFile, id string) *modelEntry {
	for i := range f.Models {
		if f.Models[i].ID == id {
			return &f.Models[i]
		}
	}
	return nil
}

// normalize reduces a model id to its fuzzy-match form: lowercase, with
// dots, underscores, slashes and spaces collapsed into single dashes.
func normalize(id string) string {
	var b strings.Builder
	b.Grow(len(id))

	prevDash := false
	for _, r := range strings.ToLower(id) {
		switch r {
		case '.', '_', '/', ' ', '-':
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		default:
			b.WriteRune(r)
			prevDash = false
		}
	}

	return strings.Trim(b.String(), "-")
}

// dollarsToMicros converts a USD price to micro-dollars, rounding to the
// nearest micro.
func dollarsToMicros(dollars float64) int64 {
	return int64(math.Round(dollars * microsPerDollar))
}
