// Package catalog maps client-facing model ids onto canonical models with
// ordered provider candidates and resolved pricing.
//
// # Resolution
//
// Resolve tries, in order: exact canonical id, case-insensitive alias, and a
// fuzzy normalized match (lowercase; dots, underscores, slashes and spaces
// collapse to single dashes). Fuzzy matching only succeeds when the
// normalized form maps to exactly one canonical model; anything ambiguous or
// absent fails with ErrModelNotFound. The catalog never synthesizes an
// entry, however provider-shaped an unknown id looks — billing integrity
// beats routability.
//
// # Pricing
//
// Each model's pricing resolves at load time through three tiers: a manual
// price from the catalog file wins; failing that, a model served through a
// configured gateway provider can cross-reference the manual price of the
// underlying model it wraps; failing both, the model carries the default
// sentinel (zero cost, PricingSource "default"). Default-priced models are
// counted on a gauge and logged at load so operators see the pricing gap —
// requests to them are served but not billed.
//
// All prices are fixed-point micro-dollars per million tokens. No floats
// leave the loader.
//
// # Hot Reload
//
// The catalog file is YAML. A Watcher reloads it on change with debounce;
// the resolved table swaps in atomically and a file that fails to parse or
// validate leaves the previous table serving.
package catalog
