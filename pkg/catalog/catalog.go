package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync/atomic"

	"meridian-hq/meridian/pkg/telemetry/metrics"
)

// Catalog serves model resolution and pricing from an immutable table that
// reloads atomically. Lookups never block behind a reload.
//
// # Example
//
//	cat := catalog.New("catalog.yaml", catalog.Options{Logger: logger})
//	if err := cat.Load(); err != nil {
//	    return err
//	}
//
//	model, err := cat.Resolve("gpt-4o")
//	if errors.Is(err, catalog.ErrModelNotFound) {
//	    // reply 404
//	}
type Catalog struct {
	path    string
	logger  *slog.Logger
	metrics *metrics.CatalogMetrics

	table atomic.Pointer[table]
}

// Options configures optional catalog behavior.
type Options struct {
	// Logger receives load reports (default slog.Default).
	Logger *slog.Logger

	// Metrics receives size gauges and resolution counters (default:
	// unregistered no-op set).
	Metrics *metrics.CatalogMetrics
}

// New creates a catalog for the given file path. The catalog is empty (all
// lookups miss) until the first successful Load.
func New(path string, opts Options) *Catalog {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCatalogMetrics(nil)
	}
	return &Catalog{
		path:    path,
		logger:  opts.Logger,
		metrics: opts.Metrics,
	}
}

// Load reads, validates, and atomically installs the catalog file. On any
// error the previous table keeps serving and the error is returned.
func (c *Catalog) Load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		c.metrics.RecordReload("rejected")
		return fmt.Errorf("reading catalog file: %w", err)
	}
	return c.loadBytes(data)
}

// loadBytes installs a catalog from raw YAML. Split out for tests.
func (c *Catalog) loadBytes(data []byte) error {
	f, err := parseFile(data)
	if err != nil {
		c.metrics.RecordReload("rejected")
		return err
	}

	t, err := buildTable(f)
	if err != nil {
		c.metrics.RecordReload("rejected")
		return fmt.Errorf("validating catalog: %w", err)
	}

	c.table.Store(t)
	c.metrics.RecordReload("applied")
	c.metrics.SetCatalogSize(len(t.models), len(t.defaultPriced))

	c.logger.Info("catalog loaded",
		"path", c.path,
		"models", len(t.models),
		"default_priced", len(t.defaultPriced))

	// Each unpriced model gets its own warning so the pricing gap is
	// visible per model, not just as a count.
	for _, id := range t.defaultPriced {
		c.logger.Warn("model has no resolvable price and will not be billed", "model", id)
	}

	return nil
}

// Resolve maps a client model id to its canonical model: exact id, then
// case-insensitive alias, then unambiguous fuzzy match. Unknown and
// ambiguous ids fail with ErrModelNotFound.
func (c *Catalog) Resolve(clientModelID string) (*CanonicalModel, error) {
	t := c.table.Load()
	if t == nil {
		return nil, ErrModelNotFound
	}

	if m, ok := t.models[clientModelID]; ok {
		c.metrics.RecordResolution("exact")
		return m, nil
	}

	if id, ok := t.aliases[strings.ToLower(clientModelID)]; ok {
		c.metrics.RecordResolution("alias")
		return t.models[id], nil
	}

	if id, ok := t.fuzzy[normalize(clientModelID)]; ok {
		if id == "" {
			c.metrics.RecordResolution("ambiguous")
			return nil, fmt.Errorf("%w: %q matches multiple models", ErrModelNotFound, clientModelID)
		}
		c.metrics.RecordResolution("fuzzy")
		return t.models[id], nil
	}

	c.metrics.RecordResolution("miss")
	return nil, fmt.Errorf("%w: %q", ErrModelNotFound, clientModelID)
}

// PriceOf returns the resolved pricing for an exact canonical id.
func (c *Catalog) PriceOf(canonicalID string) (Pricing, error) {
	t := c.table.Load()
	if t == nil {
		return Pricing{}, ErrModelNotFound
	}
	m, ok := t.models[canonicalID]
	if !ok {
		return Pricing{}, fmt.Errorf("%w: %q", ErrModelNotFound, canonicalID)
	}
	return m.Pricing, nil
}

// DefaultPriced returns the canonical ids currently on the pricing
// sentinel, sorted, for the admin surface.
func (c *Catalog) DefaultPriced() []string {
	t := c.table.Load()
	if t == nil {
		return nil
	}
	ids := make([]string, len(t.defaultPriced))
	copy(ids, t.defaultPriced)
	sort.Strings(ids)
	return ids
}

// Models returns all canonical ids, sorted.
func (c *Catalog) Models() []string {
	t := c.table.Load()
	if t == nil {
		return nil
	}
	ids := make([]string, 0, len(t.models))
	for id := range t.models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of canonical models in the active table.
func (c *Catalog) Len() int {
	t := c.table.Load()
	if t == nil {
		return 0
	}
	return len(t.models)
}
