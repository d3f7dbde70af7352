package config

import (
	"time"

	"meridian-hq/meridian/pkg/breaker"
	"meridian-hq/meridian/pkg/ledger/retention"
	"meridian-hq/meridian/pkg/limits/ratelimit"
	"meridian-hq/meridian/pkg/providers"
	"meridian-hq/meridian/pkg/routing"
	"meridian-hq/meridian/pkg/telemetry/logging"
	"meridian-hq/meridian/pkg/telemetry/tracing"
)

// Config is the root configuration structure for Meridian. It contains all
// sections for the admin server, model catalog, rate limits, circuit
// breakers, routing, the credit ledger, and telemetry.
type Config struct {
	// Server contains the metrics/admin HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Catalog configures the model catalog file and hot reload.
	Catalog CatalogConfig `yaml:"catalog"`

	// Providers declares the upstream provider endpoints, keyed by the
	// provider name catalog candidates reference.
	Providers map[string]providers.HTTPConfig `yaml:"providers"`

	// Limits configures per-key rate limiting.
	Limits LimitsConfig `yaml:"limits"`

	// Breaker contains circuit breaker tuning shared by all
	// (provider, model) pairs.
	Breaker breaker.Config `yaml:"breaker"`

	// Routing configures failover behavior.
	Routing routing.Config `yaml:"routing"`

	// Ledger configures credit accounting storage and retention.
	Ledger LedgerConfig `yaml:"ledger"`

	// Telemetry configures logging and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds the metrics/admin HTTP server settings.
type ServerConfig struct {
	// MetricsAddress is the listen address for the metrics endpoint.
	MetricsAddress string `yaml:"metrics_address"`

	// MetricsPath is the HTTP path serving Prometheus metrics.
	MetricsPath string `yaml:"metrics_path"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// CatalogConfig holds model catalog settings.
type CatalogConfig struct {
	// Path is the catalog YAML file.
	Path string `yaml:"path"`

	// Watch enables hot reload on file changes.
	Watch bool `yaml:"watch"`
}

// LimitsConfig holds rate limiting settings.
type LimitsConfig struct {
	// Default applies to keys without an explicit entry in Keys.
	Default ratelimit.Config `yaml:"default"`

	// Keys carries per-key overrides.
	Keys map[string]ratelimit.Config `yaml:"keys"`

	// IdleTimeout is how long an unused key's limiter state is kept.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// Ledger backend names.
const (
	LedgerBackendMemory = "memory"
	LedgerBackendSQLite = "sqlite"
)

// LedgerConfig holds credit ledger settings.
type LedgerConfig struct {
	// Backend selects the store: "memory" or "sqlite".
	Backend string `yaml:"backend"`

	// DBPath is the SQLite database file (sqlite backend only).
	DBPath string `yaml:"db_path"`

	// Accounts seeds opening balances in micro-dollars for accounts that
	// do not exist yet at startup.
	Accounts map[string]int64 `yaml:"accounts"`

	// Retention controls transaction log pruning.
	Retention retention.Config `yaml:"retention"`
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging logging.Config `yaml:"logging"`

	// Tracing configures the OTLP trace exporter.
	Tracing tracing.Config `yaml:"tracing"`
}
