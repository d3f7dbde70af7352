package config

import (
	"time"

	"meridian-hq/meridian/pkg/limits"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultMetricsAddress  = "127.0.0.1:9090"
	DefaultMetricsPath     = "/metrics"
	DefaultShutdownTimeout = 30 * time.Second

	// Catalog defaults
	DefaultCatalogPath = "catalog.yaml"

	// Limits defaults
	DefaultLimitsIdleTimeout = 15 * time.Minute

	// Ledger defaults
	DefaultLedgerBackend = LedgerBackendMemory
	DefaultLedgerDBPath  = "data/ledger.db"

	// Telemetry defaults
	DefaultLoggingLevel       = "info"
	DefaultLoggingFormat      = "json"
	DefaultTracingSampleRatio = 0.1
)

// ApplyDefaults fills zero-valued fields with defaults. Explicit values in
// the configuration are never overwritten.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.MetricsAddress == "" {
		cfg.Server.MetricsAddress = DefaultMetricsAddress
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = DefaultMetricsPath
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Catalog
	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = DefaultCatalogPath
	}

	// Limits
	if cfg.Limits.Default.RequestsPerMinute == 0 &&
		cfg.Limits.Default.TokensPerMinute == 0 &&
		cfg.Limits.Default.BurstLimit == 0 &&
		cfg.Limits.Default.ConcurrencyLimit == 0 {
		cfg.Limits.Default = limits.DefaultConfig
	}
	if cfg.Limits.IdleTimeout == 0 {
		cfg.Limits.IdleTimeout = DefaultLimitsIdleTimeout
	}

	// Breaker and routing defaults live in their packages; zero fields are
	// filled when the components are constructed.

	// Ledger
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Ledger.Backend == LedgerBackendSQLite && cfg.Ledger.DBPath == "" {
		cfg.Ledger.DBPath = DefaultLedgerDBPath
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Tracing.Enabled && cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}
