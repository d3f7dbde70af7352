package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"meridian-hq/meridian/pkg/providers"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ============================================================================
// Loading Tests
// ============================================================================

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
catalog:
  path: models.yaml
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.MetricsAddress != DefaultMetricsAddress {
		t.Errorf("metrics address = %q, want default", cfg.Server.MetricsAddress)
	}
	if cfg.Server.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("shutdown timeout = %v, want default", cfg.Server.ShutdownTimeout)
	}
	if cfg.Catalog.Path != "models.yaml" {
		t.Errorf("catalog path = %q, explicit value lost", cfg.Catalog.Path)
	}
	if cfg.Ledger.Backend != LedgerBackendMemory {
		t.Errorf("ledger backend = %q, want memory default", cfg.Ledger.Backend)
	}
	if cfg.Limits.Default.RequestsPerMinute == 0 {
		t.Error("limits default not applied")
	}
	if cfg.Telemetry.Logging.Level != "info" || cfg.Telemetry.Logging.Format != "json" {
		t.Errorf("logging defaults = %q/%q", cfg.Telemetry.Logging.Level, cfg.Telemetry.Logging.Format)
	}
}

func TestLoadConfigFullFile(t *testing.T) {
	t.Setenv("MERIDIAN_TEST_OPENAI_KEY", "sk-from-env")
	path := writeConfig(t, `
server:
  metrics_address: "0.0.0.0:9200"
  shutdown_timeout: 10s

catalog:
  path: catalog.yaml
  watch: true

providers:
  openai:
    base_url: "https://api.openai.com/v1"
    api_key: "${MERIDIAN_TEST_OPENAI_KEY}"
  azure:
    base_url: "https://example.openai.azure.com/v1"
    timeout: 45s

limits:
  default:
    requests_per_minute: 120
    tokens_per_minute: 200000
    burst_limit: 150
    concurrency_limit: 16
  keys:
    team-alpha:
      requests_per_minute: 600
      tokens_per_minute: 1000000
      burst_limit: 600
      concurrency_limit: 32
  idle_timeout: 5m

breaker:
  failure_threshold: 3
  cooldown: 45s

routing:
  attempt_timeout: 20s
  emergency_fallback: true
  provider_pins:
    gpt-4o: azure

ledger:
  backend: sqlite
  db_path: /tmp/ledger.db
  accounts:
    team-alpha: 50000000
  retention:
    retention_days: 30
    prune_schedule: "0 4 * * *"

telemetry:
  logging:
    level: debug
    format: text
  tracing:
    enabled: true
    endpoint: "localhost:4317"
    sample_ratio: 0.5
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Breaker.FailureThreshold != 3 || cfg.Breaker.Cooldown != 45*time.Second {
		t.Errorf("breaker = %+v", cfg.Breaker)
	}
	if cfg.Routing.ProviderPins["gpt-4o"] != "azure" {
		t.Errorf("pins = %v", cfg.Routing.ProviderPins)
	}
	if cfg.Providers["openai"].APIKey != "sk-from-env" {
		t.Errorf("api key = %q, env expansion lost", cfg.Providers["openai"].APIKey)
	}
	if cfg.Providers["azure"].Timeout != 45*time.Second {
		t.Errorf("provider timeout = %v", cfg.Providers["azure"].Timeout)
	}
	if cfg.Limits.Keys["team-alpha"].RequestsPerMinute != 600 {
		t.Errorf("per-key limits = %+v", cfg.Limits.Keys)
	}
	if cfg.Ledger.Accounts["team-alpha"] != 50_000_000 {
		t.Errorf("accounts = %v", cfg.Ledger.Accounts)
	}
	if cfg.Ledger.Retention.RetentionDays != 30 {
		t.Errorf("retention = %+v", cfg.Ledger.Retention)
	}
	if !cfg.Telemetry.Tracing.Enabled || cfg.Telemetry.Tracing.SampleRatio != 0.5 {
		t.Errorf("tracing = %+v", cfg.Telemetry.Tracing)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected missing file to fail")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := writeConfig(t, `{{{`)
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected parse failure")
	}
}

// ============================================================================
// Environment Override Tests
// ============================================================================

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MERIDIAN_SERVER_METRICS_ADDRESS", "0.0.0.0:9999")
	t.Setenv("MERIDIAN_LEDGER_BACKEND", "sqlite")
	t.Setenv("MERIDIAN_LEDGER_DB_PATH", "/tmp/env-ledger.db")
	t.Setenv("MERIDIAN_BREAKER_COOLDOWN", "90s")
	t.Setenv("MERIDIAN_TELEMETRY_LOGGING_LEVEL", "debug")

	path := writeConfig(t, `
server:
  metrics_address: "127.0.0.1:9090"
`)

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides: %v", err)
	}

	if cfg.Server.MetricsAddress != "0.0.0.0:9999" {
		t.Errorf("metrics address = %q, env override lost", cfg.Server.MetricsAddress)
	}
	if cfg.Ledger.Backend != LedgerBackendSQLite || cfg.Ledger.DBPath != "/tmp/env-ledger.db" {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Breaker.Cooldown != 90*time.Second {
		t.Errorf("cooldown = %v", cfg.Breaker.Cooldown)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("level = %q", cfg.Telemetry.Logging.Level)
	}
}

// ============================================================================
// Validation Tests
// ============================================================================

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Server.MetricsAddress = ""
	cfg.Ledger.Backend = "postgres"
	cfg.Telemetry.Logging.Level = "loud"

	err := Validate(cfg)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want ValidationError", err)
	}
	if len(verr.Errors) != 3 {
		t.Errorf("errors = %d, want 3: %v", len(verr.Errors), verr)
	}
	if !strings.Contains(err.Error(), "ledger.backend") {
		t.Errorf("message missing field path: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad metrics path", func(c *Config) { c.Server.MetricsPath = "metrics" }, "server.metrics_path"},
		{"empty catalog path", func(c *Config) { c.Catalog.Path = "" }, "catalog.path"},
		{"sqlite without path", func(c *Config) {
			c.Ledger.Backend = LedgerBackendSQLite
			c.Ledger.DBPath = ""
		}, "ledger.db_path"},
		{"negative opening balance", func(c *Config) {
			c.Ledger.Accounts = map[string]int64{"x": -1}
		}, "ledger.accounts.x"},
		{"bad cron", func(c *Config) { c.Ledger.Retention.PruneSchedule = "nope" }, "ledger.retention.prune_schedule"},
		{"provider without base url", func(c *Config) {
			c.Providers = map[string]providers.HTTPConfig{"openai": {APIKey: "sk"}}
		}, "providers.openai.base_url"},
		{"bad sample ratio", func(c *Config) {
			c.Telemetry.Tracing.Enabled = true
			c.Telemetry.Tracing.Endpoint = "localhost:4317"
			c.Telemetry.Tracing.SampleRatio = 2.0
		}, "telemetry.tracing.sample_ratio"},
		{"negative breaker threshold", func(c *Config) { c.Breaker.FailureThreshold = -1 }, "breaker.failure_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			ApplyDefaults(cfg)
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation to fail")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %v does not mention %s", err, tt.field)
			}
		})
	}
}

func TestValidateDefaultsPass(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		t.Errorf("default configuration should validate: %v", err)
	}
}
