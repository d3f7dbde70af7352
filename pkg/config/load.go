package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file, applies defaults, and
// validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	// API keys are usually referenced as ${OPENAI_API_KEY} rather than
	// written into the file.
	for name, pc := range cfg.Providers {
		pc.APIKey = os.ExpandEnv(pc.APIKey)
		cfg.Providers[name] = pc
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention MERIDIAN_SECTION_FIELD (e.g., MERIDIAN_SERVER_METRICS_ADDRESS)
// and always take precedence over file values.
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("MERIDIAN_SERVER_METRICS_ADDRESS"); val != "" {
		cfg.Server.MetricsAddress = val
	}
	if val := os.Getenv("MERIDIAN_SERVER_METRICS_PATH"); val != "" {
		cfg.Server.MetricsPath = val
	}
	if val := os.Getenv("MERIDIAN_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Catalog overrides
	if val := os.Getenv("MERIDIAN_CATALOG_PATH"); val != "" {
		cfg.Catalog.Path = val
	}
	if val := os.Getenv("MERIDIAN_CATALOG_WATCH"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Catalog.Watch = b
		}
	}

	// Breaker overrides
	if val := os.Getenv("MERIDIAN_BREAKER_FAILURE_THRESHOLD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Breaker.FailureThreshold = i
		}
	}
	if val := os.Getenv("MERIDIAN_BREAKER_COOLDOWN"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Breaker.Cooldown = d
		}
	}

	// Routing overrides
	if val := os.Getenv("MERIDIAN_ROUTING_ATTEMPT_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Routing.AttemptTimeout = d
		}
	}
	if val := os.Getenv("MERIDIAN_ROUTING_EMERGENCY_FALLBACK"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Routing.EmergencyFallback = b
		}
	}

	// Ledger overrides
	if val := os.Getenv("MERIDIAN_LEDGER_BACKEND"); val != "" {
		cfg.Ledger.Backend = val
	}
	if val := os.Getenv("MERIDIAN_LEDGER_DB_PATH"); val != "" {
		cfg.Ledger.DBPath = val
	}
	if val := os.Getenv("MERIDIAN_LEDGER_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Ledger.Retention.RetentionDays = i
		}
	}
	if val := os.Getenv("MERIDIAN_LEDGER_PRUNE_SCHEDULE"); val != "" {
		cfg.Ledger.Retention.PruneSchedule = val
	}

	// Telemetry overrides
	if val := os.Getenv("MERIDIAN_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
	if val := os.Getenv("MERIDIAN_TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}
