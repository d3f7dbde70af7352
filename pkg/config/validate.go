package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g.,
	// "ledger.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. All field errors are collected and returned together.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate checks the entire configuration and returns a ValidationError if
// any rule fails.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateCatalog(&cfg.Catalog)...)
	errs = append(errs, validateProviders(cfg)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateBreaker(cfg)...)
	errs = append(errs, validateRouting(cfg)...)
	errs = append(errs, validateLedger(&cfg.Ledger)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.MetricsAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.metrics_address",
			Message: "metrics address is required",
		})
	}
	if cfg.MetricsPath != "" && !strings.HasPrefix(cfg.MetricsPath, "/") {
		errs = append(errs, FieldError{
			Field:   "server.metrics_path",
			Message: "metrics path must start with /",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be non-negative",
		})
	}

	return errs
}

func validateCatalog(cfg *CatalogConfig) []FieldError {
	var errs []FieldError

	if cfg.Path == "" {
		errs = append(errs, FieldError{
			Field:   "catalog.path",
			Message: "catalog path is required",
		})
	}

	return errs
}

func validateProviders(cfg *Config) []FieldError {
	var errs []FieldError

	for name, pc := range cfg.Providers {
		if pc.BaseURL == "" {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("providers.%s.base_url", name),
				Message: "base url is required",
			})
		}
		if pc.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("providers.%s.timeout", name),
				Message: "timeout must be non-negative",
			})
		}
	}

	return errs
}

func validateLimits(cfg *LimitsConfig) []FieldError {
	var errs []FieldError

	if err := cfg.Default.Validate(); err != nil {
		errs = append(errs, FieldError{
			Field:   "limits.default",
			Message: err.Error(),
		})
	}
	for key, kc := range cfg.Keys {
		if err := kc.Validate(); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("limits.keys.%s", key),
				Message: err.Error(),
			})
		}
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "limits.idle_timeout",
			Message: "idle timeout must be non-negative",
		})
	}

	return errs
}

func validateBreaker(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.Breaker.FailureThreshold < 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.failure_threshold",
			Message: "failure threshold must be non-negative",
		})
	}
	if cfg.Breaker.Cooldown < 0 {
		errs = append(errs, FieldError{
			Field:   "breaker.cooldown",
			Message: "cooldown must be non-negative",
		})
	}

	return errs
}

func validateRouting(cfg *Config) []FieldError {
	var errs []FieldError

	if cfg.Routing.AttemptTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "routing.attempt_timeout",
			Message: "attempt timeout must be non-negative",
		})
	}

	return errs
}

func validateLedger(cfg *LedgerConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case LedgerBackendMemory, LedgerBackendSQLite:
	default:
		errs = append(errs, FieldError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("unknown backend %q (must be %q or %q)", cfg.Backend, LedgerBackendMemory, LedgerBackendSQLite),
		})
	}

	if cfg.Backend == LedgerBackendSQLite && cfg.DBPath == "" {
		errs = append(errs, FieldError{
			Field:   "ledger.db_path",
			Message: "db path is required for the sqlite backend",
		})
	}

	for account, balance := range cfg.Accounts {
		if balance < 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("ledger.accounts.%s", account),
				Message: "opening balance must be non-negative",
			})
		}
	}

	if cfg.Retention.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "ledger.retention.retention_days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "ledger.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown level %q", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown format %q", cfg.Logging.Format),
		})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be between 0 and 1",
			})
		}
	}

	return errs
}
