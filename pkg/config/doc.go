// Package config provides configuration management for Meridian.
//
// Configuration loads from a YAML file with optional environment variable
// overrides, gets zero-valued fields filled with defaults, and is validated
// before use.
//
// # Configuration Loading
//
//	cfg, err := config.LoadConfig("config.yaml")
//
// or, with environment overrides:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention MERIDIAN_SECTION_FIELD
// and always take precedence over file values. For example:
//
//   - MERIDIAN_SERVER_METRICS_ADDRESS overrides server.metrics_address
//   - MERIDIAN_LEDGER_BACKEND overrides ledger.backend
//   - MERIDIAN_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// # Validation
//
// Validation errors carry field paths and are collected, not returned one
// at a time:
//
//	configuration validation failed with 2 errors:
//	  - ledger.backend: unknown backend "postgres" (must be "memory" or "sqlite")
//	  - limits.default: burst_limit must be >= requests_per_minute
//
// # Example Configuration
//
//	server:
//	  metrics_address: "127.0.0.1:9090"
//
//	catalog:
//	  path: "catalog.yaml"
//	  watch: true
//
//	providers:
//	  openai:
//	    base_url: "https://api.openai.com/v1"
//	    api_key: "${OPENAI_API_KEY}"
//	  azure:
//	    base_url: "https://example.openai.azure.com/v1"
//	    api_key: "${AZURE_API_KEY}"
//	    timeout: 45s
//
//	limits:
//	  default:
//	    requests_per_minute: 60
//	    tokens_per_minute: 100000
//	    burst_limit: 60
//	    concurrency_limit: 8
//
//	breaker:
//	  failure_threshold: 5
//	  cooldown: 30s
//
//	routing:
//	  attempt_timeout: 30s
//	  emergency_fallback: true
//
//	ledger:
//	  backend: sqlite
//	  db_path: data/ledger.db
//	  accounts:
//	    team-alpha: 50000000
//	  retention:
//	    retention_days: 90
//	    prune_schedule: "0 3 * * *"
package config
