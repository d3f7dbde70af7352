package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"meridian-hq/meridian/pkg/breaker"
	"meridian-hq/meridian/pkg/catalog"
	"meridian-hq/meridian/pkg/cli"
	"meridian-hq/meridian/pkg/config"
	"meridian-hq/meridian/pkg/ledger"
	"meridian-hq/meridian/pkg/ledger/retention"
	"meridian-hq/meridian/pkg/limits"
	"meridian-hq/meridian/pkg/limits/ratelimit"
	"meridian-hq/meridian/pkg/processing/tokens"
	"meridian-hq/meridian/pkg/providers"
	"meridian-hq/meridian/pkg/routing"
	"meridian-hq/meridian/pkg/telemetry/logging"
	"meridian-hq/meridian/pkg/telemetry/metrics"
	"meridian-hq/meridian/pkg/telemetry/tracing"
)

var runFlags struct {
	metricsAddress string
	logLevel       string
	dryRun         bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Meridian gateway core",
	Long: `Start the Meridian gateway core with the specified configuration.

The process boots the model catalog, rate limit registry, circuit breakers,
failover router, and credit ledger, and serves Prometheus metrics and admin
endpoints on the configured address.

Examples:
  # Start with default config
  meridian run

  # Start with custom config
  meridian run --config /etc/meridian/config.yaml

  # Override the metrics listen address
  meridian run --metrics 0.0.0.0:9090

  # Validate config without starting
  meridian run --dry-run`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.metricsAddress, "metrics", "", "override metrics listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	// Apply flag overrides
	if runFlags.metricsAddress != "" {
		cfg.Server.MetricsAddress = runFlags.metricsAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx := cli.SetupSignalHandler()

	// Tracing (optional)
	tp, err := tracing.Init(ctx, cfg.Telemetry.Tracing)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("initializing tracing: %w", err))
	}
	if tp != nil {
		defer tp.Shutdown(context.Background())
	}

	// Metrics registry and per-component collectors
	registry := prometheus.NewRegistry()
	breakerMetrics := metrics.NewBreakerMetrics(registry)
	catalogMetrics := metrics.NewCatalogMetrics(registry)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	routingMetrics := metrics.NewRoutingMetrics(registry)
	limitsMetrics := limits.NewMetrics(registry)

	// Model catalog
	cat := catalog.New(cfg.Catalog.Path, catalog.Options{
		Logger:  logger,
		Metrics: catalogMetrics,
	})
	if err := cat.Load(); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("loading catalog: %w", err))
	}
	logger.Info("catalog loaded", "path", cfg.Catalog.Path, "models", cat.Len())

	if cfg.Catalog.Watch {
		watcher, err := catalog.NewWatcher(cat, logger)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("starting catalog watcher: %w", err))
		}
		defer watcher.Stop()
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				logger.Error("catalog watcher stopped", "error", err)
			}
		}()
	}

	// Credit ledger
	store, err := openLedgerStore(cfg)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer store.Close()

	if err := seedAccounts(ctx, store, cfg.Ledger.Accounts, logger); err != nil {
		return cli.NewCommandError("run", err)
	}

	led := ledger.New(store, ledger.Options{
		Logger:  logger,
		Metrics: ledgerMetrics,
	})

	pruner := retention.NewPruner(store, cfg.Ledger.Retention, logger)
	if err := pruner.Start(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("starting retention pruner: %w", err))
	}
	defer pruner.Stop()

	// Rate limits
	limitRegistry := limits.NewRegistry(limits.ConfigProviderFunc(func(key string) (ratelimit.Config, error) {
		if kc, ok := cfg.Limits.Keys[key]; ok {
			return kc, nil
		}
		return cfg.Limits.Default, nil
	}), limits.RegistryOptions{
		IdleTimeout: cfg.Limits.IdleTimeout,
		Logger:      logger,
		Metrics:     limitsMetrics,
	})
	defer limitRegistry.Close()

	// Circuit breakers
	breakers := breaker.NewRegistry(cfg.Breaker, breaker.RegistryOptions{
		Logger:  logger,
		Metrics: breakerMetrics,
	})

	// Provider clients
	clients := make(map[string]providers.Client, len(cfg.Providers))
	for name, pc := range cfg.Providers {
		pc.Name = name
		clients[name] = providers.NewHTTPClient(pc, logger)
	}
	if len(clients) == 0 {
		logger.Warn("no providers configured; all dispatches will fail")
	}

	// Failover router
	router := routing.NewRouter(clients, cat, breakers, led, cfg.Routing, routing.Options{
		Logger:         logger,
		Metrics:        routingMetrics,
		CatalogMetrics: catalogMetrics,
		LedgerMetrics:  ledgerMetrics,
	})

	estimator := tokens.NewSimpleEstimator(nil)

	logger.Info("gateway core ready",
		"providers", len(clients),
		"models", cat.Len(),
		"ledger_backend", cfg.Ledger.Backend,
	)

	return serveAdmin(ctx, cfg, registry, cat, estimator, router, breakers, logger)
}

// openLedgerStore opens the configured ledger backend.
func openLedgerStore(cfg *config.Config) (ledger.Store, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendMemory:
		return ledger.NewMemoryStore(), nil
	case config.LedgerBackendSQLite:
		if dir := filepath.Dir(cfg.Ledger.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating ledger directory: %w", err)
			}
		}
		store, err := ledger.NewSQLiteStore(cfg.Ledger.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening ledger database: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

// seedAccounts creates configured accounts that do not exist yet. Existing
// accounts keep their balances; seeding never tops up.
func seedAccounts(ctx context.Context, store ledger.Store, accounts map[string]int64, logger *slog.Logger) error {
	for id, opening := range accounts {
		_, err := store.GetAccount(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, ledger.ErrAccountNotFound) {
			return fmt.Errorf("checking account %q: %w", id, err)
		}
		if _, err := store.CreateAccount(ctx, id, opening); err != nil {
			return fmt.Errorf("seeding account %q: %w", id, err)
		}
		logger.Info("account seeded", "account", id, "opening_micros", opening)
	}
	return nil
}

// estimateRequest is the /estimate admin endpoint's input.
type estimateRequest struct {
	Model     string              `json:"model"`
	Messages  []providers.Message `json:"messages"`
	MaxTokens int                 `json:"max_tokens"`
}

// estimateResponse reports the pre-dispatch token estimate and the cost it
// would imply at the model's catalog price.
type estimateResponse struct {
	CanonicalID         string `json:"canonical_id"`
	PromptTokens        int    `json:"prompt_tokens"`
	CompletionTokens    int    `json:"completion_tokens"`
	TotalTokens         int    `json:"total_tokens"`
	EstimatedCostMicros int64  `json:"estimated_cost_micros"`
	Unmetered           bool   `json:"unmetered"`
}

// estimateHandler serves pre-dispatch token and cost estimates. Estimates are
// for admission sizing only; billing always uses provider-reported usage.
func estimateHandler(cat *catalog.Catalog, estimator tokens.Estimator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req estimateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if req.Model == "" {
			http.Error(w, "model is required", http.StatusBadRequest)
			return
		}

		model, err := cat.Resolve(req.Model)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		est := estimator.EstimateRequest(&providers.Request{
			Messages:  req.Messages,
			MaxTokens: req.MaxTokens,
		}, model.ID)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(estimateResponse{
			CanonicalID:         model.ID,
			PromptTokens:        est.PromptTokens,
			CompletionTokens:    est.CompletionTokens,
			TotalTokens:         est.TotalTokens,
			EstimatedCostMicros: model.Pricing.Cost(est.PromptTokens, est.CompletionTokens),
			Unmetered:           model.DefaultPriced(),
		})
	}
}

// serveAdmin runs the metrics/admin HTTP server until the context is
// cancelled, then shuts down gracefully.
func serveAdmin(ctx context.Context, cfg *config.Config, registry *prometheus.Registry, cat *catalog.Catalog, estimator tokens.Estimator, router *routing.Router, breakers *breaker.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Server.MetricsPath, metrics.Handler(registry))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(router.Stats().Snapshot())
	})
	mux.HandleFunc("/breakers", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(breakers.Snapshot())
	})
	mux.HandleFunc("/estimate", estimateHandler(cat, estimator))

	srv := &http.Server{
		Addr:    cfg.Server.MetricsAddress,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin server listening",
			"address", cfg.Server.MetricsAddress,
			"metrics_path", cfg.Server.MetricsPath,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return cli.NewCommandError("run", fmt.Errorf("admin server: %w", err))
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("shutdown: %w", err))
	}
	return nil
}
