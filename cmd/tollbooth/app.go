package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"tollbooth-hq/tollbooth/pkg/admission"
	"tollbooth-hq/tollbooth/pkg/config"
	"tollbooth-hq/tollbooth/pkg/flusher"
	"tollbooth-hq/tollbooth/pkg/ledger"
	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/pricing"
	"tollbooth-hq/tollbooth/pkg/providers"
	"tollbooth-hq/tollbooth/pkg/proxy/handlers"
	"tollbooth-hq/tollbooth/pkg/routing"
	"tollbooth-hq/tollbooth/pkg/server"
	"tollbooth-hq/tollbooth/pkg/store"
	"tollbooth-hq/tollbooth/pkg/telemetry/alerts"
	"tollbooth-hq/tollbooth/pkg/telemetry/health"
	"tollbooth-hq/tollbooth/pkg/telemetry/metrics"
	"tollbooth-hq/tollbooth/pkg/telemetry/tracing"
)

// app holds every long-lived component of a running proxy.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	ledger    *ledger.Ledger
	store     store.Store
	flusher   *flusher.Flusher
	registry  *providers.Registry
	collector *metrics.Collector
	tracer    *tracing.Tracer
	reporter  *alerts.Reporter

	handler http.Handler
}

// newApp wires the components described by cfg. The ledger is not hydrated
// and the flusher is not started; see boot.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	defaultBalance, err := money.ParseUSD(cfg.Budget.DefaultBalanceUSD)
	if err != nil {
		return nil, fmt.Errorf("budget.default_balance_usd: %w", err)
	}
	minCeiling, err := money.ParseUSD(cfg.Admission.MinCeilingUSD)
	if err != nil {
		return nil, fmt.Errorf("admission.min_ceiling_usd: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.reporter, err = alerts.New(cfg.Telemetry.Alerts, Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize alerts: %w", err)
	}

	a.ledger = ledger.New(defaultBalance, cfg.Budget.Shards)
	a.collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
	a.collector.RegisterLedgerSize(a.ledger.Len)

	a.store, err = store.New(ctx, cfg.Store, defaultBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	a.flusher = flusher.New(a.ledger, a.store, flusher.Config{
		Interval:             cfg.Flush.Interval,
		RetryInitialInterval: cfg.Flush.RetryInitialInterval,
		RetryMaxInterval:     cfg.Flush.RetryMaxInterval,
		RetryMaxElapsed:      cfg.Flush.RetryMaxElapsed,
	}, flusher.WithLogger(logger), flusher.WithObserver(a.collector))

	a.registry = providers.NewRegistry(cfg.Providers, logger)
	available := cfg.AvailableProviders()
	if len(available) == 0 {
		logger.Warn("no provider has an api key, every completion will be rejected")
	}

	router, err := routing.NewRouter(cfg.Routes, available, routing.WithObserver(a.collector))
	if err != nil {
		return nil, fmt.Errorf("failed to build routes: %w", err)
	}
	table, err := pricing.NewTableFromConfig(cfg.Pricing)
	if err != nil {
		return nil, fmt.Errorf("failed to build pricing table: %w", err)
	}

	calc := pricing.NewCalculator(table)
	pipeline := admission.NewPipeline(admission.Config{
		Secret:            cfg.Auth.InternalSecret,
		SystemUserID:      cfg.Auth.SystemUserID,
		FallbackMaxTokens: cfg.Admission.FallbackMaxTokens,
		BytesPerToken:     cfg.Admission.BytesPerToken,
		MinCeiling:        minCeiling,
	}, a.ledger, router, calc,
		admission.WithLogger(logger),
		admission.WithObserver(a.collector),
		admission.WithAlarm(a.reporter),
	)

	checker := health.New(health.Config{
		Service:             cfg.Telemetry.Tracing.ServiceName,
		Version:             Version,
		BudgetsLoaded:       a.ledger.Len,
		ProvidersConfigured: func() bool { return a.registry.Len() > 0 },
	})
	checker.RegisterCheck("store", a.store.Ping)

	var metricsHandler http.Handler
	if a.collector.Enabled() {
		metricsHandler = a.collector.Handler()
	}

	a.handler = server.NewHandler(server.Routes{
		Completions: handlers.NewCompletionHandler(pipeline, a.registry,
			handlers.WithUpstreamRecorder(a.collector),
			handlers.WithLogger(logger),
			handlers.WithMaxBodyBytes(cfg.Proxy.MaxBodyBytes),
		),
		Models:       handlers.NewModelsHandler(cfg.Models, available, calc),
		Budget:       handlers.NewBudgetHandler(a.ledger, pipeline.UserID, logger),
		Health:       checker,
		Metrics:      metricsHandler,
		MetricsPath:  cfg.Telemetry.Metrics.Path,
		Authenticate: pipeline.Authenticate,
		Logger:       logger,
		Recorder:     a.collector,
	})

	return a, nil
}

// boot hydrates the ledger and starts the flusher. A store that stays
// unreachable past the hydrate timeout leaves the process serving from
// default balances.
func (a *app) boot(ctx context.Context) error {
	hctx, cancel := context.WithTimeout(ctx, a.cfg.Flush.HydrateTimeout)
	n, err := a.flusher.Hydrate(hctx)
	cancel()
	switch {
	case err == nil:
		a.logger.Info("balances loaded", "users", n, "backend", a.cfg.Store.Backend)
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		a.flusher.MarkHydrated(false)
		a.logger.Warn("store unreachable, running standalone on default balances",
			"error", err,
			"backend", a.cfg.Store.Backend,
			"timeout", a.cfg.Flush.HydrateTimeout,
		)
	}

	return a.flusher.Start(ctx)
}

// close stops the flusher with a final flush and releases every resource.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if err := a.flusher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final flush: %w", err))
	}
	if err := a.registry.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close providers: %w", err))
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	a.reporter.Flush()
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
