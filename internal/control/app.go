package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tdnguyen/outcall/internal/core/config"
	"github.com/tdnguyen/outcall/internal/core/resilience"
	"github.com/tdnguyen/outcall/internal/infra/httpapi"
	"github.com/tdnguyen/outcall/internal/infra/metrics"
	"github.com/tdnguyen/outcall/internal/infra/objectstore"
	"github.com/tdnguyen/outcall/internal/infra/rdb"
)

// App owns the resilient-call stack and the clients built on it. Downstream
// clients are only constructed for the backends present in configuration.
type App struct {
	cfg    *config.AppConfig
	log    *slog.Logger
	exec   *resilience.Executor
	api    *httpapi.Client
	store  *objectstore.Store
	db     *rdb.Client
	server *Server
}

// NewApp creates an App with all dependencies initialized.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	log := slog.Default()

	// 1. Resilience core: sink, observer chain, breaker registry, executor.
	sink := metrics.NewPromSink()
	observers := resilience.Observers{
		resilience.NewLogObserver(log),
		resilience.NewMetricsObserver(sink),
	}

	registry := resilience.NewRegistry(
		cfg.Resilience.Breaker.BreakerConfig(),
		resilience.WithStateChange(observers.StateChange),
	)
	exec := resilience.NewExecutor(registry,
		resilience.WithSink(sink),
		resilience.WithObservers(observers...),
	)

	app := &App{cfg: cfg, log: log, exec: exec}

	// 2. Downstream clients.
	if cfg.API.BaseURL != "" {
		app.api = httpapi.New(cfg.API.BaseURL, exec,
			httpapi.WithPolicy(cfg.Resilience.Retry.Policy()),
			httpapi.WithTimeout(cfg.API.TimeoutDuration()),
			httpapi.WithHeaders(cfg.API.Headers),
			httpapi.WithLogger(log),
		)
		log.Info("API client initialized", "base_url", cfg.API.BaseURL)
	}

	if cfg.ObjectStore.URL != "" {
		store, err := objectstore.New(cfg.ObjectStore, exec)
		if err != nil {
			return nil, fmt.Errorf("failed to init blob store: %w", err)
		}
		app.store = store
		log.Info("blob store initialized")
	}

	if cfg.Database.URL != "" {
		db, err := rdb.New(ctx, cfg.Database, exec)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		app.db = db
		log.Info("database client initialized")
	}

	app.server = NewServer(app, cfg.Server.Port)
	return app, nil
}

// Executor returns the shared call executor.
func (a *App) Executor() *resilience.Executor { return a.exec }

// API returns the HTTP API client, or nil when not configured.
func (a *App) API() *httpapi.Client { return a.api }

// Store returns the blob store client, or nil when not configured.
func (a *App) Store() *objectstore.Store { return a.store }

// DB returns the relational client, or nil when not configured.
func (a *App) DB() *rdb.Client { return a.db }

// Start launches the health/metrics server.
func (a *App) Start(ctx context.Context) error {
	a.log.Info("starting server", "port", a.cfg.Server.Port)
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("server stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down and closes every client.
func (a *App) Stop(ctx context.Context) error {
	var firstErr error

	if err := a.server.Stop(ctx); err != nil {
		firstErr = err
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ComponentHealth is the health probe result for one backend.
type ComponentHealth struct {
	Healthy bool `json:"healthy"`
}

// HealthReport maps component name to probe result.
type HealthReport map[string]ComponentHealth

// CheckHealth probes every configured backend with the fail-fast policy.
func (a *App) CheckHealth(ctx context.Context) HealthReport {
	report := make(HealthReport)
	if a.api != nil {
		report["api"] = ComponentHealth{Healthy: a.api.HealthCheck(ctx)}
	}
	if a.store != nil {
		report["objectstore"] = ComponentHealth{Healthy: a.store.HealthCheck(ctx)}
	}
	if a.db != nil {
		report["database"] = ComponentHealth{Healthy: a.db.HealthCheck(ctx)}
	}
	return report
}
