package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Black-And-White-Club/casino-ops/app/eventbus"
	"github.com/Black-And-White-Club/casino-ops/app/modules/playerimport"
	"github.com/Black-And-White-Club/casino-ops/config"
	"github.com/Black-And-White-Club/casino-ops/db/bundb"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
)

const serviceName = "casino-ops"

// App holds the process-wide dependencies and the modules built on them.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *bun.DB
	EventBus eventbus.EventBus
	Registry *prometheus.Registry
	Router   chi.Router

	PlayerImport *playerimport.Module

	server        *http.Server
	metricsServer *http.Server
	wg            sync.WaitGroup
}

// NewApp connects to Postgres and the event bus, then builds the modules.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	db, err := bundb.Open(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db
	app.Registry.MustRegister(collectors.NewDBStatsCollector(db.DB, "casino_ops"))

	bus, err := newEventBus(ctx, cfg, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	app.EventBus = bus

	app.Router = newHTTPRouter()

	tracer := otel.GetTracerProvider().Tracer(serviceName)
	importModule, err := playerimport.NewModule(ctx, cfg, logger, tracer, app.Registry, db, bus, app.Router)
	if err != nil {
		_ = bus.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize player import module: %w", err)
	}
	app.PlayerImport = importModule

	app.Router.Get("/healthz", HealthHandler(map[string]HealthCheck{
		"postgres": db.PingContext,
		"queue":    importModule.HealthCheck,
	}))
	mountMetrics(app)

	logger.InfoContext(ctx, "Application initialized",
		attr.String("http_address", cfg.HTTP.Address),
		attr.String("environment", cfg.Observability.Environment),
	)
	return app, nil
}

func newEventBus(ctx context.Context, cfg *config.Config, logger *slog.Logger) (eventbus.EventBus, error) {
	if cfg.NATS.URL == "" {
		logger.InfoContext(ctx, "NATS URL not set, using in-process event bus")
		return eventbus.NewGoChannelEventBus(logger), nil
	}
	bus, err := eventbus.NewNATSEventBus(ctx, cfg.NATS.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event bus: %w", err)
	}
	return bus, nil
}

func newHTTPRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	return r
}

// Run starts the modules and the HTTP servers, then blocks until ctx is done.
func (app *App) Run(ctx context.Context) error {
	app.wg.Add(1)
	go app.PlayerImport.Run(ctx, &app.wg)

	errCh := make(chan error, 2)
	app.server = newServer(app.Config.HTTP.Address, app.Router)
	app.serve(app.server, errCh)
	if app.metricsServer != nil {
		app.serve(app.metricsServer, errCh)
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Close shuts the servers down, stops the modules and releases connections.
func (app *App) Close(ctx context.Context) error {
	app.Logger.InfoContext(ctx, "Shutting down application")

	shutdownServer(ctx, app.Logger, app.server)
	shutdownServer(ctx, app.Logger, app.metricsServer)

	if app.PlayerImport != nil {
		if err := app.PlayerImport.Close(); err != nil {
			app.Logger.ErrorContext(ctx, "Error closing player import module", attr.Error(err))
		}
	}
	app.wg.Wait()

	if app.EventBus != nil {
		if err := app.EventBus.Close(); err != nil {
			app.Logger.ErrorContext(ctx, "Error closing event bus", attr.Error(err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	app.Logger.InfoContext(ctx, "Application shut down gracefully")
	return nil
}
