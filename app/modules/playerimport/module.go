package playerimport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Black-And-White-Club/casino-ops/app/eventbus"
	playerdb "github.com/Black-And-White-Club/casino-ops/app/modules/player/infrastructure/repositories"
	importservice "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/application"
	importhandlers "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/handlers"
	importmetrics "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/metrics"
	"github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/parsers"
	importqueue "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/queue"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	importrouter "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/router"
	importstorage "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/storage"
	"github.com/Black-And-White-Club/casino-ops/config"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
)

// Module represents the player import module.
type Module struct {
	config     *config.Config
	service    importservice.Service
	handlers   importhandlers.Handlers
	queue      importqueue.QueueService
	router     *importrouter.ImportRouter
	cancelFunc context.CancelFunc
	logger     *slog.Logger
}

// NewModule creates the player import module and mounts its HTTP routes on httpRouter.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	tracer trace.Tracer,
	registry *prometheus.Registry,
	db *bun.DB,
	bus eventbus.EventBus,
	httpRouter chi.Router,
) (*Module, error) {
	logger.InfoContext(ctx, "Initializing player import module")

	files, err := NewFileStore(cfg.Storage, db)
	if err != nil {
		return nil, err
	}

	metrics, err := importmetrics.NewPrometheusMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register import metrics: %w", err)
	}

	queue, err := importqueue.NewService(ctx, db, logger, cfg.Postgres.DSN, metrics, importqueue.Config{
		MaxWorkers:    cfg.Import.Workers,
		MaxAttempts:   cfg.Import.MaxAttempts,
		SweepInterval: cfg.Import.SweepInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create import queue: %w", err)
	}

	service := importservice.NewImportService(
		importdb.NewRepository(db),
		playerdb.NewRepository(db),
		files,
		parsers.NewFactory(),
		queue,
		bus,
		logger,
		metrics,
		tracer,
		db,
		importservice.Config{
			MaxRows:        cfg.Import.MaxRows,
			MaxFileBytes:   cfg.Import.MaxFileBytes,
			MaxAttempts:    cfg.Import.MaxAttempts,
			StaleAfter:     cfg.Import.StaleAfter,
			SweepBatchSize: cfg.Import.SweepBatchSize,
		},
	)
	queue.Bind(service)

	handlers := importhandlers.NewImportHandlers(
		service,
		queue,
		importhandlers.Config{MaxFileBytes: cfg.Import.MaxFileBytes},
		logger,
		tracer,
	)

	if httpRouter != nil {
		importhandlers.RegisterRoutes(httpRouter, handlers, importhandlers.RouteConfig{
			AllowedOrigins:    cfg.HTTP.AllowedOrigins,
			RequestsPerSecond: cfg.HTTP.RateLimit,
			Burst:             cfg.HTTP.RateBurst,
		})
	}

	router, err := importrouter.NewImportRouter(logger, bus, registry)
	if err != nil {
		_ = queue.Stop(ctx)
		return nil, fmt.Errorf("failed to create import router: %w", err)
	}
	router.Configure(ctx, handlers, cfg.Import.AutoExecute)

	return &Module{
		config:   cfg,
		service:  service,
		handlers: handlers,
		queue:    queue,
		router:   router,
		logger:   logger,
	}, nil
}

// NewFileStore selects the raw file backend.
func NewFileStore(cfg config.StorageConfig, db bun.IDB) (importstorage.FileStore, error) {
	switch cfg.Backend {
	case "", config.StorageBackendPostgres:
		return importstorage.NewPostgresStore(db), nil
	case config.StorageBackendS3:
		store, err := importstorage.NewS3Store(importstorage.S3Options{
			Bucket:    cfg.S3.Bucket,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
			Prefix:    cfg.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 file store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// Run starts the queue workers and the event router, then blocks until ctx is done.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting player import module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if err := m.queue.Start(ctx); err != nil {
		m.logger.ErrorContext(ctx, "Failed to start import queue", attr.Error(err))
		return
	}

	routerErr := make(chan error, 1)
	go func() {
		routerErr <- m.router.Run(ctx)
	}()

	m.logger.InfoContext(ctx, "Player import module started",
		attr.Bool("auto_execute", m.config.Import.AutoExecute),
		attr.String("storage_backend", m.config.Storage.Backend),
	)

	select {
	case <-ctx.Done():
	case err := <-routerErr:
		if err != nil {
			m.logger.ErrorContext(ctx, "Import event router stopped", attr.Error(err))
		}
	}
	m.logger.InfoContext(ctx, "Player import module goroutine stopped")
}

// Close stops the event router and the queue.
func (m *Module) Close() error {
	m.logger.Info("Stopping player import module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	var firstErr error
	if m.router != nil {
		if err := m.router.Close(); err != nil {
			m.logger.Error("Error stopping import router", attr.Error(err))
			firstErr = fmt.Errorf("error stopping router: %w", err)
		}
	}
	if m.queue != nil {
		if err := m.queue.Stop(context.Background()); err != nil {
			m.logger.Error("Error stopping import queue", attr.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("error stopping queue: %w", err)
			}
		}
	}

	m.logger.Info("Player import module stopped")
	return firstErr
}

// GetService returns the import service.
func (m *Module) GetService() importservice.Service {
	return m.service
}

// HealthCheck reports whether the job queue can reach the database.
func (m *Module) HealthCheck(ctx context.Context) error {
	return m.queue.HealthCheck(ctx)
}
