package importrouter

import (
	"context"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/casino-ops/app/events"
	importhandlers "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/handlers"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// AutoExecuteHandlerName names the staged-event consumer.
const AutoExecuteHandlerName = "player_import.auto_execute"

// ImportRouter wires pipeline event consumers onto a watermill router.
type ImportRouter struct {
	logger     *slog.Logger
	Router     *message.Router
	subscriber message.Subscriber

	metricsBuilder *metrics.PrometheusMetricsBuilder
}

// NewImportRouter creates the router. A nil registry disables router metrics.
func NewImportRouter(logger *slog.Logger, subscriber message.Subscriber, registry *prometheus.Registry) (*ImportRouter, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, watermill.NewSlogLogger(logger))
	if err != nil {
		return nil, err
	}

	var metricsBuilder *metrics.PrometheusMetricsBuilder
	if registry != nil {
		b := metrics.NewPrometheusMetricsBuilder(registry, "player_import", "events")
		metricsBuilder = &b
	}

	return &ImportRouter{
		logger:         logger,
		Router:         router,
		subscriber:     subscriber,
		metricsBuilder: metricsBuilder,
	}, nil
}

// Configure registers the consumers. The auto-execute consumer is only added when enabled.
func (r *ImportRouter) Configure(_ context.Context, handlers importhandlers.Handlers, autoExecute bool) {
	if r.metricsBuilder != nil {
		r.metricsBuilder.AddPrometheusRouterMetrics(r.Router)
	}

	r.Router.AddMiddleware(
		middleware.CorrelationID,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			Multiplier:      2,
			Logger:          watermill.NewSlogLogger(r.logger),
		}.Middleware,
		middleware.Recoverer,
	)

	if autoExecute {
		r.Router.AddNoPublisherHandler(
			AutoExecuteHandlerName,
			events.BatchStagedV1,
			r.subscriber,
			handlers.HandleBatchStaged,
		)
		r.logger.Info("Auto-execute enabled", slog.String("topic", events.BatchStagedV1))
	}
}

// Run blocks until the router stops.
func (r *ImportRouter) Run(ctx context.Context) error {
	return r.Router.Run(ctx)
}

// Running is closed once handlers are subscribed.
func (r *ImportRouter) Running() chan struct{} {
	return r.Router.Running()
}

// Close stops the router and waits for in-flight handlers.
func (r *ImportRouter) Close() error {
	return r.Router.Close()
}
