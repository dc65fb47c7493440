package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// mountMetrics serves /metrics on the API router, or on its own listener when a
// metrics address is configured.
func mountMetrics(app *App) {
	handler := promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{Registry: app.Registry})
	addr := app.Config.Observability.MetricsAddress
	if addr == "" || addr == app.Config.HTTP.Address {
		app.Router.Handle("/metrics", handler)
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	app.metricsServer = newServer(addr, mux)
}

func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (app *App) serve(srv *http.Server, errCh chan<- error) {
	go func() {
		app.Logger.Info("Starting HTTP server", attr.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
}

func shutdownServer(ctx context.Context, logger *slog.Logger, srv *http.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorContext(ctx, "HTTP server shutdown failed", attr.String("address", srv.Addr), attr.Error(err))
	}
}
