package importhandlers

import (
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// RouteConfig configures the HTTP surface of the import module.
type RouteConfig struct {
	AllowedOrigins []string
	// RequestsPerSecond and Burst bound each client IP.
	RequestsPerSecond float64
	Burst             int
}

// RegisterRoutes mounts the import API under /api/player-imports.
func RegisterRoutes(r chi.Router, h Handlers, cfg RouteConfig) {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	limiter := NewIPRateLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	r.Route("/api/player-imports", func(r chi.Router) {
		r.Use(CorrelationMiddleware)
		r.Use(CORSMiddleware(cfg.AllowedOrigins))
		r.Use(RateLimitMiddleware(limiter))

		r.Post("/", h.HandleCreateBatch)
		r.Get("/fields", h.HandleListFields)
		r.Post("/mappings/validate", h.HandleValidateMapping)

		r.Route("/{batchID}", func(r chi.Router) {
			r.Get("/", h.HandleGetBatch)
			r.Put("/file", h.HandleUploadFile)
			r.Get("/rows", h.HandleListRows)
			r.Post("/execute", h.HandleExecuteBatch)
			r.Get("/execution", h.HandleGetExecution)
			r.Get("/execution/chart.png", h.HandleGetExecutionChart)
			r.Get("/jobs", h.HandleListJobs)
		})
	})
}
