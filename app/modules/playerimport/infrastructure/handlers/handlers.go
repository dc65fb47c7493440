package importhandlers

import (
	"log/slog"

	importservice "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/application"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the request limits enforced before the service is called.
type Config struct {
	// MaxFileBytes caps the upload body. One byte more is read so the service can reject
	// the file and fail the batch.
	MaxFileBytes int64
}

// ImportHandlers implements the Handlers interface.
type ImportHandlers struct {
	service importservice.Service
	jobs    JobLister
	cfg     Config
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewImportHandlers creates a new ImportHandlers instance. jobs may be nil when the queue
// is not inspectable.
func NewImportHandlers(
	service importservice.Service,
	jobs JobLister,
	cfg Config,
	logger *slog.Logger,
	tracer trace.Tracer,
) Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = importservice.DefaultConfig().MaxFileBytes
	}
	return &ImportHandlers{
		service: service,
		jobs:    jobs,
		cfg:     cfg,
		logger:  logger,
		tracer:  tracer,
	}
}
