package importservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/casino-ops/app/events"
	playerdb "github.com/Black-And-White-Club/casino-ops/app/modules/player/infrastructure/repositories"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importmetrics "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/metrics"
	"github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/parsers"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	importstorage "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/storage"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/Black-And-White-Club/casino-ops/pkg/results"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "ImportService"

// ImportService implements the Service interface.
type ImportService struct {
	repo      importdb.Repository
	players   playerdb.Repository
	files     importstorage.FileStore
	parsers   parsers.ParserFactory
	enqueuer  IngestEnqueuer
	publisher message.Publisher
	logger    *slog.Logger
	metrics   importmetrics.Metrics
	tracer    trace.Tracer
	db        *bun.DB
	cfg       Config
	now       func() time.Time
}

// NewImportService creates a new ImportService. enqueuer and publisher may be nil.
func NewImportService(
	repo importdb.Repository,
	players playerdb.Repository,
	files importstorage.FileStore,
	parserFactory parsers.ParserFactory,
	enqueuer IngestEnqueuer,
	publisher message.Publisher,
	logger *slog.Logger,
	metrics importmetrics.Metrics,
	tracer trace.Tracer,
	db *bun.DB,
	cfg Config,
) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = importmetrics.NoopMetrics{}
	}
	return &ImportService{
		repo:      repo,
		players:   players,
		files:     files,
		parsers:   parserFactory,
		enqueuer:  enqueuer,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		db:        db,
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
}

var _ Service = (*ImportService)(nil)

// unwrap converts an operation result into the public (value, error) shape.
func unwrap[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	return *result.Success, nil
}

func batchNotFound(id uuid.UUID) error {
	return fmt.Errorf("%w: %s", importdomain.ErrBatchNotFound, id)
}

// loadBatch reads a batch, mapping a missing row to ErrBatchNotFound.
func (s *ImportService) loadBatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*importdomain.Batch, error) {
	batch, err := s.repo.GetBatch(ctx, db, id)
	if errors.Is(err, importdb.ErrNotFound) {
		return nil, batchNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return batch, nil
}

// failureOrError turns ErrBatchNotFound into a domain failure and anything else into an
// infrastructure error.
func failureOrError[S any](err error) (results.OperationResult[S, error], error) {
	if errors.Is(err, importdomain.ErrBatchNotFound) {
		return results.FailureResult[S, error](err), nil
	}
	return results.OperationResult[S, error]{}, err
}

// publish emits a lifecycle event. Delivery failures are logged and never fail the caller.
func (s *ImportService) publish(ctx context.Context, topic string, payload any) {
	if s.publisher == nil {
		return
	}
	msg, err := events.NewMessage(ctx, topic, payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to build event", attr.String("topic", topic), attr.Error(err))
		return
	}
	if err := s.publisher.Publish(topic, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", attr.String("topic", topic), attr.Error(err))
	}
}

func (s *ImportService) publishFailed(ctx context.Context, batch *importdomain.Batch) {
	if batch == nil || batch.LastErrorCode == nil {
		return
	}
	s.metrics.RecordBatchFailed(ctx, *batch.LastErrorCode)

	payload := events.BatchFailedPayload{
		BatchID:      batch.ID,
		ErrorCode:    batch.LastErrorCode.String(),
		AttemptCount: batch.AttemptCount,
		FailedAt:     s.now().UTC(),
	}
	if batch.LastErrorMessage != nil {
		payload.Message = *batch.LastErrorMessage
	}
	if batch.FailedAt != nil {
		payload.FailedAt = *batch.FailedAt
	}
	s.publish(ctx, events.BatchFailedV1, payload)
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *ImportService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("batch_id", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.InfoContext(ctx, "Operation triggered",
		attr.ExtractCorrelationID(ctx),
		attr.String("operation", operationName),
		attr.String("batch_id", identifier),
	)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("batch_id", identifier),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("batch_id", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("batch_id", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
		span.SetAttributes(attribute.String("failure", fmt.Sprint(*result.Failure)))
	}

	if result.IsSuccess() {
		s.logger.InfoContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("batch_id", identifier),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *ImportService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})
	return result, err
}
