package importqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	importservice "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/application"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// ingestTimeout bounds a single parse-and-stage attempt.
const ingestTimeout = 2 * time.Minute

// BatchProcessor is the part of the import service the workers drive.
type BatchProcessor interface {
	IngestBatch(ctx context.Context, batchID uuid.UUID) (*importservice.IngestOutcome, error)
	ReclaimStaleBatches(ctx context.Context) (*importservice.ReclaimSummary, error)
}

// processorRef lets workers be registered before the service that enqueues their jobs exists.
type processorRef struct {
	mu sync.RWMutex
	p  BatchProcessor
}

func (r *processorRef) set(p BatchProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = p
}

func (r *processorRef) get() (BatchProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.p == nil {
		return nil, errors.New("batch processor not bound")
	}
	return r.p, nil
}

// IngestBatchWorker runs one ingestion attempt per job. Attempt accounting lives on the
// batch row; River only schedules the retries the service asks for.
type IngestBatchWorker struct {
	river.WorkerDefaults[IngestBatchArgs]
	ref    *processorRef
	logger *slog.Logger
}

// NewIngestBatchWorker creates the ingestion worker.
func NewIngestBatchWorker(ref *processorRef, logger *slog.Logger) *IngestBatchWorker {
	return &IngestBatchWorker{ref: ref, logger: logger}
}

// Timeout overrides River's default job timeout.
func (w *IngestBatchWorker) Timeout(*river.Job[IngestBatchArgs]) time.Duration {
	return ingestTimeout
}

// Work executes the ingest job.
func (w *IngestBatchWorker) Work(ctx context.Context, job *river.Job[IngestBatchArgs]) error {
	logger := w.logger.With(
		attr.BatchID(job.Args.BatchID),
		attr.Int64("job_id", job.ID),
		attr.Int("job_attempt", job.Attempt),
	)

	processor, err := w.ref.get()
	if err != nil {
		return err
	}

	outcome, err := processor.IngestBatch(ctx, job.Args.BatchID)
	if err != nil {
		switch {
		case errors.Is(err, importdomain.ErrBatchNotFound):
			logger.WarnContext(ctx, "Ingest job references unknown batch, cancelling", attr.Error(err))
			return river.JobCancel(err)
		case importdomain.IsCode(err, importdomain.CodeStateConflict):
			// Another job already claimed or finished the batch.
			logger.InfoContext(ctx, "Batch not ingestable, skipping job", attr.Error(err))
			return nil
		}
		logger.ErrorContext(ctx, "Ingest job failed", attr.Error(err))
		return fmt.Errorf("failed to ingest batch %s: %w", job.Args.BatchID, err)
	}

	if outcome.Retryable {
		logger.WarnContext(ctx, "Ingest attempt failed, retry scheduled",
			attr.Int("batch_attempt", outcome.Batch.AttemptCount),
			attr.Error(outcome.Cause),
		)
		return fmt.Errorf("ingest attempt %d of batch %s: %w", outcome.Batch.AttemptCount, job.Args.BatchID, outcome.Cause)
	}

	logger.InfoContext(ctx, "Ingest job finished", attr.String("status", string(outcome.Batch.Status)))
	return nil
}

// SweepStaleBatchesWorker releases batches stuck in parsing and requeues idle uploads.
type SweepStaleBatchesWorker struct {
	river.WorkerDefaults[SweepStaleBatchesArgs]
	ref    *processorRef
	logger *slog.Logger
}

// NewSweepStaleBatchesWorker creates the sweep worker.
func NewSweepStaleBatchesWorker(ref *processorRef, logger *slog.Logger) *SweepStaleBatchesWorker {
	return &SweepStaleBatchesWorker{ref: ref, logger: logger}
}

// Work executes the sweep job.
func (w *SweepStaleBatchesWorker) Work(ctx context.Context, job *river.Job[SweepStaleBatchesArgs]) error {
	processor, err := w.ref.get()
	if err != nil {
		return err
	}

	summary, err := processor.ReclaimStaleBatches(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Stale batch sweep failed", attr.Error(err))
		return fmt.Errorf("failed to sweep stale batches: %w", err)
	}

	if summary.Released+summary.Failed+summary.Requeued > 0 {
		w.logger.InfoContext(ctx, "Stale batch sweep completed",
			attr.Int("released", summary.Released),
			attr.Int("failed", summary.Failed),
			attr.Int("requeued", summary.Requeued),
		)
	}
	return nil
}
