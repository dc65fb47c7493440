package importqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	importservice "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/application"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
	"github.com/uptrace/bun"
)

// Metrics interface (satisfied by the import metrics)
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// QueueService defines the contract for import job scheduling
type QueueService interface {
	importservice.IngestEnqueuer
	// Bind attaches the processor the workers drive. Jobs fail until it is called.
	Bind(p BatchProcessor)
	// IngestJobs returns the ingest jobs recorded for a batch (for debugging)
	IngestJobs(ctx context.Context, batchID uuid.UUID) ([]JobInfo, error)
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Ensure Service implements QueueService
var _ QueueService = (*Service)(nil)

// Config tunes the import queue.
type Config struct {
	// MaxWorkers is the concurrency of the import queue.
	MaxWorkers int
	// MaxAttempts is the batch attempt ceiling. Jobs get a small margin above it so the
	// service, not River, decides when a batch fails.
	MaxAttempts int
	// SweepInterval is how often the stale batch sweep runs.
	SweepInterval time.Duration
}

const attemptMargin = 2

// liveJobStates are the states in which an ingest job still counts as pending for its batch.
var liveJobStates = []rivertype.JobState{
	rivertype.JobStateAvailable,
	rivertype.JobStatePending,
	rivertype.JobStateRunning,
	rivertype.JobStateRetryable,
	rivertype.JobStateScheduled,
}

// Service handles import job scheduling using River
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	ref     *processorRef
	logger  *slog.Logger
	db      *bun.DB
	metrics Metrics
	cfg     Config
}

// NewService creates the River-based import queue over its own pgx pool.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, metrics Metrics, cfg Config) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_import_queue_service"),
		attr.String("component", "river_queue"),
	)
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = importservice.DefaultConfig().MaxAttempts
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", "river")

	ctxLogger.Info("Initializing import queue service")

	// River requires pgx, not database/sql
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		ctxLogger.Error("Failed to parse DSN for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		ctxLogger.Error("Failed to create pgx pool for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	ref := &processorRef{}
	workers := river.NewWorkers()
	river.AddWorker(workers, NewIngestBatchWorker(ref, ctxLogger))
	river.AddWorker(workers, NewSweepStaleBatchesWorker(ref, ctxLogger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Logger: ctxLogger,
		Queues: map[string]river.QueueConfig{
			QueueName: {MaxWorkers: cfg.MaxWorkers},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{sweepJob(cfg.SweepInterval)},
	})
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", "river")
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	service := &Service{
		client:  riverClient,
		pool:    pool,
		ref:     ref,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: metrics,
		cfg:     cfg,
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", "river")
	metrics.RecordOperationDuration(ctx, "initialize_service", "river", time.Since(start))

	ctxLogger.Info("Import queue service initialized successfully")
	return service, nil
}

func sweepJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return SweepStaleBatchesArgs{}, &river.InsertOpts{
				Queue:       QueueName,
				MaxAttempts: 1,
				UniqueOpts: river.UniqueOpts{
					ByPeriod: interval,
				},
			}
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}

// ingestInsertOpts allows one live ingest job per batch; a finished job does not block a
// later requeue.
func (s *Service) ingestInsertOpts() *river.InsertOpts {
	return &river.InsertOpts{
		Queue:       QueueName,
		MaxAttempts: s.cfg.MaxAttempts + attemptMargin,
		UniqueOpts: river.UniqueOpts{
			ByArgs:  true,
			ByState: liveJobStates,
		},
	}
}

// Bind attaches the processor the workers drive.
func (s *Service) Bind(p BatchProcessor) {
	s.ref.set(p)
}

// Start starts the River queue service
func (s *Service) Start(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "start_service", "river")

	s.logger.Info("Starting import queue service")

	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", "river")
		return fmt.Errorf("failed to start River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "start_service", "river")
	s.metrics.RecordOperationDuration(ctx, "start_service", "river", time.Since(start))

	s.logger.Info("Import queue service started successfully")
	return nil
}

// Stop waits for running jobs and closes the River pool.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "stop_service", "river")

	s.logger.Info("Stopping import queue service")

	err := s.client.Stop(ctx)
	s.pool.Close()
	if err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service", "river")
		return fmt.Errorf("failed to stop River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "stop_service", "river")
	s.metrics.RecordOperationDuration(ctx, "stop_service", "river", time.Since(start))

	s.logger.Info("Import queue service stopped successfully")
	return nil
}

// EnqueueIngest inserts an ingest job for the batch unless one is already live.
func (s *Service) EnqueueIngest(ctx context.Context, batchID uuid.UUID) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "enqueue_ingest", "river")

	ctxLogger := s.logger.With(
		attr.BatchID(batchID),
		attr.String("operation", "enqueue_ingest"),
	)

	res, err := s.client.Insert(ctx, IngestBatchArgs{BatchID: batchID}, s.ingestInsertOpts())
	if err != nil {
		ctxLogger.Error("Failed to enqueue ingest job", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "enqueue_ingest", "river")
		return fmt.Errorf("failed to enqueue ingest job: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "enqueue_ingest", "river")
	s.metrics.RecordOperationDuration(ctx, "enqueue_ingest", "river", time.Since(start))

	if res.UniqueSkippedAsDuplicate {
		ctxLogger.Debug("Ingest job already live", attr.Int64("job_id", res.Job.ID))
		return nil
	}
	ctxLogger.Info("Ingest job enqueued", attr.Int64("job_id", res.Job.ID))
	return nil
}

// IngestJobs returns the ingest jobs recorded for a batch, newest first.
func (s *Service) IngestJobs(ctx context.Context, batchID uuid.UUID) ([]JobInfo, error) {
	type riverJobRow struct {
		ID          int64     `bun:"id"`
		Kind        string    `bun:"kind"`
		State       string    `bun:"state"`
		CreatedAt   time.Time `bun:"created_at"`
		Attempt     int16     `bun:"attempt"`
		MaxAttempts int16     `bun:"max_attempts"`
	}

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "created_at", "attempt", "max_attempts").
		Where("kind = ?", IngestBatchArgs{}.Kind()).
		Where("args->>'batch_id' = ?", batchID.String()).
		Order("created_at DESC").
		Scan(ctx, &jobs)
	if err != nil {
		return nil, fmt.Errorf("failed to query ingest jobs: %w", err)
	}

	result := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		result[i] = JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			State:       job.State,
			Attempt:     int(job.Attempt),
			MaxAttempts: int(job.MaxAttempts),
			CreatedAt:   job.CreatedAt.Format(time.RFC3339),
		}
	}
	return result, nil
}

// HealthCheck verifies the queue service is healthy
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("river client is nil")
	}
	if err := s.pool.Ping(ctx); err != nil {
		s.logger.Error("Queue service health check failed", attr.Error(err))
		return fmt.Errorf("queue service health check failed: %w", err)
	}
	return nil
}
