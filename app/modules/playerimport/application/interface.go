package importservice

import (
	"context"
	"time"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/google/uuid"
)

// Service drives import batches through their lifecycle.
type Service interface {
	// CreateBatch starts a new import, or returns the batch already created with the same
	// idempotency key and payload.
	CreateBatch(ctx context.Context, req CreateBatchRequest) (*importdomain.Batch, error)
	// UploadFile stores the raw file and moves the batch to uploaded.
	UploadFile(ctx context.Context, batchID uuid.UUID, data []byte) (*importdomain.Batch, error)
	// GetBatch returns the batch with its ingestion report once rows are staged.
	GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchView, error)
	// ListStagedRows returns staged rows in source order.
	ListStagedRows(ctx context.Context, batchID uuid.UUID, validity *importdomain.Validity) ([]importdomain.StagedRow, error)
	// IngestBatch runs one parsing attempt for an uploaded batch.
	IngestBatch(ctx context.Context, batchID uuid.UUID) (*IngestOutcome, error)
	// ExecuteBatch merges a staged batch into the player store. Safe to repeat.
	ExecuteBatch(ctx context.Context, batchID uuid.UUID, idempotencyKey string) (*importdomain.ExecutionReport, error)
	// GetExecutionReport returns the stored report of a completed batch.
	GetExecutionReport(ctx context.Context, batchID uuid.UUID) (*importdomain.ExecutionReport, error)
	// ReclaimStaleBatches releases batches abandoned by crashed workers.
	ReclaimStaleBatches(ctx context.Context) (*ReclaimSummary, error)
}

// IngestEnqueuer schedules ingestion of an uploaded batch.
type IngestEnqueuer interface {
	EnqueueIngest(ctx context.Context, batchID uuid.UUID) error
}

// CreateBatchRequest is the client payload that starts an import.
type CreateBatchRequest struct {
	IdempotencyKey string
	FileName       string
	VendorLabel    *string
	ColumnMapping  importdomain.ColumnMapping
	// InitialStatus must be empty or "created".
	InitialStatus string
}

// BatchView is what clients poll.
type BatchView struct {
	Batch            *importdomain.Batch           `json:"batch"`
	Report           *importdomain.IngestionReport `json:"report,omitempty"`
	ErrorExplanation string                        `json:"error_explanation,omitempty"`
}

// IngestOutcome reports one ingestion attempt.
type IngestOutcome struct {
	Batch *importdomain.Batch
	// Retryable is set when the attempt hit a transient failure and the batch went back
	// to uploaded.
	Retryable bool
	// Cause is the transient or terminal error behind a non-staged outcome.
	Cause error
}

// ReclaimSummary counts what a stale sweep did.
type ReclaimSummary struct {
	Released int `json:"released"`
	Failed   int `json:"failed"`
	Requeued int `json:"requeued"`
}

// Config bounds the pipeline.
type Config struct {
	MaxRows        int
	MaxFileBytes   int64
	MaxAttempts    int
	StaleAfter     time.Duration
	SweepBatchSize int
}

// DefaultConfig returns the production limits.
func DefaultConfig() Config {
	return Config{
		MaxRows:        10000,
		MaxFileBytes:   10 << 20,
		MaxAttempts:    3,
		StaleAfter:     10 * time.Minute,
		SweepBatchSize: 100,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRows <= 0 {
		c.MaxRows = d.MaxRows
	}
	if c.MaxFileBytes <= 0 {
		c.MaxFileBytes = d.MaxFileBytes
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.SweepBatchSize <= 0 {
		c.SweepBatchSize = d.SweepBatchSize
	}
	return c
}
