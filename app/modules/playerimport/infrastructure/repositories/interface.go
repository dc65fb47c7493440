package importdb

import (
	"context"
	"time"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Repository defines the contract for batch, staging and execution persistence.
type Repository interface {
	// GetBatch retrieves a batch by id.
	GetBatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*importdomain.Batch, error)

	// GetBatchByIdempotencyKey retrieves the batch created with the given key.
	GetBatchByIdempotencyKey(ctx context.Context, db bun.IDB, key string) (*importdomain.Batch, error)

	// InsertBatch stores a new batch. It reports false when the idempotency key is taken.
	InsertBatch(ctx context.Context, db bun.IDB, batch *importdomain.Batch) (bool, error)

	// TransitionStatus moves a batch from one status to another only if it is still in
	// from. ErrStateConflict is returned when the batch has moved on.
	TransitionStatus(ctx context.Context, db bun.IDB, id uuid.UUID, from, to importdomain.BatchStatus, update importdomain.StatusUpdate) (*importdomain.Batch, error)

	// ListBatchesByStatus returns batches in status not updated since before, oldest first.
	ListBatchesByStatus(ctx context.Context, db bun.IDB, status importdomain.BatchStatus, before time.Time, limit int) ([]*importdomain.Batch, error)

	// ReplaceStagedRows swaps the batch's staged rows for rows.
	ReplaceStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID, rows []importdomain.StagedRow) error

	// ListStagedRows returns staged rows in row order, optionally filtered by validity.
	ListStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID, validity *importdomain.Validity) ([]importdomain.StagedRow, error)

	// CountStagedRows aggregates staged rows for the ingestion report.
	CountStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID) (importdomain.RowCounts, error)

	// InsertExecutionResults appends the per-row outcomes of an execution.
	InsertExecutionResults(ctx context.Context, db bun.IDB, batchID uuid.UUID, results []importdomain.ExecutionResult) error

	// ListExecutionResults returns stored outcomes in row order.
	ListExecutionResults(ctx context.Context, db bun.IDB, batchID uuid.UUID) ([]importdomain.ExecutionResult, error)
}
