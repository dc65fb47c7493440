package importdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a batch is not found.
	ErrNotFound = errors.New("import batch not found")
	// ErrStateConflict is returned when a conditional status update matched no row.
	ErrStateConflict = errors.New("import batch is not in the expected status")
	// ErrIllegalTransition is returned for an edge the state machine does not allow.
	ErrIllegalTransition = errors.New("illegal import batch transition")
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new import repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// GetBatch retrieves a batch by id.
func (r *Impl) GetBatch(ctx context.Context, db bun.IDB, id uuid.UUID) (*importdomain.Batch, error) {
	db = r.resolveDB(db)
	model := new(ImportBatch)
	err := db.NewSelect().
		Model(model).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get import batch: %w", err)
	}
	return model.toDomain()
}

// GetBatchByIdempotencyKey retrieves the batch created with the given key.
func (r *Impl) GetBatchByIdempotencyKey(ctx context.Context, db bun.IDB, key string) (*importdomain.Batch, error) {
	db = r.resolveDB(db)
	model := new(ImportBatch)
	err := db.NewSelect().
		Model(model).
		Where("idempotency_key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get import batch by idempotency key: %w", err)
	}
	return model.toDomain()
}

// InsertBatch stores a new batch, leaving an existing row with the same key untouched.
func (r *Impl) InsertBatch(ctx context.Context, db bun.IDB, batch *importdomain.Batch) (bool, error) {
	db = r.resolveDB(db)
	model := batchFromDomain(batch)
	now := time.Now().UTC()
	model.CreatedAt = now
	model.UpdatedAt = now

	res, err := db.NewInsert().
		Model(model).
		On("CONFLICT (idempotency_key) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to insert import batch: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return false, nil
	}
	batch.CreatedAt = now
	batch.UpdatedAt = now
	return true, nil
}

// TransitionStatus performs a compare-and-swap on the batch status.
func (r *Impl) TransitionStatus(
	ctx context.Context,
	db bun.IDB,
	id uuid.UUID,
	from, to importdomain.BatchStatus,
	update importdomain.StatusUpdate,
) (*importdomain.Batch, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	db = r.resolveDB(db)
	now := time.Now().UTC()

	q := db.NewUpdate().
		Model((*ImportBatch)(nil)).
		Set("status = ?", string(to)).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", string(from))

	if update.IncrementAttempts {
		q = q.Set("attempt_count = attempt_count + 1")
	}
	if update.TotalRows != nil {
		q = q.Set("total_rows = ?", *update.TotalRows)
	}
	if update.ClearError {
		q = q.Set("last_error_code = NULL").Set("last_error_message = NULL")
	}
	if update.ErrorCode != nil {
		q = q.Set("last_error_code = ?", string(*update.ErrorCode))
	}
	if update.ErrorMessage != nil {
		q = q.Set("last_error_message = ?", *update.ErrorMessage)
	}
	if update.FileKey != nil {
		q = q.Set("file_key = ?", *update.FileKey)
	}
	if update.FileSize != nil {
		q = q.Set("file_size = ?", *update.FileSize)
	}
	if update.FileChecksum != nil {
		q = q.Set("file_checksum = ?", *update.FileChecksum)
	}
	if update.ExecutionKey != nil {
		q = q.Set("execution_key = ?", *update.ExecutionKey)
	}

	switch {
	case from == importdomain.StatusCreated && to == importdomain.StatusUploaded:
		q = q.Set("uploaded_at = ?", now)
	case to == importdomain.StatusParsing:
		q = q.Set("parse_started_at = ?", now)
	case from == importdomain.StatusParsing && to == importdomain.StatusStaged:
		q = q.Set("staged_at = ?", now)
	case to == importdomain.StatusCompleted:
		q = q.Set("executed_at = ?", now)
	case to == importdomain.StatusFailed:
		q = q.Set("failed_at = ?", now)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to transition import batch %s -> %s: %w", from, to, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, ErrStateConflict
	}

	return r.GetBatch(ctx, db, id)
}

// ListBatchesByStatus returns batches in status whose last update is older than before.
func (r *Impl) ListBatchesByStatus(
	ctx context.Context,
	db bun.IDB,
	status importdomain.BatchStatus,
	before time.Time,
	limit int,
) ([]*importdomain.Batch, error) {
	db = r.resolveDB(db)
	var models []ImportBatch
	err := db.NewSelect().
		Model(&models).
		Where("status = ?", string(status)).
		Where("updated_at < ?", before).
		Order("updated_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list import batches by status: %w", err)
	}

	out := make([]*importdomain.Batch, 0, len(models))
	for i := range models {
		b, err := models[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}
