package importdb

import (
	"context"
	"fmt"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// InsertExecutionResults appends per-row outcomes. A row already recorded for the batch
// keeps its first outcome.
func (r *Impl) InsertExecutionResults(ctx context.Context, db bun.IDB, batchID uuid.UUID, results []importdomain.ExecutionResult) error {
	if len(results) == 0 {
		return nil
	}
	db = r.resolveDB(db)

	models := make([]ExecutionResult, 0, len(results))
	for _, res := range results {
		models = append(models, executionResultFromDomain(batchID, res))
	}

	for start := 0; start < len(models); start += insertChunkSize {
		end := min(start+insertChunkSize, len(models))
		chunk := models[start:end]
		if _, err := db.NewInsert().
			Model(&chunk).
			On("CONFLICT (batch_id, row_index) DO NOTHING").
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert execution results: %w", err)
		}
	}
	return nil
}

// ListExecutionResults returns stored outcomes in row order.
func (r *Impl) ListExecutionResults(ctx context.Context, db bun.IDB, batchID uuid.UUID) ([]importdomain.ExecutionResult, error) {
	db = r.resolveDB(db)
	var models []ExecutionResult
	err := db.NewSelect().
		Model(&models).
		Where("batch_id = ?", batchID).
		Order("row_index ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution results: %w", err)
	}

	out := make([]importdomain.ExecutionResult, 0, len(models))
	for _, m := range models {
		out = append(out, m.toDomain())
	}
	return out, nil
}
