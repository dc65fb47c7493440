package importdb

import (
	"context"
	"fmt"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// insertChunkSize bounds the size of a single multi-row INSERT.
const insertChunkSize = 500

// ReplaceStagedRows deletes the batch's staged rows and inserts rows in their place.
// Callers run it inside a transaction so readers never see a partial set.
func (r *Impl) ReplaceStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID, rows []importdomain.StagedRow) error {
	db = r.resolveDB(db)

	if _, err := db.NewDelete().
		Model((*StagedRow)(nil)).
		Where("batch_id = ?", batchID).
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear staged rows: %w", err)
	}

	models := make([]StagedRow, 0, len(rows))
	for _, row := range rows {
		m := stagedRowFromDomain(row)
		m.BatchID = batchID
		models = append(models, m)
	}

	for start := 0; start < len(models); start += insertChunkSize {
		end := min(start+insertChunkSize, len(models))
		chunk := models[start:end]
		if _, err := db.NewInsert().Model(&chunk).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert staged rows %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// ListStagedRows returns staged rows in source order.
func (r *Impl) ListStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID, validity *importdomain.Validity) ([]importdomain.StagedRow, error) {
	db = r.resolveDB(db)
	var models []StagedRow
	q := db.NewSelect().
		Model(&models).
		Where("batch_id = ?", batchID).
		Order("row_index ASC")
	if validity != nil {
		q = q.Where("validity = ?", string(*validity))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list staged rows: %w", err)
	}

	rows := make([]importdomain.StagedRow, 0, len(models))
	for _, m := range models {
		row, err := m.toDomain()
		if err != nil {
			return nil, fmt.Errorf("failed to decode staged row %d: %w", m.RowIndex, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CountStagedRows aggregates staged rows by validity and by whether they carry a shape issue.
func (r *Impl) CountStagedRows(ctx context.Context, db bun.IDB, batchID uuid.UUID) (importdomain.RowCounts, error) {
	db = r.resolveDB(db)
	var groups []struct {
		Validity string `bun:"validity"`
		Shaped   bool   `bun:"shaped"`
		Count    int    `bun:"count"`
	}
	err := db.NewSelect().
		Model((*StagedRow)(nil)).
		Column("validity").
		ColumnExpr("shape_issue IS NOT NULL AS shaped").
		ColumnExpr("COUNT(*) AS count").
		Where("batch_id = ?", batchID).
		GroupExpr("validity, shape_issue IS NOT NULL").
		Scan(ctx, &groups)
	if err != nil {
		return importdomain.RowCounts{}, fmt.Errorf("failed to count staged rows: %w", err)
	}

	var counts importdomain.RowCounts
	for _, g := range groups {
		switch importdomain.Validity(g.Validity) {
		case importdomain.ValidityValid:
			counts.Valid += g.Count
		case importdomain.ValidityDuplicate:
			counts.Duplicate += g.Count
		default:
			counts.Invalid += g.Count
		}
		if g.Shaped {
			counts.ShapeErrors += g.Count
		}
	}
	return counts, nil
}
