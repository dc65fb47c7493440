package importservice

import (
	"context"
	"fmt"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/Black-And-White-Club/casino-ops/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// GetBatch returns the batch with its ingestion report once rows are staged.
func (s *ImportService) GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchView, error) {
	return unwrap(withTelemetry(s, ctx, "GetBatch", batchID.String(), func(ctx context.Context) (results.OperationResult[*BatchView, error], error) {
		return s.getBatchLogic(ctx, nil, batchID)
	}))
}

func (s *ImportService) getBatchLogic(ctx context.Context, db bun.IDB, batchID uuid.UUID) (results.OperationResult[*BatchView, error], error) {
	batch, err := s.loadBatch(ctx, db, batchID)
	if err != nil {
		return failureOrError[*BatchView](err)
	}

	view := &BatchView{Batch: batch}
	if batch.LastErrorCode != nil {
		view.ErrorExplanation = batch.LastErrorCode.Explanation()
	}
	if batch.Status.HasStagedRows() {
		counts, err := s.repo.CountStagedRows(ctx, db, batchID)
		if err != nil {
			return results.OperationResult[*BatchView, error]{}, fmt.Errorf("failed to count staged rows: %w", err)
		}
		report := importdomain.BuildIngestionReport(batch, counts)
		view.Report = &report
	}
	return results.SuccessResult[*BatchView, error](view), nil
}

// ListStagedRows returns the staged rows of a batch, optionally filtered by validity.
func (s *ImportService) ListStagedRows(ctx context.Context, batchID uuid.UUID, validity *importdomain.Validity) ([]importdomain.StagedRow, error) {
	return unwrap(withTelemetry(s, ctx, "ListStagedRows", batchID.String(), func(ctx context.Context) (results.OperationResult[[]importdomain.StagedRow, error], error) {
		batch, err := s.loadBatch(ctx, nil, batchID)
		if err != nil {
			return failureOrError[[]importdomain.StagedRow](err)
		}
		if !batch.Status.HasStagedRows() {
			return results.FailureResult[[]importdomain.StagedRow, error](importdomain.StateConflict(batch.Status, importdomain.StatusStaged)), nil
		}
		rows, err := s.repo.ListStagedRows(ctx, nil, batchID, validity)
		if err != nil {
			return results.OperationResult[[]importdomain.StagedRow, error]{}, fmt.Errorf("failed to list staged rows: %w", err)
		}
		if rows == nil {
			rows = []importdomain.StagedRow{}
		}
		return results.SuccessResult[[]importdomain.StagedRow, error](rows), nil
	}))
}

// GetExecutionReport returns the stored report of a completed batch.
func (s *ImportService) GetExecutionReport(ctx context.Context, batchID uuid.UUID) (*importdomain.ExecutionReport, error) {
	return unwrap(withTelemetry(s, ctx, "GetExecutionReport", batchID.String(), func(ctx context.Context) (results.OperationResult[*importdomain.ExecutionReport, error], error) {
		batch, err := s.loadBatch(ctx, nil, batchID)
		if err != nil {
			return failureOrError[*importdomain.ExecutionReport](err)
		}
		if batch.Status != importdomain.StatusCompleted {
			return results.FailureResult[*importdomain.ExecutionReport, error](importdomain.StateConflict(batch.Status, importdomain.StatusCompleted)), nil
		}
		report, err := s.loadExecutionReport(ctx, nil, batch)
		if err != nil {
			return results.OperationResult[*importdomain.ExecutionReport, error]{}, err
		}
		return results.SuccessResult[*importdomain.ExecutionReport, error](report), nil
	}))
}
