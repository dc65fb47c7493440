package importservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	"github.com/Black-And-White-Club/casino-ops/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateBatch starts a new import keyed by the client idempotency key.
func (s *ImportService) CreateBatch(ctx context.Context, req CreateBatchRequest) (*importdomain.Batch, error) {
	createTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*importdomain.Batch, error], error) {
		return s.createBatchLogic(ctx, db, req)
	}

	return unwrap(withTelemetry(s, ctx, "CreateBatch", req.IdempotencyKey, func(ctx context.Context) (results.OperationResult[*importdomain.Batch, error], error) {
		if err := s.validateCreateRequest(req); err != nil {
			return results.FailureResult[*importdomain.Batch, error](err), nil
		}
		return runInTx(s, ctx, createTx)
	}))
}

func (s *ImportService) validateCreateRequest(req CreateBatchRequest) error {
	if req.InitialStatus != "" && importdomain.BatchStatus(req.InitialStatus) != importdomain.StatusCreated {
		return &importdomain.ValidationError{
			Field:  "initial_status",
			Reason: fmt.Sprintf("a batch can only start as %q, got %q", importdomain.StatusCreated, req.InitialStatus),
		}
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return &importdomain.ValidationError{Field: "idempotency_key", Reason: "must not be empty"}
	}
	if strings.TrimSpace(req.FileName) == "" {
		return &importdomain.ValidationError{Field: "file_name", Reason: "must not be empty"}
	}
	if _, err := s.parsers.GetParser(req.FileName); err != nil {
		return &importdomain.ValidationError{Field: "file_name", Reason: err.Error()}
	}
	return importdomain.ValidateMapping(req.ColumnMapping)
}

func (s *ImportService) createBatchLogic(ctx context.Context, db bun.IDB, req CreateBatchRequest) (results.OperationResult[*importdomain.Batch, error], error) {
	existing, err := s.repo.GetBatchByIdempotencyKey(ctx, db, req.IdempotencyKey)
	switch {
	case err == nil:
		return replayCreate(existing, req), nil
	case !errors.Is(err, importdb.ErrNotFound):
		return results.OperationResult[*importdomain.Batch, error]{}, fmt.Errorf("failed to look up idempotency key: %w", err)
	}

	batch := &importdomain.Batch{
		ID:             uuid.New(),
		IdempotencyKey: req.IdempotencyKey,
		FileName:       strings.TrimSpace(req.FileName),
		VendorLabel:    req.VendorLabel,
		ColumnMapping:  req.ColumnMapping,
		Status:         importdomain.StatusCreated,
	}
	inserted, err := s.repo.InsertBatch(ctx, db, batch)
	if err != nil {
		return results.OperationResult[*importdomain.Batch, error]{}, fmt.Errorf("failed to create batch: %w", err)
	}
	if inserted {
		return results.SuccessResult[*importdomain.Batch, error](batch), nil
	}

	// A concurrent request with the same key won the insert.
	existing, err = s.repo.GetBatchByIdempotencyKey(ctx, db, req.IdempotencyKey)
	if err != nil {
		return results.OperationResult[*importdomain.Batch, error]{}, fmt.Errorf("failed to reload batch after key collision: %w", err)
	}
	return replayCreate(existing, req), nil
}

func replayCreate(existing *importdomain.Batch, req CreateBatchRequest) results.OperationResult[*importdomain.Batch, error] {
	if existing.SamePayload(strings.TrimSpace(req.FileName), req.VendorLabel, req.ColumnMapping) {
		return results.SuccessResult[*importdomain.Batch, error](existing)
	}
	return results.FailureResult[*importdomain.Batch, error](importdomain.NewPipelineError(
		importdomain.CodeIdempotencyKeyConflict,
		fmt.Sprintf("idempotency key already used by batch %s with a different payload", existing.ID),
		nil,
	))
}
