package importservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/casino-ops/app/events"
	playerdb "github.com/Black-And-White-Club/casino-ops/app/modules/player/infrastructure/repositories"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/Black-And-White-Club/casino-ops/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// execution is the internal result of ExecuteBatch; replayed marks a report read back
// from an earlier run.
type execution struct {
	report   *importdomain.ExecutionReport
	replayed bool
}

// ExecuteBatch merges the valid rows of a staged batch into the player store. The whole
// merge runs in one transaction; calling it again after success returns the stored report.
func (s *ImportService) ExecuteBatch(ctx context.Context, batchID uuid.UUID, idempotencyKey string) (*importdomain.ExecutionReport, error) {
	executeTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[execution, error], error) {
		return s.executeBatchLogic(ctx, db, batchID)
	}

	result, err := withTelemetry(s, ctx, "ExecuteBatch", batchID.String(), func(ctx context.Context) (results.OperationResult[execution, error], error) {
		if expected := importdomain.ExecutionKey(batchID); idempotencyKey != "" && idempotencyKey != expected {
			return results.FailureResult[execution, error](importdomain.NewPipelineError(
				importdomain.CodeIdempotencyKeyConflict,
				"idempotency key does not belong to this batch",
				nil,
			)), nil
		}
		return runInTx(s, ctx, executeTx)
	})
	exec, err := unwrap(result, err)
	if err != nil {
		return nil, err
	}

	if !exec.replayed {
		for _, r := range exec.report.Results {
			s.metrics.RecordExecutionOutcome(ctx, r.Outcome)
		}
		payload := events.BatchCompletedPayload{
			BatchID:      batchID,
			ExecutionKey: exec.report.ExecutionKey,
			Created:      exec.report.Created,
			Linked:       exec.report.Linked,
			Conflicts:    exec.report.Conflicts,
			Skipped:      len(exec.report.Skipped),
		}
		if exec.report.CompletedAt != nil {
			payload.CompletedAt = *exec.report.CompletedAt
		}
		s.publish(ctx, events.BatchCompletedV1, payload)
	}
	return exec.report, nil
}

func (s *ImportService) executeBatchLogic(ctx context.Context, db bun.IDB, batchID uuid.UUID) (results.OperationResult[execution, error], error) {
	batch, err := s.loadBatch(ctx, db, batchID)
	if err != nil {
		return failureOrError[execution](err)
	}

	switch batch.Status {
	case importdomain.StatusCompleted:
		return s.replayExecution(ctx, db, batch)
	case importdomain.StatusStaged:
	default:
		return results.FailureResult[execution, error](importdomain.StateConflict(batch.Status, importdomain.StatusStaged)), nil
	}

	if _, err := s.repo.TransitionStatus(ctx, db, batchID, importdomain.StatusStaged, importdomain.StatusExecuting, importdomain.StatusUpdate{}); err != nil {
		if !errors.Is(err, importdb.ErrStateConflict) {
			return results.OperationResult[execution, error]{}, fmt.Errorf("failed to claim batch for execution: %w", err)
		}
		// Another executor held the row lock; its outcome is now committed.
		current, err := s.loadBatch(ctx, db, batchID)
		if err != nil {
			return failureOrError[execution](err)
		}
		if current.Status == importdomain.StatusCompleted {
			return s.replayExecution(ctx, db, current)
		}
		return results.FailureResult[execution, error](importdomain.StateConflict(current.Status, importdomain.StatusStaged)), nil
	}

	rows, err := s.repo.ListStagedRows(ctx, db, batchID, nil)
	if err != nil {
		return results.OperationResult[execution, error]{}, fmt.Errorf("failed to list staged rows: %w", err)
	}

	// Another batch creating a player for the same email or phone must commit first.
	if err := s.players.LockIdentities(ctx, db, identityKeys(rows)); err != nil {
		return results.OperationResult[execution, error]{}, err
	}

	outcomes := make([]importdomain.ExecutionResult, 0, len(rows))
	for _, row := range rows {
		player, ok := row.Normalized()
		if !ok {
			continue
		}
		outcome, err := s.resolveRow(ctx, db, batchID, row.RowIndex, player)
		if err != nil {
			return results.OperationResult[execution, error]{}, fmt.Errorf("failed to resolve row %d: %w", row.RowIndex, err)
		}
		outcomes = append(outcomes, outcome)
	}

	if err := s.repo.InsertExecutionResults(ctx, db, batchID, outcomes); err != nil {
		return results.OperationResult[execution, error]{}, fmt.Errorf("failed to store execution results: %w", err)
	}

	key := importdomain.ExecutionKey(batchID)
	completed, err := s.repo.TransitionStatus(ctx, db, batchID, importdomain.StatusExecuting, importdomain.StatusCompleted, importdomain.StatusUpdate{
		ExecutionKey: &key,
	})
	if err != nil {
		return results.OperationResult[execution, error]{}, fmt.Errorf("failed to complete batch: %w", err)
	}

	report := importdomain.NewExecutionReport(batchID, outcomes, importdomain.SkippedRows(rows), completed.ExecutedAt)
	s.logger.InfoContext(ctx, "Batch executed",
		attr.BatchID(batchID),
		attr.Int("created", report.Created),
		attr.Int("linked", report.Linked),
		attr.Int("conflicts", report.Conflicts),
		attr.Int("skipped", len(report.Skipped)),
	)
	return results.SuccessResult[execution, error](execution{report: report}), nil
}

// resolveRow decides the outcome for one valid row. A link recorded earlier for the same
// batch row is returned as is, so identity resolution never runs twice for a row.
func (s *ImportService) resolveRow(ctx context.Context, db bun.IDB, batchID uuid.UUID, rowIndex int, identity importdomain.NormalizedPlayer) (importdomain.ExecutionResult, error) {
	link, err := s.players.GetImportLink(ctx, db, batchID, rowIndex)
	if err == nil {
		playerID := link.PlayerID
		return importdomain.ExecutionResult{
			RowIndex:              rowIndex,
			Outcome:               importdomain.ExecutionOutcome(link.Outcome),
			PlayerID:              &playerID,
			MatchedCandidateCount: link.Candidates,
		}, nil
	}
	if !errors.Is(err, playerdb.ErrNotFound) {
		return importdomain.ExecutionResult{}, err
	}

	candidates, err := s.players.FindByIdentity(ctx, db, identity.Email, identity.Phone)
	if err != nil {
		return importdomain.ExecutionResult{}, err
	}
	ids := distinctPlayerIDs(candidates)

	result := importdomain.ExecutionResult{
		RowIndex:              rowIndex,
		Outcome:               importdomain.ResolveOutcome(len(ids)),
		MatchedCandidateCount: len(ids),
	}

	var playerID uuid.UUID
	switch result.Outcome {
	case importdomain.OutcomeConflict:
		return result, nil
	case importdomain.OutcomeLinked:
		playerID = ids[0]
	case importdomain.OutcomeCreated:
		player := newPlayer(batchID, identity)
		if err := s.players.Create(ctx, db, player); err != nil {
			return importdomain.ExecutionResult{}, err
		}
		playerID = player.ID
	}

	if err := s.players.CreateImportLink(ctx, db, &playerdb.ImportLink{
		BatchID:    batchID,
		RowIndex:   rowIndex,
		PlayerID:   playerID,
		Outcome:    string(result.Outcome),
		Candidates: result.MatchedCandidateCount,
	}); err != nil {
		return importdomain.ExecutionResult{}, err
	}
	result.PlayerID = &playerID
	return result, nil
}

func identityKeys(rows []importdomain.StagedRow) []string {
	var keys []string
	for _, row := range rows {
		if player, ok := row.Normalized(); ok {
			keys = append(keys, player.IdentityKeys()...)
		}
	}
	return keys
}

func distinctPlayerIDs(players []playerdb.Player) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(players))
	ids := make([]uuid.UUID, 0, len(players))
	for _, p := range players {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids
}

func newPlayer(batchID uuid.UUID, identity importdomain.NormalizedPlayer) *playerdb.Player {
	return &playerdb.Player{
		ID:            uuid.New(),
		DisplayName:   identity.DisplayName(),
		FirstName:     optional(identity.FirstName),
		LastName:      optional(identity.LastName),
		Email:         optional(identity.Email),
		Phone:         optional(identity.Phone),
		SourceBatchID: &batchID,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *ImportService) replayExecution(ctx context.Context, db bun.IDB, batch *importdomain.Batch) (results.OperationResult[execution, error], error) {
	report, err := s.loadExecutionReport(ctx, db, batch)
	if err != nil {
		return results.OperationResult[execution, error]{}, err
	}
	s.logger.InfoContext(ctx, "Returning stored execution report", attr.BatchID(batch.ID))
	return results.SuccessResult[execution, error](execution{report: report, replayed: true}), nil
}

func (s *ImportService) loadExecutionReport(ctx context.Context, db bun.IDB, batch *importdomain.Batch) (*importdomain.ExecutionReport, error) {
	outcomes, err := s.repo.ListExecutionResults(ctx, db, batch.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution results: %w", err)
	}
	rows, err := s.repo.ListStagedRows(ctx, db, batch.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list staged rows: %w", err)
	}
	return importdomain.NewExecutionReport(batch.ID, outcomes, importdomain.SkippedRows(rows), batch.ExecutedAt), nil
}
