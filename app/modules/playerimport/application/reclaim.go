package importservice

import (
	"context"
	"errors"
	"fmt"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/Black-And-White-Club/casino-ops/pkg/results"
	"github.com/google/uuid"
)

// ReclaimStaleBatches recovers batches whose worker died. A batch stuck in parsing past
// the stale window has lost that attempt: it goes back to uploaded, or to failed when no
// attempts remain. Batches idling in uploaded are re-enqueued.
func (s *ImportService) ReclaimStaleBatches(ctx context.Context) (*ReclaimSummary, error) {
	return unwrap(withTelemetry(s, ctx, "ReclaimStaleBatches", "", func(ctx context.Context) (results.OperationResult[*ReclaimSummary, error], error) {
		summary, err := s.reclaimLogic(ctx)
		if err != nil {
			return results.OperationResult[*ReclaimSummary, error]{}, err
		}
		return results.SuccessResult[*ReclaimSummary, error](summary), nil
	}))
}

func (s *ImportService) reclaimLogic(ctx context.Context) (*ReclaimSummary, error) {
	summary := &ReclaimSummary{}
	cutoff := s.now().UTC().Add(-s.cfg.StaleAfter)

	stuck, err := s.repo.ListBatchesByStatus(ctx, nil, importdomain.StatusParsing, cutoff, s.cfg.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale parsing batches: %w", err)
	}
	for _, batch := range stuck {
		if batch.AttemptCount >= s.cfg.MaxAttempts {
			failed, err := s.repo.TransitionStatus(ctx, nil, batch.ID, importdomain.StatusParsing, importdomain.StatusFailed,
				importdomain.Failure(importdomain.CodeMaxAttemptsExceeded, fmt.Sprintf("attempt %d abandoned by its worker", batch.AttemptCount)))
			if errors.Is(err, importdb.ErrStateConflict) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("failed to fail stale batch %s: %w", batch.ID, err)
			}
			s.publishFailed(ctx, failed)
			summary.Failed++
			continue
		}

		_, err := s.repo.TransitionStatus(ctx, nil, batch.ID, importdomain.StatusParsing, importdomain.StatusUploaded,
			importdomain.Failure(importdomain.CodeStorageError, fmt.Sprintf("attempt %d abandoned by its worker", batch.AttemptCount)))
		if errors.Is(err, importdb.ErrStateConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to release stale batch %s: %w", batch.ID, err)
		}
		summary.Released++
		s.enqueue(ctx, batch.ID)
	}

	idle, err := s.repo.ListBatchesByStatus(ctx, nil, importdomain.StatusUploaded, cutoff, s.cfg.SweepBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list idle uploaded batches: %w", err)
	}
	for _, batch := range idle {
		if s.enqueue(ctx, batch.ID) {
			summary.Requeued++
		}
	}

	if summary.Released+summary.Failed+summary.Requeued > 0 {
		s.logger.InfoContext(ctx, "Stale batches reclaimed",
			attr.Int("released", summary.Released),
			attr.Int("failed", summary.Failed),
			attr.Int("requeued", summary.Requeued),
		)
	}
	return summary, nil
}

// enqueue schedules ingestion, reporting whether a job was accepted. Failures are logged;
// the next sweep tries again.
func (s *ImportService) enqueue(ctx context.Context, batchID uuid.UUID) bool {
	if s.enqueuer == nil {
		return false
	}
	if err := s.enqueuer.EnqueueIngest(ctx, batchID); err != nil {
		s.logger.WarnContext(ctx, "Failed to enqueue ingestion", attr.BatchID(batchID), attr.Error(err))
		return false
	}
	return true
}
