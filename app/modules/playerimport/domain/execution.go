package importdomain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionOutcome is the per-row result of merging into the player store.
type ExecutionOutcome string

const (
	OutcomeLinked   ExecutionOutcome = "linked"
	OutcomeCreated  ExecutionOutcome = "created"
	OutcomeConflict ExecutionOutcome = "conflict"
)

// ResolveOutcome maps the number of matching players to an outcome.
func ResolveOutcome(candidates int) ExecutionOutcome {
	switch {
	case candidates == 0:
		return OutcomeCreated
	case candidates == 1:
		return OutcomeLinked
	default:
		return OutcomeConflict
	}
}

// ExecutionResult records what happened to one valid staged row.
type ExecutionResult struct {
	RowIndex              int              `json:"row_index"`
	Outcome               ExecutionOutcome `json:"outcome"`
	PlayerID              *uuid.UUID       `json:"player_id,omitempty"`
	MatchedCandidateCount int              `json:"matched_candidate_count"`
}

// SkippedRow is an invalid or duplicate row reported but never merged.
type SkippedRow struct {
	RowIndex int          `json:"row_index"`
	Validity Validity     `json:"validity"`
	Reason   RejectReason `json:"reason"`
}

// ExecutionReport is the audit trail of one batch execution.
type ExecutionReport struct {
	BatchID      uuid.UUID         `json:"batch_id"`
	ExecutionKey string            `json:"execution_key"`
	Results      []ExecutionResult `json:"results"`
	Skipped      []SkippedRow      `json:"skipped"`
	Created      int               `json:"created"`
	Linked       int               `json:"linked"`
	Conflicts    int               `json:"conflicts"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

// NewExecutionReport tallies results into a report.
func NewExecutionReport(batchID uuid.UUID, results []ExecutionResult, skipped []SkippedRow, completedAt *time.Time) *ExecutionReport {
	report := &ExecutionReport{
		BatchID:      batchID,
		ExecutionKey: ExecutionKey(batchID),
		Results:      results,
		Skipped:      skipped,
		CompletedAt:  completedAt,
	}
	if report.Results == nil {
		report.Results = []ExecutionResult{}
	}
	if report.Skipped == nil {
		report.Skipped = []SkippedRow{}
	}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeCreated:
			report.Created++
		case OutcomeLinked:
			report.Linked++
		case OutcomeConflict:
			report.Conflicts++
		}
	}
	return report
}

// executionNamespace scopes execution keys so they never collide with other v5 ids.
var executionNamespace = uuid.MustParse("6f1c2a9e-4b7d-5e38-9a41-c0d2e7f3b815")

// ExecutionKey derives the idempotency key for executing a batch.
func ExecutionKey(batchID uuid.UUID) string {
	return uuid.NewSHA1(executionNamespace, batchID[:]).String()
}

// SkippedRows extracts the rows execution reports but never merges.
func SkippedRows(rows []StagedRow) []SkippedRow {
	var skipped []SkippedRow
	for _, r := range rows {
		reason := r.RejectReason()
		if reason == nil {
			continue
		}
		skipped = append(skipped, SkippedRow{RowIndex: r.RowIndex, Validity: r.Validity(), Reason: *reason})
	}
	return skipped
}
