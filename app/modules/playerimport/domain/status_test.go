package importdomain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from BatchStatus
		to   BatchStatus
		want bool
	}{
		{StatusCreated, StatusUploaded, true},
		{StatusCreated, StatusFailed, true},
		{StatusCreated, StatusParsing, false},
		{StatusUploaded, StatusParsing, true},
		{StatusParsing, StatusStaged, true},
		{StatusParsing, StatusUploaded, true},
		{StatusParsing, StatusFailed, true},
		{StatusStaged, StatusExecuting, true},
		{StatusStaged, StatusFailed, false},
		{StatusExecuting, StatusCompleted, true},
		{StatusExecuting, StatusStaged, true},
		{StatusCompleted, StatusExecuting, false},
		{StatusFailed, StatusUploaded, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestParseBatchStatus(t *testing.T) {
	st, err := ParseBatchStatus("staged")
	require.NoError(t, err)
	assert.Equal(t, StatusStaged, st)

	_, err = ParseBatchStatus("archived")
	assert.Error(t, err)
}

func TestErrorCodeExplanations(t *testing.T) {
	codes := []ErrorCode{
		CodeBatchRowLimit,
		CodeParseError,
		CodeStorageError,
		CodeMaxAttemptsExceeded,
		CodeStateConflict,
		CodeIdempotencyKeyConflict,
	}
	for _, c := range codes {
		assert.True(t, c.Valid())
		assert.NotEqual(t, string(c), c.Explanation())
	}
	assert.False(t, ErrorCode("SOMETHING_WENT_WRONG").Valid())

	// Limits are configurable, so the explanation must not quote any.
	assert.NotRegexp(t, `[0-9]`, CodeBatchRowLimit.Explanation())
}

func TestPipelineErrorCode(t *testing.T) {
	err := NewPipelineError(CodeParseError, "bad quoting", assert.AnError)

	code, ok := CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, CodeParseError, code)
	assert.True(t, IsCode(err, CodeParseError))
	assert.ErrorIs(t, err, assert.AnError)

	_, ok = CodeOf(assert.AnError)
	assert.False(t, ok)
}

func TestBatch_SamePayload(t *testing.T) {
	label := "Konami"
	b := &Batch{FileName: "players.csv", VendorLabel: &label, ColumnMapping: ColumnMapping{FieldEmail: "Email"}}

	assert.True(t, b.SamePayload("players.csv", &label, ColumnMapping{FieldEmail: "email"}))
	assert.False(t, b.SamePayload("players-v2.csv", &label, ColumnMapping{FieldEmail: "Email"}))
	assert.False(t, b.SamePayload("players.csv", nil, ColumnMapping{FieldEmail: "Email"}))
	assert.False(t, b.SamePayload("players.csv", &label, ColumnMapping{FieldPhone: "Email"}))
}

func TestBuildIngestionReport_Duration(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	b := &Batch{ParseStartedAt: &start, StagedAt: &end}

	report := BuildIngestionReport(b, RowCounts{Valid: 2, Invalid: 1, ShapeErrors: 1})
	assert.Equal(t, IngestionReport{TotalRows: 3, ValidRows: 2, InvalidRows: 1, ParseErrors: 1, DurationMs: 1500}, report)
}

func TestExecutionKeyDeterministic(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, ExecutionKey(id), ExecutionKey(id))
	assert.NotEqual(t, ExecutionKey(id), ExecutionKey(uuid.New()))
}

func TestNewExecutionReport_Tallies(t *testing.T) {
	id := uuid.New()
	pid := uuid.New()
	report := NewExecutionReport(id, []ExecutionResult{
		{RowIndex: 0, Outcome: OutcomeCreated, PlayerID: &pid},
		{RowIndex: 1, Outcome: OutcomeLinked, PlayerID: &pid, MatchedCandidateCount: 1},
		{RowIndex: 3, Outcome: OutcomeConflict, MatchedCandidateCount: 2},
	}, nil, nil)

	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Linked)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, ExecutionKey(id), report.ExecutionKey)
	assert.NotNil(t, report.Skipped)
}

func TestResolveOutcome(t *testing.T) {
	assert.Equal(t, OutcomeCreated, ResolveOutcome(0))
	assert.Equal(t, OutcomeLinked, ResolveOutcome(1))
	assert.Equal(t, OutcomeConflict, ResolveOutcome(2))
	assert.Equal(t, OutcomeConflict, ResolveOutcome(5))
}
