package importservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/casino-ops/app/events"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/parsers"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/Black-And-White-Club/casino-ops/pkg/results"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ingestResult = results.OperationResult[*IngestOutcome, error]

// errAttemptLost aborts the staging transaction when the batch left parsing under this
// attempt, so the replaced rows are rolled back.
var errAttemptLost = errors.New("parsing attempt no longer owns the batch")

// IngestBatch claims an uploaded batch, parses its file and stages every row. Each call is
// one attempt; a transient failure puts the batch back in uploaded until the attempt
// ceiling is reached.
func (s *ImportService) IngestBatch(ctx context.Context, batchID uuid.UUID) (*IngestOutcome, error) {
	return unwrap(withTelemetry(s, ctx, "IngestBatch", batchID.String(), func(ctx context.Context) (ingestResult, error) {
		return s.ingestBatchLogic(ctx, batchID)
	}))
}

func (s *ImportService) ingestBatchLogic(ctx context.Context, batchID uuid.UUID) (ingestResult, error) {
	claimTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*importdomain.Batch, error], error) {
		return s.claimForParsing(ctx, db, batchID)
	}
	claim, err := runInTx(s, ctx, claimTx)
	if err != nil {
		return ingestResult{}, err
	}
	if claim.IsFailure() {
		return results.FailureResult[*IngestOutcome, error](*claim.Failure), nil
	}
	batch := *claim.Success

	if batch.Status == importdomain.StatusFailed {
		s.publishFailed(ctx, batch)
		return results.SuccessResult[*IngestOutcome, error](&IngestOutcome{
			Batch: batch,
			Cause: importdomain.NewPipelineError(importdomain.CodeMaxAttemptsExceeded, "attempt ceiling reached before parsing", nil),
		}), nil
	}

	s.logger.InfoContext(ctx, "Batch claimed for parsing",
		attr.BatchID(batch.ID),
		attr.Int("attempt", batch.AttemptCount),
	)

	table, perr := s.readAndParse(ctx, batch)
	if perr != nil {
		return s.abandonAttempt(ctx, batch, perr)
	}

	rows, perr := classifyTable(batch, table)
	if perr != nil {
		return s.abandonAttempt(ctx, batch, perr)
	}

	stageTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*importdomain.Batch, error], error) {
		return s.stageRows(ctx, db, batch, rows)
	}
	staged, err := runInTx(s, ctx, stageTx)
	if errors.Is(err, errAttemptLost) {
		s.logger.WarnContext(ctx, "Batch reclaimed while parsing; staged rows discarded", attr.BatchID(batch.ID))
		return s.lostAttempt(ctx, batch.ID)
	}
	if err != nil {
		return s.abandonAttempt(ctx, batch, importdomain.NewPipelineError(importdomain.CodeStorageError, "failed to write staged rows", err))
	}

	counts := importdomain.CountRows(rows)
	s.metrics.RecordRowsStaged(ctx, counts)

	stagedBatch := *staged.Success
	payload := events.BatchStagedPayload{
		BatchID:       stagedBatch.ID,
		TotalRows:     counts.Total(),
		ValidRows:     counts.Valid,
		InvalidRows:   counts.Invalid,
		DuplicateRows: counts.Duplicate,
	}
	if stagedBatch.StagedAt != nil {
		payload.StagedAt = *stagedBatch.StagedAt
	}
	s.publish(ctx, events.BatchStagedV1, payload)

	return results.SuccessResult[*IngestOutcome, error](&IngestOutcome{Batch: stagedBatch}), nil
}

// claimForParsing moves uploaded -> parsing and counts the attempt. A batch that already
// used every attempt is failed instead of claimed.
func (s *ImportService) claimForParsing(ctx context.Context, db bun.IDB, batchID uuid.UUID) (results.OperationResult[*importdomain.Batch, error], error) {
	batch, err := s.loadBatch(ctx, db, batchID)
	if err != nil {
		return failureOrError[*importdomain.Batch](err)
	}
	if batch.Status != importdomain.StatusUploaded {
		return results.FailureResult[*importdomain.Batch, error](importdomain.StateConflict(batch.Status, importdomain.StatusUploaded)), nil
	}

	if batch.AttemptCount >= s.cfg.MaxAttempts {
		failed, err := s.repo.TransitionStatus(ctx, db, batchID, importdomain.StatusUploaded, importdomain.StatusFailed,
			importdomain.Failure(importdomain.CodeMaxAttemptsExceeded, fmt.Sprintf("%d parsing attempts used", batch.AttemptCount)))
		if err != nil {
			return s.claimError(ctx, db, batchID, err)
		}
		return results.SuccessResult[*importdomain.Batch, error](failed), nil
	}

	claimed, err := s.repo.TransitionStatus(ctx, db, batchID, importdomain.StatusUploaded, importdomain.StatusParsing,
		importdomain.StatusUpdate{IncrementAttempts: true})
	if err != nil {
		return s.claimError(ctx, db, batchID, err)
	}
	return results.SuccessResult[*importdomain.Batch, error](claimed), nil
}

func (s *ImportService) claimError(ctx context.Context, db bun.IDB, batchID uuid.UUID, err error) (results.OperationResult[*importdomain.Batch, error], error) {
	if !errors.Is(err, importdb.ErrStateConflict) {
		return results.OperationResult[*importdomain.Batch, error]{}, fmt.Errorf("failed to claim batch: %w", err)
	}
	current, err := s.loadBatch(ctx, db, batchID)
	if err != nil {
		return failureOrError[*importdomain.Batch](err)
	}
	return results.FailureResult[*importdomain.Batch, error](importdomain.StateConflict(current.Status, importdomain.StatusUploaded)), nil
}

// readAndParse loads the stored file and parses it within the row and size ceilings.
func (s *ImportService) readAndParse(ctx context.Context, batch *importdomain.Batch) (*parsers.Table, *importdomain.PipelineError) {
	if batch.FileKey == nil {
		return nil, importdomain.NewPipelineError(importdomain.CodeStorageError, "batch has no stored file", nil)
	}
	data, err := s.files.Get(ctx, *batch.FileKey)
	if err != nil {
		return nil, importdomain.NewPipelineError(importdomain.CodeStorageError, "failed to read uploaded file", err)
	}
	if batch.FileChecksum != nil && fileChecksum(data) != *batch.FileChecksum {
		return nil, importdomain.NewPipelineError(importdomain.CodeParseError, "stored file does not match the uploaded checksum", nil)
	}
	if int64(len(data)) > s.cfg.MaxFileBytes {
		return nil, importdomain.NewPipelineError(importdomain.CodeBatchRowLimit,
			fmt.Sprintf("file is %d bytes, limit is %d", len(data), s.cfg.MaxFileBytes), nil)
	}

	parser, err := s.parsers.GetParser(batch.FileName)
	if err != nil {
		return nil, importdomain.NewPipelineError(importdomain.CodeParseError, "no parser for file", err)
	}
	table, err := parser.Parse(data, parsers.Limits{MaxRows: s.cfg.MaxRows})
	if err != nil {
		if errors.Is(err, parsers.ErrRowLimitExceeded) {
			return nil, importdomain.NewPipelineError(importdomain.CodeBatchRowLimit,
				fmt.Sprintf("file has more than %d rows", s.cfg.MaxRows), err)
		}
		return nil, importdomain.NewPipelineError(importdomain.CodeParseError, "file could not be parsed", err)
	}
	return table, nil
}

// classifyTable resolves the mapping against the header row and classifies every row in
// source order.
func classifyTable(batch *importdomain.Batch, table *parsers.Table) ([]importdomain.StagedRow, *importdomain.PipelineError) {
	classifier, err := importdomain.NewRowClassifier(batch.ID, table.Header, batch.ColumnMapping)
	if err != nil {
		return nil, importdomain.NewPipelineError(importdomain.CodeParseError, "file does not match the column mapping", err)
	}
	rows := make([]importdomain.StagedRow, 0, len(table.Rows))
	for i, record := range table.Rows {
		rows = append(rows, classifier.Classify(i, record))
	}
	return rows, nil
}

func (s *ImportService) stageRows(ctx context.Context, db bun.IDB, batch *importdomain.Batch, rows []importdomain.StagedRow) (results.OperationResult[*importdomain.Batch, error], error) {
	if err := s.repo.ReplaceStagedRows(ctx, db, batch.ID, rows); err != nil {
		return results.OperationResult[*importdomain.Batch, error]{}, err
	}
	total := len(rows)
	staged, err := s.repo.TransitionStatus(ctx, db, batch.ID, importdomain.StatusParsing, importdomain.StatusStaged, importdomain.StatusUpdate{
		TotalRows:  &total,
		ClearError: true,
	})
	if errors.Is(err, importdb.ErrStateConflict) {
		return results.OperationResult[*importdomain.Batch, error]{}, errAttemptLost
	}
	if err != nil {
		return results.OperationResult[*importdomain.Batch, error]{}, err
	}
	return results.SuccessResult[*importdomain.Batch, error](staged), nil
}

// lostAttempt reports the status the batch moved to after the stale sweep took it back.
func (s *ImportService) lostAttempt(ctx context.Context, batchID uuid.UUID) (ingestResult, error) {
	current, err := s.loadBatch(ctx, nil, batchID)
	if err != nil {
		return failureOrError[*IngestOutcome](err)
	}
	return results.FailureResult[*IngestOutcome, error](importdomain.StateConflict(current.Status, importdomain.StatusParsing)), nil
}

// abandonAttempt ends a parsing attempt that did not stage. Storage errors release the
// batch for another attempt while attempts remain; everything else is terminal.
func (s *ImportService) abandonAttempt(ctx context.Context, batch *importdomain.Batch, cause *importdomain.PipelineError) (ingestResult, error) {
	if cause.Code == importdomain.CodeStorageError && batch.AttemptCount < s.cfg.MaxAttempts {
		released, err := s.repo.TransitionStatus(ctx, nil, batch.ID, importdomain.StatusParsing, importdomain.StatusUploaded,
			importdomain.Failure(importdomain.CodeStorageError, cause.Error()))
		if err != nil {
			return s.abandonError(ctx, batch.ID, err)
		}
		s.logger.WarnContext(ctx, "Parsing attempt failed, batch released for retry",
			attr.BatchID(batch.ID),
			attr.Int("attempt", batch.AttemptCount),
			attr.Int("max_attempts", s.cfg.MaxAttempts),
			attr.Error(cause),
		)
		return results.SuccessResult[*IngestOutcome, error](&IngestOutcome{Batch: released, Retryable: true, Cause: cause}), nil
	}

	code, msg := cause.Code, cause.Error()
	if cause.Code == importdomain.CodeStorageError {
		code = importdomain.CodeMaxAttemptsExceeded
		msg = fmt.Sprintf("gave up after %d attempts: %s", batch.AttemptCount, cause.Error())
	}
	failed, err := s.repo.TransitionStatus(ctx, nil, batch.ID, importdomain.StatusParsing, importdomain.StatusFailed,
		importdomain.Failure(code, msg))
	if err != nil {
		return s.abandonError(ctx, batch.ID, err)
	}
	s.logger.WarnContext(ctx, "Batch failed during parsing",
		attr.BatchID(batch.ID),
		attr.String("error_code", code.String()),
		attr.Error(cause),
	)
	s.publishFailed(ctx, failed)
	return results.SuccessResult[*IngestOutcome, error](&IngestOutcome{
		Batch: failed,
		Cause: importdomain.NewPipelineError(code, msg, cause),
	}), nil
}

func (s *ImportService) abandonError(ctx context.Context, batchID uuid.UUID, err error) (ingestResult, error) {
	if errors.Is(err, importdb.ErrStateConflict) {
		current, loadErr := s.loadBatch(ctx, nil, batchID)
		if loadErr != nil {
			return failureOrError[*IngestOutcome](loadErr)
		}
		return results.FailureResult[*IngestOutcome, error](importdomain.StateConflict(current.Status, importdomain.StatusParsing)), nil
	}
	return ingestResult{}, fmt.Errorf("failed to record parsing outcome: %w", err)
}
