package importservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	importstorage "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/storage"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/Black-And-White-Club/casino-ops/pkg/results"
	"github.com/google/uuid"
)

// UploadFile stores the raw file for a created batch and schedules its ingestion.
func (s *ImportService) UploadFile(ctx context.Context, batchID uuid.UUID, data []byte) (*importdomain.Batch, error) {
	return unwrap(withTelemetry(s, ctx, "UploadFile", batchID.String(), func(ctx context.Context) (results.OperationResult[*importdomain.Batch, error], error) {
		return s.uploadFileLogic(ctx, batchID, data)
	}))
}

func (s *ImportService) uploadFileLogic(ctx context.Context, batchID uuid.UUID, data []byte) (results.OperationResult[*importdomain.Batch, error], error) {
	batch, err := s.loadBatch(ctx, nil, batchID)
	if err != nil {
		return failureOrError[*importdomain.Batch](err)
	}
	if batch.Status != importdomain.StatusCreated {
		return results.FailureResult[*importdomain.Batch, error](importdomain.StateConflict(batch.Status, importdomain.StatusCreated)), nil
	}
	if len(data) == 0 {
		return results.FailureResult[*importdomain.Batch, error](&importdomain.ValidationError{Field: "file", Reason: "must not be empty"}), nil
	}

	if int64(len(data)) > s.cfg.MaxFileBytes {
		msg := fmt.Sprintf("file is %d bytes, limit is %d", len(data), s.cfg.MaxFileBytes)
		failed, err := s.repo.TransitionStatus(ctx, nil, batchID, importdomain.StatusCreated, importdomain.StatusFailed,
			importdomain.Failure(importdomain.CodeBatchRowLimit, msg))
		if err != nil {
			if errors.Is(err, importdb.ErrStateConflict) {
				return s.uploadConflict(ctx, batchID, "", "")
			}
			return results.OperationResult[*importdomain.Batch, error]{}, fmt.Errorf("failed to fail oversized batch: %w", err)
		}
		s.publishFailed(ctx, failed)
		return results.FailureResult[*importdomain.Batch, error](importdomain.NewPipelineError(importdomain.CodeBatchRowLimit, msg, nil)), nil
	}

	checksum := fileChecksum(data)
	key := importstorage.ObjectKey(batchID, checksum, batch.FileName)
	if err := s.files.Put(ctx, key, data); err != nil {
		return results.FailureResult[*importdomain.Batch, error](importdomain.NewPipelineError(importdomain.CodeStorageError, "failed to store uploaded file", err)), nil
	}
	size := int64(len(data))

	uploaded, err := s.repo.TransitionStatus(ctx, nil, batchID, importdomain.StatusCreated, importdomain.StatusUploaded, importdomain.StatusUpdate{
		FileKey:      &key,
		FileSize:     &size,
		FileChecksum: &checksum,
	})
	if err != nil {
		if errors.Is(err, importdb.ErrStateConflict) {
			return s.uploadConflict(ctx, batchID, checksum, key)
		}
		return results.OperationResult[*importdomain.Batch, error]{}, fmt.Errorf("failed to mark batch uploaded: %w", err)
	}

	s.enqueue(ctx, batchID)

	return results.SuccessResult[*importdomain.Batch, error](uploaded), nil
}

// uploadConflict resolves a lost created -> uploaded race. Re-uploading identical bytes is
// treated as the same upload. The loser's object is removed unless it is the winner's.
func (s *ImportService) uploadConflict(ctx context.Context, batchID uuid.UUID, checksum, key string) (results.OperationResult[*importdomain.Batch, error], error) {
	current, err := s.loadBatch(ctx, nil, batchID)
	if err != nil {
		return failureOrError[*importdomain.Batch](err)
	}
	if key != "" && (current.FileKey == nil || *current.FileKey != key) {
		if err := s.files.Delete(ctx, key); err != nil {
			s.logger.WarnContext(ctx, "Failed to remove rejected upload", attr.BatchID(batchID), attr.String("file_key", key), attr.Error(err))
		}
	}
	if checksum != "" && current.FileChecksum != nil && *current.FileChecksum == checksum && current.Status != importdomain.StatusCreated {
		return results.SuccessResult[*importdomain.Batch, error](current), nil
	}
	return results.FailureResult[*importdomain.Batch, error](importdomain.StateConflict(current.Status, importdomain.StatusCreated)), nil
}

func fileChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
