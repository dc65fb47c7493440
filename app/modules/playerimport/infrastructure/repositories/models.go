package importdb

import (
	"time"

	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ImportBatch is the stored form of an import batch.
type ImportBatch struct {
	bun.BaseModel    `bun:"table:player_import_batches,alias:pib"`
	ID               uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	IdempotencyKey   string            `bun:"idempotency_key,notnull,unique" json:"idempotency_key"`
	FileName         string            `bun:"file_name,notnull" json:"file_name"`
	VendorLabel      *string           `bun:"vendor_label" json:"vendor_label,omitempty"`
	ColumnMapping    map[string]string `bun:"column_mapping,type:jsonb,notnull" json:"column_mapping"`
	Status           string            `bun:"status,notnull" json:"status"`
	TotalRows        *int              `bun:"total_rows" json:"total_rows,omitempty"`
	AttemptCount     int               `bun:"attempt_count,notnull" json:"attempt_count"`
	LastErrorCode    *string           `bun:"last_error_code" json:"last_error_code,omitempty"`
	LastErrorMessage *string           `bun:"last_error_message" json:"last_error_message,omitempty"`
	FileKey          *string           `bun:"file_key" json:"file_key,omitempty"`
	FileSize         *int64            `bun:"file_size" json:"file_size,omitempty"`
	FileChecksum     *string           `bun:"file_checksum" json:"file_checksum,omitempty"`
	ExecutionKey     *string           `bun:"execution_key" json:"execution_key,omitempty"`
	CreatedAt        time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time         `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
	UploadedAt       *time.Time        `bun:"uploaded_at" json:"uploaded_at,omitempty"`
	ParseStartedAt   *time.Time        `bun:"parse_started_at" json:"parse_started_at,omitempty"`
	StagedAt         *time.Time        `bun:"staged_at" json:"staged_at,omitempty"`
	ExecutedAt       *time.Time        `bun:"executed_at" json:"executed_at,omitempty"`
	FailedAt         *time.Time        `bun:"failed_at" json:"failed_at,omitempty"`
}

// StagedRow is the stored form of a classified source row.
type StagedRow struct {
	bun.BaseModel `bun:"table:player_import_staged_rows,alias:pisr"`
	BatchID       uuid.UUID                      `bun:"batch_id,pk,type:uuid"`
	RowIndex      int                            `bun:"row_index,pk"`
	RawFields     map[string]string              `bun:"raw_fields,type:jsonb,notnull"`
	Validity      string                         `bun:"validity,notnull"`
	Normalized    *importdomain.NormalizedPlayer `bun:"normalized_fields,type:jsonb"`
	RejectCode    *string                        `bun:"reject_code"`
	RejectDetail  *string                        `bun:"reject_detail"`
	DuplicateKey  *string                        `bun:"duplicate_key"`
	DuplicateOf   *int                           `bun:"duplicate_of_row"`
	ShapeIssue    *string                        `bun:"shape_issue"`
	CreatedAt     time.Time                      `bun:"created_at,notnull,default:current_timestamp"`
}

// ExecutionResult is the stored per-row outcome of a batch execution.
type ExecutionResult struct {
	bun.BaseModel         `bun:"table:player_import_execution_results,alias:pier"`
	BatchID               uuid.UUID  `bun:"batch_id,pk,type:uuid"`
	RowIndex              int        `bun:"row_index,pk"`
	Outcome               string     `bun:"outcome,notnull"`
	PlayerID              *uuid.UUID `bun:"player_id,type:uuid"`
	MatchedCandidateCount int        `bun:"matched_candidate_count,notnull"`
	CreatedAt             time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func batchFromDomain(b *importdomain.Batch) *ImportBatch {
	m := &ImportBatch{
		ID:               b.ID,
		IdempotencyKey:   b.IdempotencyKey,
		FileName:         b.FileName,
		VendorLabel:      b.VendorLabel,
		ColumnMapping:    b.ColumnMapping.ToStrings(),
		Status:           string(b.Status),
		TotalRows:        b.TotalRows,
		AttemptCount:     b.AttemptCount,
		LastErrorMessage: b.LastErrorMessage,
		FileKey:          b.FileKey,
		FileSize:         b.FileSize,
		FileChecksum:     b.FileChecksum,
		ExecutionKey:     b.ExecutionKey,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
		UploadedAt:       b.UploadedAt,
		ParseStartedAt:   b.ParseStartedAt,
		StagedAt:         b.StagedAt,
		ExecutedAt:       b.ExecutedAt,
		FailedAt:         b.FailedAt,
	}
	if b.LastErrorCode != nil {
		code := string(*b.LastErrorCode)
		m.LastErrorCode = &code
	}
	return m
}

func (m *ImportBatch) toDomain() (*importdomain.Batch, error) {
	status, err := importdomain.ParseBatchStatus(m.Status)
	if err != nil {
		return nil, err
	}
	b := &importdomain.Batch{
		ID:               m.ID,
		IdempotencyKey:   m.IdempotencyKey,
		FileName:         m.FileName,
		VendorLabel:      m.VendorLabel,
		ColumnMapping:    importdomain.MappingFromStrings(m.ColumnMapping),
		Status:           status,
		TotalRows:        m.TotalRows,
		AttemptCount:     m.AttemptCount,
		LastErrorMessage: m.LastErrorMessage,
		FileKey:          m.FileKey,
		FileSize:         m.FileSize,
		FileChecksum:     m.FileChecksum,
		ExecutionKey:     m.ExecutionKey,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		UploadedAt:       m.UploadedAt,
		ParseStartedAt:   m.ParseStartedAt,
		StagedAt:         m.StagedAt,
		ExecutedAt:       m.ExecutedAt,
		FailedAt:         m.FailedAt,
	}
	if m.LastErrorCode != nil {
		code := importdomain.ErrorCode(*m.LastErrorCode)
		b.LastErrorCode = &code
	}
	return b, nil
}

func stagedRowFromDomain(r importdomain.StagedRow) StagedRow {
	m := StagedRow{
		BatchID:   r.BatchID,
		RowIndex:  r.RowIndex,
		RawFields: r.RawFields,
		Validity:  string(r.Validity()),
	}
	if m.RawFields == nil {
		m.RawFields = map[string]string{}
	}
	switch o := r.Outcome.(type) {
	case importdomain.ValidRow:
		player := o.Player
		m.Normalized = &player
	case importdomain.DuplicateRow:
		key, first := o.Key, o.FirstRowIndex
		m.DuplicateKey = &key
		m.DuplicateOf = &first
	}
	if reason := r.RejectReason(); reason != nil {
		code, detail := string(reason.Code), reason.Detail
		m.RejectCode = &code
		m.RejectDetail = &detail
	}
	if r.ShapeIssue != nil {
		detail := r.ShapeIssue.Detail
		m.ShapeIssue = &detail
	}
	return m
}

func (m StagedRow) toDomain() (importdomain.StagedRow, error) {
	row := importdomain.StagedRow{
		BatchID:   m.BatchID,
		RowIndex:  m.RowIndex,
		RawFields: m.RawFields,
	}
	validity, err := importdomain.ParseValidity(m.Validity)
	if err != nil {
		return row, err
	}
	if m.ShapeIssue != nil {
		row.ShapeIssue = &importdomain.RejectReason{Code: importdomain.RejectRowShape, Detail: *m.ShapeIssue}
	}
	switch validity {
	case importdomain.ValidityValid:
		var player importdomain.NormalizedPlayer
		if m.Normalized != nil {
			player = *m.Normalized
		}
		row.Outcome = importdomain.ValidRow{Player: player}
	case importdomain.ValidityDuplicate:
		dup := importdomain.DuplicateRow{}
		if m.DuplicateKey != nil {
			dup.Key = *m.DuplicateKey
		}
		if m.DuplicateOf != nil {
			dup.FirstRowIndex = *m.DuplicateOf
		}
		row.Outcome = dup
	default:
		reason := importdomain.RejectReason{}
		if m.RejectCode != nil {
			reason.Code = importdomain.RejectCode(*m.RejectCode)
		}
		if m.RejectDetail != nil {
			reason.Detail = *m.RejectDetail
		}
		row.Outcome = importdomain.InvalidRow{Reason: reason}
	}
	return row, nil
}

func executionResultFromDomain(batchID uuid.UUID, r importdomain.ExecutionResult) ExecutionResult {
	return ExecutionResult{
		BatchID:               batchID,
		RowIndex:              r.RowIndex,
		Outcome:               string(r.Outcome),
		PlayerID:              r.PlayerID,
		MatchedCandidateCount: r.MatchedCandidateCount,
	}
}

func (m ExecutionResult) toDomain() importdomain.ExecutionResult {
	return importdomain.ExecutionResult{
		RowIndex:              m.RowIndex,
		Outcome:               importdomain.ExecutionOutcome(m.Outcome),
		PlayerID:              m.PlayerID,
		MatchedCandidateCount: m.MatchedCandidateCount,
	}
}
