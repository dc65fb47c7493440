package importdomain

import (
	"time"

	"github.com/google/uuid"
)

// Batch is one import attempt and the single point of mutual exclusion for its rows.
type Batch struct {
	ID               uuid.UUID     `json:"id"`
	IdempotencyKey   string        `json:"idempotency_key"`
	FileName         string        `json:"file_name"`
	VendorLabel      *string       `json:"vendor_label,omitempty"`
	ColumnMapping    ColumnMapping `json:"column_mapping"`
	Status           BatchStatus   `json:"status"`
	TotalRows        *int          `json:"total_rows,omitempty"`
	AttemptCount     int           `json:"attempt_count"`
	LastErrorCode    *ErrorCode    `json:"last_error_code,omitempty"`
	LastErrorMessage *string       `json:"last_error_message,omitempty"`
	FileKey          *string       `json:"file_key,omitempty"`
	FileSize         *int64        `json:"file_size,omitempty"`
	FileChecksum     *string       `json:"file_checksum,omitempty"`
	ExecutionKey     *string       `json:"execution_key,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	UploadedAt       *time.Time    `json:"uploaded_at,omitempty"`
	ParseStartedAt   *time.Time    `json:"parse_started_at,omitempty"`
	StagedAt         *time.Time    `json:"staged_at,omitempty"`
	ExecutedAt       *time.Time    `json:"executed_at,omitempty"`
	FailedAt         *time.Time    `json:"failed_at,omitempty"`
}

// SamePayload reports whether a repeated create request matches this batch.
func (b *Batch) SamePayload(fileName string, vendorLabel *string, mapping ColumnMapping) bool {
	if b.FileName != fileName {
		return false
	}
	if labelOf(b.VendorLabel) != labelOf(vendorLabel) {
		return false
	}
	return b.ColumnMapping.Equal(mapping)
}

func labelOf(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// StatusUpdate carries the column changes that accompany a status transition.
type StatusUpdate struct {
	TotalRows         *int
	IncrementAttempts bool
	ErrorCode         *ErrorCode
	ErrorMessage      *string
	ClearError        bool
	FileKey           *string
	FileSize          *int64
	FileChecksum      *string
	ExecutionKey      *string
}

// Failure builds the update for a transition into failed.
func Failure(code ErrorCode, message string) StatusUpdate {
	return StatusUpdate{ErrorCode: &code, ErrorMessage: &message}
}
