package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Player import lifecycle topics.
const (
	BatchStagedV1    = "player_import.batch.staged.v1"
	BatchCompletedV1 = "player_import.batch.completed.v1"
	BatchFailedV1    = "player_import.batch.failed.v1"
)

// Topics lists every topic the pipeline publishes.
var Topics = []string{BatchStagedV1, BatchCompletedV1, BatchFailedV1}

// CorrelationIDKey is the metadata key carrying the request correlation id.
const CorrelationIDKey = "correlation_id"

// BatchStagedPayload announces a batch ready for execution.
type BatchStagedPayload struct {
	BatchID       uuid.UUID `json:"batch_id"`
	TotalRows     int       `json:"total_rows"`
	ValidRows     int       `json:"valid_rows"`
	InvalidRows   int       `json:"invalid_rows"`
	DuplicateRows int       `json:"duplicate_rows"`
	StagedAt      time.Time `json:"staged_at"`
}

// BatchCompletedPayload announces a finished execution.
type BatchCompletedPayload struct {
	BatchID      uuid.UUID `json:"batch_id"`
	ExecutionKey string    `json:"execution_key"`
	Created      int       `json:"created"`
	Linked       int       `json:"linked"`
	Conflicts    int       `json:"conflicts"`
	Skipped      int       `json:"skipped"`
	CompletedAt  time.Time `json:"completed_at"`
}

// BatchFailedPayload announces a batch that reached failed.
type BatchFailedPayload struct {
	BatchID      uuid.UUID `json:"batch_id"`
	ErrorCode    string    `json:"error_code"`
	Message      string    `json:"message"`
	AttemptCount int       `json:"attempt_count"`
	FailedAt     time.Time `json:"failed_at"`
}

// NewMessage encodes payload as JSON and carries the correlation id from ctx.
func NewMessage(ctx context.Context, topic string, payload any) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set("topic", topic)
	if id := attr.CorrelationID(ctx); id != "" {
		msg.Metadata.Set(CorrelationIDKey, id)
	}
	msg.SetContext(ctx)
	return msg, nil
}

// Decode unmarshals a message payload into T.
func Decode[T any](msg *message.Message) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", msg.UUID, err)
	}
	return out, nil
}
