package importqueue

import (
	"github.com/google/uuid"
)

// QueueName is the dedicated River queue for import jobs.
const QueueName = "player_import"

// IngestBatchArgs asks a worker to parse and stage an uploaded batch.
type IngestBatchArgs struct {
	BatchID uuid.UUID `json:"batch_id"`
}

// Kind returns the job type identifier for River
func (IngestBatchArgs) Kind() string { return "player_import.ingest" }

// SweepStaleBatchesArgs triggers the periodic release of batches abandoned by their worker.
type SweepStaleBatchesArgs struct{}

// Kind returns the job type identifier for River
func (SweepStaleBatchesArgs) Kind() string { return "player_import.sweep_stale" }

// JobInfo describes an ingest job of a batch (for debugging/monitoring)
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	CreatedAt   string `json:"created_at"`
}
