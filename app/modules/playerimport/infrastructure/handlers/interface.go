package importhandlers

import (
	"context"
	"net/http"

	importqueue "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/queue"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Handlers serves the import API and consumes pipeline events.
type Handlers interface {
	HandleCreateBatch(w http.ResponseWriter, r *http.Request)
	HandleUploadFile(w http.ResponseWriter, r *http.Request)
	HandleGetBatch(w http.ResponseWriter, r *http.Request)
	HandleListRows(w http.ResponseWriter, r *http.Request)
	HandleExecuteBatch(w http.ResponseWriter, r *http.Request)
	HandleGetExecution(w http.ResponseWriter, r *http.Request)
	HandleGetExecutionChart(w http.ResponseWriter, r *http.Request)
	HandleListJobs(w http.ResponseWriter, r *http.Request)
	HandleValidateMapping(w http.ResponseWriter, r *http.Request)
	HandleListFields(w http.ResponseWriter, r *http.Request)

	// HandleBatchStaged executes a batch as soon as it is staged.
	HandleBatchStaged(msg *message.Message) error
}

// JobLister reads the queue's view of a batch.
type JobLister interface {
	IngestJobs(ctx context.Context, batchID uuid.UUID) ([]importqueue.JobInfo, error)
}
