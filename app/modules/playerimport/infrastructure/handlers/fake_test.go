package importhandlers

import (
	"context"
	"sync"

	importservice "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/application"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importqueue "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/queue"
	"github.com/google/uuid"
)

// FakeService records calls and delegates to the Func fields when set.
type FakeService struct {
	mu    sync.Mutex
	trace []string

	CreateBatchFunc        func(ctx context.Context, req importservice.CreateBatchRequest) (*importdomain.Batch, error)
	UploadFileFunc         func(ctx context.Context, batchID uuid.UUID, data []byte) (*importdomain.Batch, error)
	GetBatchFunc           func(ctx context.Context, batchID uuid.UUID) (*importservice.BatchView, error)
	ListStagedRowsFunc     func(ctx context.Context, batchID uuid.UUID, validity *importdomain.Validity) ([]importdomain.StagedRow, error)
	IngestBatchFunc        func(ctx context.Context, batchID uuid.UUID) (*importservice.IngestOutcome, error)
	ExecuteBatchFunc       func(ctx context.Context, batchID uuid.UUID, key string) (*importdomain.ExecutionReport, error)
	GetExecutionReportFunc func(ctx context.Context, batchID uuid.UUID) (*importdomain.ExecutionReport, error)
	ReclaimFunc            func(ctx context.Context) (*importservice.ReclaimSummary, error)
}

func (f *FakeService) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

func (f *FakeService) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

func (f *FakeService) CreateBatch(ctx context.Context, req importservice.CreateBatchRequest) (*importdomain.Batch, error) {
	f.record("CreateBatch")
	if f.CreateBatchFunc != nil {
		return f.CreateBatchFunc(ctx, req)
	}
	return &importdomain.Batch{ID: uuid.New(), Status: importdomain.StatusCreated}, nil
}

func (f *FakeService) UploadFile(ctx context.Context, batchID uuid.UUID, data []byte) (*importdomain.Batch, error) {
	f.record("UploadFile")
	if f.UploadFileFunc != nil {
		return f.UploadFileFunc(ctx, batchID, data)
	}
	return &importdomain.Batch{ID: batchID, Status: importdomain.StatusUploaded}, nil
}

func (f *FakeService) GetBatch(ctx context.Context, batchID uuid.UUID) (*importservice.BatchView, error) {
	f.record("GetBatch")
	if f.GetBatchFunc != nil {
		return f.GetBatchFunc(ctx, batchID)
	}
	return &importservice.BatchView{Batch: &importdomain.Batch{ID: batchID}}, nil
}

func (f *FakeService) ListStagedRows(ctx context.Context, batchID uuid.UUID, validity *importdomain.Validity) ([]importdomain.StagedRow, error) {
	f.record("ListStagedRows")
	if f.ListStagedRowsFunc != nil {
		return f.ListStagedRowsFunc(ctx, batchID, validity)
	}
	return []importdomain.StagedRow{}, nil
}

func (f *FakeService) IngestBatch(ctx context.Context, batchID uuid.UUID) (*importservice.IngestOutcome, error) {
	f.record("IngestBatch")
	if f.IngestBatchFunc != nil {
		return f.IngestBatchFunc(ctx, batchID)
	}
	return &importservice.IngestOutcome{}, nil
}

func (f *FakeService) ExecuteBatch(ctx context.Context, batchID uuid.UUID, key string) (*importdomain.ExecutionReport, error) {
	f.record("ExecuteBatch")
	if f.ExecuteBatchFunc != nil {
		return f.ExecuteBatchFunc(ctx, batchID, key)
	}
	return importdomain.NewExecutionReport(batchID, nil, nil, nil), nil
}

func (f *FakeService) GetExecutionReport(ctx context.Context, batchID uuid.UUID) (*importdomain.ExecutionReport, error) {
	f.record("GetExecutionReport")
	if f.GetExecutionReportFunc != nil {
		return f.GetExecutionReportFunc(ctx, batchID)
	}
	return importdomain.NewExecutionReport(batchID, nil, nil, nil), nil
}

func (f *FakeService) ReclaimStaleBatches(ctx context.Context) (*importservice.ReclaimSummary, error) {
	f.record("ReclaimStaleBatches")
	if f.ReclaimFunc != nil {
		return f.ReclaimFunc(ctx)
	}
	return &importservice.ReclaimSummary{}, nil
}

var _ importservice.Service = (*FakeService)(nil)

type FakeJobLister struct {
	IngestJobsFunc func(ctx context.Context, batchID uuid.UUID) ([]importqueue.JobInfo, error)
}

func (f *FakeJobLister) IngestJobs(ctx context.Context, batchID uuid.UUID) ([]importqueue.JobInfo, error) {
	if f.IngestJobsFunc != nil {
		return f.IngestJobsFunc(ctx, batchID)
	}
	return []importqueue.JobInfo{}, nil
}
