//go:build integration

package playerimportintegrationtests

import (
	"context"
	"sync"
	"testing"

	playerdb "github.com/Black-And-White-Club/casino-ops/app/modules/player/infrastructure/repositories"
	importservice "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/application"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importmetrics "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/metrics"
	"github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/parsers"
	importdb "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/repositories"
	importstorage "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// recordingEnqueuer captures enqueued batches instead of scheduling jobs.
type recordingEnqueuer struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (e *recordingEnqueuer) EnqueueIngest(_ context.Context, batchID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ids = append(e.ids, batchID)
	return nil
}

func (e *recordingEnqueuer) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ids)
}

var vendorMapping = importdomain.ColumnMapping{
	importdomain.FieldEmail:    "Email",
	importdomain.FieldPhone:    "Phone",
	importdomain.FieldFullName: "Name",
}

func newService(t *testing.T, enqueuer importservice.IngestEnqueuer, cfg importservice.Config) *importservice.ImportService {
	t.Helper()
	return importservice.NewImportService(
		importdb.NewRepository(testEnv.DB),
		playerdb.NewRepository(testEnv.DB),
		importstorage.NewPostgresStore(testEnv.DB),
		parsers.NewFactory(),
		enqueuer,
		nil,
		testEnv.Logger,
		importmetrics.NoopMetrics{},
		testEnv.Tracer,
		testEnv.DB,
		cfg,
	)
}

// uploadBatch creates a batch and uploads content, returning the uploaded batch.
func uploadBatch(t *testing.T, svc importservice.Service, content []byte) *importdomain.Batch {
	t.Helper()
	ctx := context.Background()
	batch, err := svc.CreateBatch(ctx, importservice.CreateBatchRequest{
		IdempotencyKey: uuid.NewString(),
		FileName:       "vendor.csv",
		ColumnMapping:  vendorMapping,
	})
	require.NoError(t, err)

	uploaded, err := svc.UploadFile(ctx, batch.ID, content)
	require.NoError(t, err)
	require.Equal(t, importdomain.StatusUploaded, uploaded.Status)
	return uploaded
}
