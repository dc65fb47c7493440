package importrouter

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Black-And-White-Club/casino-ops/app/eventbus"
	"github.com/Black-And-White-Club/casino-ops/app/events"
	importservice "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/application"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	importhandlers "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/infrastructure/handlers"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

// executeOnly is a Service whose only live method is ExecuteBatch.
type executeOnly struct {
	importservice.Service
	executed chan uuid.UUID
}

func (e *executeOnly) ExecuteBatch(ctx context.Context, batchID uuid.UUID, key string) (*importdomain.ExecutionReport, error) {
	e.executed <- batchID
	return importdomain.NewExecutionReport(batchID, nil, nil, nil), nil
}

func TestImportRouter_AutoExecute(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewGoChannelEventBus(logger)
	defer bus.Close()

	svc := &executeOnly{executed: make(chan uuid.UUID, 1)}
	handlers := importhandlers.NewImportHandlers(svc, nil, importhandlers.Config{}, logger, noop.NewTracerProvider().Tracer("test"))

	r, err := NewImportRouter(logger, bus, prometheus.NewRegistry())
	require.NoError(t, err)
	r.Configure(context.Background(), handlers, true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()
	defer r.Close()

	select {
	case <-r.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}

	batchID := uuid.New()
	msg, err := events.NewMessage(context.Background(), events.BatchStagedV1, events.BatchStagedPayload{BatchID: batchID})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(events.BatchStagedV1, msg))

	select {
	case got := <-svc.executed:
		assert.Equal(t, batchID, got)
	case <-time.After(5 * time.Second):
		t.Fatal("staged batch was not executed")
	}
}

func TestImportRouter_AutoExecuteDisabled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := eventbus.NewGoChannelEventBus(logger)
	defer bus.Close()

	r, err := NewImportRouter(logger, bus, nil)
	require.NoError(t, err)
	r.Configure(context.Background(), importhandlers.NewImportHandlers(&executeOnly{}, nil, importhandlers.Config{}, logger, noop.NewTracerProvider().Tracer("test")), false)

	assert.Empty(t, r.Router.Handlers())
}
