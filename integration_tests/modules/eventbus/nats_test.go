//go:build integration

package eventbusintegrationtests

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Black-And-White-Club/casino-ops/app/eventbus"
	"github.com/Black-And-White-Club/casino-ops/app/events"
	"github.com/Black-And-White-Club/casino-ops/integration_tests/containers"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATSEventBus_DeliversStagedEvent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	require.NoError(t, err)
	defer func() { _ = natsContainer.Terminate(context.Background()) }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus, err := eventbus.NewNATSEventBus(ctx, natsURL, logger)
	require.NoError(t, err)
	defer bus.Close()

	messages, err := bus.Subscribe(ctx, events.BatchStagedV1)
	require.NoError(t, err)

	batchID := uuid.New()
	msg, err := events.NewMessage(attr.WithCorrelationID(ctx, "corr-1"), events.BatchStagedV1, events.BatchStagedPayload{
		BatchID:   batchID,
		ValidRows: 3,
	})
	require.NoError(t, err)
	require.NoError(t, bus.Publish(events.BatchStagedV1, msg))

	select {
	case got := <-messages:
		payload, err := events.Decode[events.BatchStagedPayload](got)
		require.NoError(t, err)
		assert.Equal(t, batchID, payload.BatchID)
		assert.Equal(t, "corr-1", got.Metadata.Get(events.CorrelationIDKey))
		got.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for staged event")
	}
}
