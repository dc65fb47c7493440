package importhandlers

import (
	"errors"

	"github.com/Black-And-White-Club/casino-ops/app/events"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/Black-And-White-Club/casino-ops/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/attribute"
)

// HandleBatchStaged runs ExecuteBatch with the batch's derived key. Returning an error
// nacks the message so it is redelivered.
func (h *ImportHandlers) HandleBatchStaged(msg *message.Message) error {
	ctx := msg.Context()
	if id := msg.Metadata.Get(events.CorrelationIDKey); id != "" {
		ctx = attr.WithCorrelationID(ctx, id)
	}
	ctx, span := h.tracer.Start(ctx, "Event BatchStaged")
	defer span.End()

	payload, err := events.Decode[events.BatchStagedPayload](msg)
	if err != nil {
		// Redelivery cannot fix a malformed payload.
		h.logger.ErrorContext(ctx, "Dropping malformed staged event", attr.String("message_id", msg.UUID), attr.Error(err))
		return nil
	}
	span.SetAttributes(attribute.String("batch_id", payload.BatchID.String()))

	report, err := h.service.ExecuteBatch(ctx, payload.BatchID, importdomain.ExecutionKey(payload.BatchID))
	switch {
	case err == nil:
		h.logger.InfoContext(ctx, "Auto-executed staged batch",
			attr.ExtractCorrelationID(ctx),
			attr.BatchID(payload.BatchID),
			attr.Int("created", report.Created),
			attr.Int("linked", report.Linked),
			attr.Int("conflicts", report.Conflicts),
		)
		return nil
	case errors.Is(err, importdomain.ErrBatchNotFound), importdomain.IsCode(err, importdomain.CodeStateConflict):
		h.logger.WarnContext(ctx, "Staged batch no longer executable", attr.BatchID(payload.BatchID), attr.Error(err))
		return nil
	}
	span.RecordError(err)
	return err
}
