package audit

import (
	"context"
	"log/slog"

	"github.com/bloomcare/careflow/pkg/eventbus"
	"github.com/bloomcare/careflow/pkg/events"
	"github.com/bloomcare/careflow/pkg/models"
)

// BusRecorder decorates a durable recorder and mirrors every appended
// record onto the event bus. The durable append is authoritative: publish
// failures are logged and never fail the dispatch.
type BusRecorder struct {
	delegate  Recorder
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

func NewBusRecorder(delegate Recorder, publisher eventbus.EventPublisher, logger *slog.Logger) *BusRecorder {
	return &BusRecorder{
		delegate:  delegate,
		publisher: publisher,
		logger:    logger.With("module", "audit.bus"),
	}
}

func (r *BusRecorder) Record(ctx context.Context, entry models.ActionExecutionRecord) error {
	if err := r.delegate.Record(ctx, entry); err != nil {
		return err
	}

	if r.publisher == nil {
		return nil
	}

	if err := r.publisher.Publish(ctx, entry.WorkflowID, events.NewActionRecorded(entry)); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish audit record event",
			"record_id", entry.ID, "workflow_id", entry.WorkflowID, "error", err)
	}

	return nil
}
