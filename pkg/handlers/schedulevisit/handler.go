// Package schedulevisit books a calendar event through the scheduling
// capability.
package schedulevisit

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/protocol"
)

var ErrWithinRequired = errors.New("schedule_visit requires a booking window")

type Factory struct {
	scheduler protocol.EventScheduler
}

func NewFactory(scheduler protocol.EventScheduler) *Factory {
	return &Factory{scheduler: scheduler}
}

func (*Factory) Type() models.ActionType {
	return models.ActionScheduleVisit
}

func (f *Factory) Create(params map[string]any) (protocol.ActionHandler, error) {
	within, _ := params[models.ParamWithin].(string)
	if within == "" {
		return nil, ErrWithinRequired
	}

	kind, _ := params["kind"].(string)
	if kind == "" {
		kind = "visit"
	}

	hoursBefore, _ := params[models.ParamHoursBefore].(float64)

	return &Handler{
		scheduler:   f.scheduler,
		kind:        kind,
		within:      within,
		hoursBefore: hoursBefore,
	}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"kind": map[string]any{
				"type":        "string",
				"description": "Event kind, e.g. consultation or first-visit",
			},
			models.ParamWithin: map[string]any{
				"type":        "string",
				"description": "Booking window, e.g. 7d",
			},
			models.ParamHoursBefore: map[string]any{
				"type":        "number",
				"description": "Send a reminder this many hours before the event",
			},
			models.ParamDelay: map[string]any{
				"type": "number",
			},
		},
		"required": []any{models.ParamWithin},
	}
}

type Handler struct {
	scheduler   protocol.EventScheduler
	kind        string
	within      string
	hoursBefore float64
}

func (h *Handler) Execute(ctx context.Context, hctx *protocol.HandlerContext, logger *slog.Logger) (any, error) {
	result, err := h.scheduler.ScheduleEvent(ctx, h.kind, h.within)
	if err != nil {
		return nil, err
	}

	logger.Info("Visit scheduled", "kind", h.kind, "within", h.within)

	response := map[string]any{
		"kind":   h.kind,
		"within": h.within,
		"event":  result,
	}

	if h.hoursBefore > 0 {
		response["reminder_hours_before"] = h.hoursBefore
	}

	return response, nil
}
