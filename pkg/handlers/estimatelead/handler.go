// Package estimatelead wraps the estimation library as an action handler:
// it reads the intake context from instance metadata, computes the value
// and target-date estimates and stages them into phase data.
package estimatelead

import (
	"context"
	"log/slog"
	"time"

	"github.com/bloomcare/careflow/pkg/estimate"
	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/protocol"
)

// Metadata keys written by the intake form handler.
const (
	MetaServiceCategory = "service_category"
	MetaUrgency         = "urgency"
	MetaDueDate         = "due_date" // RFC 3339 date
)

type Factory struct {
	now func() time.Time
}

func NewFactory() *Factory {
	return &Factory{now: time.Now}
}

// WithClock injects the clock. For tests.
func (f *Factory) WithClock(now func() time.Time) *Factory {
	f.now = now

	return f
}

func (*Factory) Type() models.ActionType {
	return models.ActionEstimateLead
}

func (f *Factory) Create(_ map[string]any) (protocol.ActionHandler, error) {
	return &Handler{now: f.now}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			models.ParamDelay: map[string]any{
				"type": "number",
			},
		},
	}
}

type Handler struct {
	now func() time.Time
}

func (h *Handler) Execute(_ context.Context, hctx *protocol.HandlerContext, logger *slog.Logger) (any, error) {
	category, _ := hctx.Metadata[MetaServiceCategory].(string)
	urgency, _ := hctx.Metadata[MetaUrgency].(string)

	var referenceDate *time.Time

	if raw, ok := hctx.Metadata[MetaDueDate].(string); ok && raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err == nil {
			referenceDate = &parsed
		} else {
			logger.Warn("Ignoring unparseable due date", "due_date", raw, "error", err)
		}
	}

	value := estimate.Value(category, urgency)
	targetDate := estimate.TargetDate(h.now(), referenceDate, urgency)

	hctx.PutPhaseData("estimated_value", value)
	hctx.PutPhaseData("target_start_date", targetDate.Format(time.DateOnly))

	logger.Info("Lead estimated", "category", category, "urgency", urgency, "value", value)

	return map[string]any{
		"estimated_value":   value,
		"target_start_date": targetDate.Format(time.DateOnly),
	}, nil
}
