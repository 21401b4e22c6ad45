// Package updaterecord creates or refreshes a record in the external CRM
// store.
package updaterecord

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/protocol"
)

var ErrKindRequired = errors.New("update_record requires a record kind")

type Factory struct {
	records protocol.RecordStore
}

func NewFactory(records protocol.RecordStore) *Factory {
	return &Factory{records: records}
}

func (*Factory) Type() models.ActionType {
	return models.ActionUpdateRecord
}

func (f *Factory) Create(params map[string]any) (protocol.ActionHandler, error) {
	kind, _ := params["kind"].(string)
	if kind == "" {
		return nil, ErrKindRequired
	}

	fields, _ := params["fields"].(map[string]any)

	return &Handler{
		records: f.records,
		kind:    kind,
		fields:  fields,
	}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"kind": map[string]any{
				"type":        "string",
				"description": "Record kind in the CRM store, e.g. lead or client",
			},
			"fields": map[string]any{
				"type":        "object",
				"description": "Extra fields merged into the record",
			},
			models.ParamDelay: map[string]any{
				"type": "number",
			},
		},
		"required": []any{"kind"},
	}
}

type Handler struct {
	records protocol.RecordStore
	kind    string
	fields  map[string]any
}

func (h *Handler) Execute(ctx context.Context, hctx *protocol.HandlerContext, logger *slog.Logger) (any, error) {
	fields := map[string]any{
		"subject_id":      hctx.SubjectID,
		"lifecycle_phase": hctx.PhaseNumber,
	}

	for k, v := range h.fields {
		fields[k] = v
	}

	// Estimates written earlier in the lifecycle travel with the record.
	for _, key := range []string{"estimated_value", "target_start_date"} {
		if v, ok := hctx.PhaseData[key]; ok {
			fields[key] = v
		}
	}

	result, err := h.records.UpsertRecord(ctx, h.kind, hctx.SubjectID, fields)
	if err != nil {
		return nil, err
	}

	logger.Info("Record upserted", "kind", h.kind)

	hctx.PutPhaseData("record_kind", h.kind)

	return map[string]any{
		"kind":   h.kind,
		"record": result,
	}, nil
}
