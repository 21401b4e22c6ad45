// Package createtask opens a task for a human operator in the CRM.
package createtask

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bloomcare/careflow/pkg/models"
	"github.com/bloomcare/careflow/pkg/protocol"
)

var ErrAssigneeRequired = errors.New("create_task requires an assignee")

type Factory struct {
	tasks protocol.TaskCreator
}

func NewFactory(tasks protocol.TaskCreator) *Factory {
	return &Factory{tasks: tasks}
}

func (*Factory) Type() models.ActionType {
	return models.ActionCreateTask
}

func (f *Factory) Create(params map[string]any) (protocol.ActionHandler, error) {
	assignee, _ := params[models.ParamAssignee].(string)
	if assignee == "" {
		return nil, ErrAssigneeRequired
	}

	priority, _ := params[models.ParamPriority].(string)
	if priority == "" {
		priority = "normal"
	}

	within, _ := params[models.ParamWithin].(string)

	return &Handler{
		tasks:    f.tasks,
		assignee: assignee,
		priority: priority,
		within:   within,
	}, nil
}

func (*Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			models.ParamAssignee: map[string]any{
				"type":        "string",
				"description": "Team or operator the task is assigned to",
			},
			models.ParamPriority: map[string]any{
				"type":    "string",
				"enum":    []any{"low", "normal", "high"},
				"default": "normal",
			},
			models.ParamWithin: map[string]any{
				"type":        "string",
				"description": "Due window, e.g. 24h or 3d",
			},
			models.ParamDelay: map[string]any{
				"type": "number",
			},
		},
		"required": []any{models.ParamAssignee},
	}
}

type Handler struct {
	tasks    protocol.TaskCreator
	assignee string
	priority string
	within   string
}

func (h *Handler) Execute(ctx context.Context, hctx *protocol.HandlerContext, logger *slog.Logger) (any, error) {
	result, err := h.tasks.CreateTask(ctx, h.assignee, h.priority, h.within)
	if err != nil {
		return nil, err
	}

	logger.Info("Task created", "assignee", h.assignee, "priority", h.priority)

	return map[string]any{
		"assignee": h.assignee,
		"priority": h.priority,
		"within":   h.within,
		"task":     result,
	}, nil
}
