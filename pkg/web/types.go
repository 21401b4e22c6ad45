package web

import "github.com/bloomcare/careflow/pkg/models"

// InitializeWorkflowRequest starts a lifecycle for a subject. Invoked by
// the upstream intake process when a new subject enters the lifecycle.
type InitializeWorkflowRequest struct {
	SubjectID  string         `json:"subject_id"  validate:"required"`
	TemplateID string         `json:"template_id" validate:"required"`
	Metadata   map[string]any `json:"metadata"`
}

// AdvanceWorkflowRequest confirms a gated event (e.g. "call completed",
// "contract signed") for the instance's current phase.
type AdvanceWorkflowRequest struct {
	ActionData map[string]any `json:"action_data" validate:"required"`
}

// WorkflowResponse is the instance representation returned by the API.
type WorkflowResponse struct {
	Instance *models.WorkflowInstance `json:"instance"`
}
