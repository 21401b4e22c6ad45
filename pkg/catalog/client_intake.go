package catalog

import "github.com/bloomcare/careflow/pkg/models"

// Gate tokens confirmed by humans or upstream systems through the manual
// advance endpoint.
const (
	GateConsultationCompleted = "consultation_completed"
	GateAgreementSigned       = "agreement_signed"
)

// ClientIntakeTemplateID identifies the built-in intake lifecycle.
const ClientIntakeTemplateID = "client-intake"

// ClientIntake returns the standard lifecycle a prospective client moves
// through, from first inquiry to active service.
func ClientIntake() *models.WorkflowTemplate {
	return &models.WorkflowTemplate{
		ID:          ClientIntakeTemplateID,
		Name:        "Client Intake",
		Description: "Standard intake lifecycle from inquiry to active service",
		Phases: []models.PhaseTemplate{
			{
				ID:          1,
				Name:        "New Inquiry",
				Description: "Acknowledge the inquiry and size the lead",
				Actions: []models.ActionSpec{
					{
						Type: models.ActionSendMessage,
						Params: map[string]any{
							models.ParamTemplate:   "inquiry-ack",
							models.ParamRecipients: []any{"subject"},
						},
					},
					{
						Type: models.ActionEstimateLead,
					},
					{
						Type: models.ActionUpdateRecord,
						Params: map[string]any{
							"kind": "lead",
						},
					},
				},
				AutoAdvance: true,
			},
			{
				ID:          2,
				Name:        "Welcome Outreach",
				Description: "Send the welcome packet and queue a personal follow-up",
				Actions: []models.ActionSpec{
					{
						Type: models.ActionSendMessage,
						Params: map[string]any{
							models.ParamTemplate:   "welcome-packet",
							models.ParamRecipients: []any{"subject"},
						},
					},
					{
						Type: models.ActionCreateTask,
						Params: map[string]any{
							models.ParamAssignee: "intake-team",
							models.ParamPriority: "high",
							models.ParamWithin:   "24h",
						},
					},
				},
				AutoAdvance:  true,
				TimeoutHours: 48,
			},
			{
				ID:          3,
				Name:        "Consultation",
				Description: "Book the consultation; waits for confirmation the call happened",
				Actions: []models.ActionSpec{
					{
						Type: models.ActionScheduleVisit,
						Params: map[string]any{
							"kind":             "consultation",
							models.ParamWithin: "7d",
						},
					},
					{
						Type: models.ActionCreateTask,
						Params: map[string]any{
							models.ParamAssignee: "care-coordinator",
							models.ParamPriority: "normal",
							models.ParamWithin:   "72h",
						},
					},
				},
				RequiresAction: GateConsultationCompleted,
				TimeoutHours:   72,
			},
			{
				ID:          4,
				Name:        "Consultation Follow-up",
				Description: "Recap the consultation and refresh the lead record",
				Actions: []models.ActionSpec{
					{
						Type: models.ActionSendMessage,
						Params: map[string]any{
							models.ParamTemplate:   "consultation-recap",
							models.ParamRecipients: []any{"subject"},
						},
					},
					{
						Type: models.ActionUpdateRecord,
						Params: map[string]any{
							"kind": "lead",
						},
					},
				},
				AutoAdvance: true,
			},
			{
				ID:          5,
				Name:        "Agreement",
				Description: "Send the service agreement; waits for signature",
				Actions: []models.ActionSpec{
					{
						Type: models.ActionSendMessage,
						Params: map[string]any{
							models.ParamTemplate:   "service-agreement",
							models.ParamRecipients: []any{"subject"},
						},
					},
					{
						Type: models.ActionCreateTask,
						Params: map[string]any{
							models.ParamAssignee: "intake-team",
							models.ParamPriority: "high",
							models.ParamWithin:   "48h",
						},
					},
				},
				RequiresAction: GateAgreementSigned,
				TimeoutHours:   96,
			},
			{
				ID:          6,
				Name:        "Onboarding",
				Description: "Convert the lead to an active client and book the first visit",
				Actions: []models.ActionSpec{
					{
						Type: models.ActionUpdateRecord,
						Params: map[string]any{
							"kind": "client",
						},
					},
					{
						Type: models.ActionSendMessage,
						Params: map[string]any{
							models.ParamTemplate:   "onboarding-welcome",
							models.ParamRecipients: []any{"subject"},
						},
					},
					{
						Type: models.ActionScheduleVisit,
						Params: map[string]any{
							"kind":                  "first-visit",
							models.ParamWithin:      "14d",
							models.ParamHoursBefore: 24,
						},
					},
				},
				AutoAdvance: true,
			},
			{
				ID:          7,
				Name:        "Active Service",
				Description: "Client receives ongoing care; schedule the first check-in",
				Actions: []models.ActionSpec{
					{
						Type: models.ActionUpdateRecord,
						Params: map[string]any{
							"kind": "client",
						},
					},
					{
						Type: models.ActionCreateTask,
						Params: map[string]any{
							models.ParamAssignee: "care-coordinator",
							models.ParamPriority: "normal",
							models.ParamWithin:   "7d",
						},
					},
				},
				FinalPhase: true,
			},
		},
	}
}
