// Package events defines event types emitted on the bus as instances move
// through the lifecycle.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/bloomcare/careflow/pkg/models"
)

type EventType string

// Topic carries all lifecycle events.
const Topic = "careflow.lifecycle"

const EventKeyMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkflowInitializedEvent EventType = "workflow.initialized"
	PhaseAdvancedEvent       EventType = "workflow.phase.advanced"
	WorkflowCompletedEvent   EventType = "workflow.completed"
	WorkflowCancelledEvent   EventType = "workflow.cancelled"
	EscalationRaisedEvent    EventType = "workflow.escalation.raised"
	ActionRecordedEvent      EventType = "workflow.action.recorded"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	InstanceID string         `json:"instance_id"`
	SubjectID  string         `json:"subject_id,omitempty"`
	TemplateID string         `json:"template_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent builds the common envelope for an instance event.
func NewBaseEvent(eventType EventType, instance *models.WorkflowInstance) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		InstanceID: instance.ID,
		SubjectID:  instance.SubjectID,
		TemplateID: instance.TemplateID,
	}
}

type WorkflowInitialized struct {
	BaseEvent

	Phase int `json:"phase"`
}

func (e WorkflowInitialized) GetType() EventType {
	return WorkflowInitializedEvent
}

type PhaseAdvanced struct {
	BaseEvent

	FromPhase int    `json:"from_phase"`
	ToPhase   int    `json:"to_phase"`
	Manual    bool   `json:"manual"`
	Gate      string `json:"gate,omitempty"`
}

func (e PhaseAdvanced) GetType() EventType {
	return PhaseAdvancedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	FinalPhase  int       `json:"final_phase"`
	CompletedAt time.Time `json:"completed_at"`
}

func (e WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowCancelled struct {
	BaseEvent

	Phase int `json:"phase"`
}

func (e WorkflowCancelled) GetType() EventType {
	return WorkflowCancelledEvent
}

type EscalationRaised struct {
	BaseEvent

	Phase        int     `json:"phase"`
	TimeoutHours float64 `json:"timeout_hours"`
}

func (e EscalationRaised) GetType() EventType {
	return EscalationRaisedEvent
}

// ActionRecorded mirrors one audit-trail append for downstream consumers
// (reporting, CRM activity feeds). The durable trail stays authoritative.
type ActionRecorded struct {
	BaseEvent

	Record models.ActionExecutionRecord `json:"record"`
}

func NewActionRecorded(record models.ActionExecutionRecord) ActionRecorded {
	return ActionRecorded{
		BaseEvent: BaseEvent{
			ID:         uuid.New().String(),
			Type:       ActionRecordedEvent,
			Timestamp:  time.Now().UTC(),
			InstanceID: record.WorkflowID,
		},
		Record: record,
	}
}

func (e ActionRecorded) GetType() EventType {
	return ActionRecordedEvent
}
