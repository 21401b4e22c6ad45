// Package notify consumes lifecycle events from the bus and alerts the
// care team about escalations and completed intakes.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bloomcare/careflow/pkg/eventbus"
	"github.com/bloomcare/careflow/pkg/events"
	"github.com/bloomcare/careflow/pkg/protocol"
)

// EscalationRecipient receives escalation alert messages.
const EscalationRecipient = "care-coordinator"

// EscalationNotifier turns escalation events into messages for the care
// team and records workflow completions. It runs in the escalator process
// alongside the timeout sweep.
type EscalationNotifier struct {
	messenger protocol.Messenger
	logger    *slog.Logger
}

func NewEscalationNotifier(messenger protocol.Messenger, logger *slog.Logger) *EscalationNotifier {
	return &EscalationNotifier{
		messenger: messenger,
		logger:    logger.With("module", "notify"),
	}
}

// Register attaches the notifier's handlers to the bus. The caller still
// owns starting consumption via Subscribe.
func (n *EscalationNotifier) Register(bus eventbus.EventSubscriber) error {
	if err := bus.Handle(events.EscalationRaisedEvent, n.handleEscalationRaised); err != nil {
		return fmt.Errorf("failed to register escalation handler: %w", err)
	}

	if err := bus.Handle(events.WorkflowCompletedEvent, n.handleWorkflowCompleted); err != nil {
		return fmt.Errorf("failed to register completion handler: %w", err)
	}

	return nil
}

func (n *EscalationNotifier) handleEscalationRaised(ctx context.Context, event any) error {
	raised, ok := event.(*events.EscalationRaised)
	if !ok {
		return fmt.Errorf("unexpected escalation payload %T", event)
	}

	_, err := n.messenger.SendMessage(ctx, "email", "escalation-alert", EscalationRecipient, map[string]any{
		"instance_id":   raised.InstanceID,
		"subject_id":    raised.SubjectID,
		"phase":         raised.Phase,
		"timeout_hours": raised.TimeoutHours,
	})
	if err != nil {
		return fmt.Errorf("failed to send escalation alert for %s: %w", raised.InstanceID, err)
	}

	n.logger.InfoContext(ctx, "Escalation alert sent",
		"instance_id", raised.InstanceID, "phase", raised.Phase)

	return nil
}

func (n *EscalationNotifier) handleWorkflowCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.WorkflowCompleted)
	if !ok {
		return fmt.Errorf("unexpected completion payload %T", event)
	}

	n.logger.InfoContext(ctx, "Workflow completed",
		"instance_id", completed.InstanceID,
		"subject_id", completed.SubjectID,
		"final_phase", completed.FinalPhase)

	return nil
}
