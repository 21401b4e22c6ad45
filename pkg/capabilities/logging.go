// Package capabilities provides development implementations of the
// outbound collaborator interfaces. Production deployments wire real
// messaging, CRM and calendar clients instead.
package capabilities

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bloomcare/careflow/pkg/protocol"
)

// LogSet implements every capability by logging the call and returning a
// synthetic result payload.
type LogSet struct {
	logger *slog.Logger
}

func NewLogSet(logger *slog.Logger) *LogSet {
	return &LogSet{logger: logger}
}

// Set returns the capability bundle backed by this LogSet.
func (s *LogSet) Set() protocol.Capabilities {
	return protocol.Capabilities{
		Messenger: s,
		Tasks:     s,
		Records:   s,
		Scheduler: s,
	}
}

func (s *LogSet) SendMessage(_ context.Context, channel, template, recipient string, vars map[string]any) (any, error) {
	s.logger.Info("send message", "channel", channel, "template", template, "recipient", recipient, "vars", vars)

	return map[string]any{"message_id": uuid.New().String(), "sent_at": time.Now().UTC()}, nil
}

func (s *LogSet) CreateTask(_ context.Context, assignee, priority, dueWithin string) (any, error) {
	s.logger.Info("create task", "assignee", assignee, "priority", priority, "due_within", dueWithin)

	return map[string]any{"task_id": uuid.New().String()}, nil
}

func (s *LogSet) UpsertRecord(_ context.Context, kind, id string, fields map[string]any) (any, error) {
	s.logger.Info("upsert record", "kind", kind, "record_id", id, "fields", fields)

	return map[string]any{"record_id": id, "kind": kind}, nil
}

func (s *LogSet) ScheduleEvent(_ context.Context, kind, within string) (any, error) {
	s.logger.Info("schedule event", "kind", kind, "within", within)

	return map[string]any{"event_id": uuid.New().String(), "within": within}, nil
}
