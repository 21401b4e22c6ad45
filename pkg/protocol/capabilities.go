package protocol

import "context"

// Capability interfaces implemented by the surrounding application. Each
// call returns an opaque result payload or a handler-local error.

// Messenger delivers a templated message over a channel (email, sms).
type Messenger interface {
	SendMessage(ctx context.Context, channel, template, recipient string, vars map[string]any) (any, error)
}

// TaskCreator opens a task for a human operator in the CRM.
type TaskCreator interface {
	CreateTask(ctx context.Context, assignee, priority, dueWithin string) (any, error)
}

// RecordStore creates or updates a record in the external CRM store.
type RecordStore interface {
	UpsertRecord(ctx context.Context, kind, id string, fields map[string]any) (any, error)
}

// EventScheduler books a calendar event (visit, follow-up) within a window.
type EventScheduler interface {
	ScheduleEvent(ctx context.Context, kind, within string) (any, error)
}

// Capabilities bundles the collaborator interfaces the built-in handlers
// need. Constructed at startup and injected into the handler factories.
type Capabilities struct {
	Messenger Messenger
	Tasks     TaskCreator
	Records   RecordStore
	Scheduler EventScheduler
}
