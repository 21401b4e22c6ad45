package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/bloomcare/careflow/pkg/events"
)

// WatermillEventBus adapts any watermill publisher/subscriber pair (Kafka
// in production, GoChannel in tests) to the EventBus interface.
type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventKeyMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(events.Topic, msg)
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.Topic, err)
	}

	go func() {
		for msg := range messages {
			eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

			handler, exists := eb.subscriptions[eventType]
			if !exists {
				msg.Ack()

				continue
			}

			event := newEventOfType(eventType)
			if event == nil {
				msg.Ack()

				continue
			}

			if err := json.Unmarshal(msg.Payload, event); err != nil {
				msg.Nack()

				continue
			}

			if err := handler(ctx, event); err != nil {
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}()

	return nil
}

func newEventOfType(eventType events.EventType) any {
	switch eventType {
	case events.WorkflowInitializedEvent:
		return &events.WorkflowInitialized{}
	case events.PhaseAdvancedEvent:
		return &events.PhaseAdvanced{}
	case events.WorkflowCompletedEvent:
		return &events.WorkflowCompleted{}
	case events.WorkflowCancelledEvent:
		return &events.WorkflowCancelled{}
	case events.EscalationRaisedEvent:
		return &events.EscalationRaised{}
	case events.ActionRecordedEvent:
		return &events.ActionRecorded{}
	default:
		return nil
	}
}

func (eb *WatermillEventBus) Close() error {
	if err := eb.publisher.Close(); err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}

	return eb.subscriber.Close()
}
