package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/bloomcare/careflow/pkg/channels/gochannel"
	"github.com/bloomcare/careflow/pkg/channels/kafka"
	"github.com/bloomcare/careflow/pkg/eventbus"
)

// NewEventBus creates the lifecycle event bus for the given provider.
// "kafka" requires KAFKA_BROKERS; anything else gets the in-process channel.
func NewEventBus(provider string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, "careflow")
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		pub, sub, err := gochannel.CreateChannel(wmLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gochannel pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	}
}
