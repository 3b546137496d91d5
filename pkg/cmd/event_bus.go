package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/inboxflow/pkg/eventbus"
	"github.com/dukex/inboxflow/pkg/pubsub/gochannel"
	"github.com/dukex/inboxflow/pkg/pubsub/kafka"
)

// NewEventBus creates the event bus for provider: "kafka", "gochannel" or "none".
func NewEventBus(provider string, brokers []string, logger *slog.Logger) (eventbus.EventBus, error) {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), brokers, "inboxflow")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(logger, pub, sub), nil
	case "", "none":
		return eventbus.Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
