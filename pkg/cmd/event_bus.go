package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/fluxionhq/fluxion/pkg/channels/gochannel"
	"github.com/fluxionhq/fluxion/pkg/channels/kafka"
	"github.com/fluxionhq/fluxion/pkg/eventbus"
	"github.com/fluxionhq/fluxion/pkg/status"
)

func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "fluxion")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}

// NewStatusPublisher builds the broadcast publisher for node lifecycle
// events on the same transport as the event bus.
func NewStatusPublisher(provider string, logger *slog.Logger) *status.Publisher {
	switch provider {
	case "kafka":
		pub, _, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "fluxion-status")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka status publisher: %w", err))
		}

		return status.NewPublisher(pub, logger)
	case "gochannel":
		pub, _, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory status publisher: %w", err))
		}

		return status.NewPublisher(pub, logger)
	default:
		panic("Unsupported status publisher provider: " + provider)
	}
}
