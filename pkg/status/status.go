// Package status broadcasts per-node lifecycle updates to live observers.
//
// One topic exists per node type, not per node instance; the payload names
// the node. Delivery is best-effort, at-most-once: observers that miss
// events re-fetch the persisted execution steps, which remain the system
// of record for final state.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/models"
)

const topicPrefix = "fluxion.status."

// Event is the message observers receive on a node-type channel.
type Event struct {
	NodeID string            `json:"node_id"`
	Status models.NodeStatus `json:"status"`
}

// Topic returns the broadcast topic for a node type.
func Topic(nodeType string) string {
	return topicPrefix + strings.ReplaceAll(nodeType, ":", ".")
}

// Publisher fans node lifecycle events out over a watermill publisher.
// It is injected into the orchestrator at construction time so tests can
// substitute an in-memory pub/sub and assert on published events.
type Publisher struct {
	publisher message.Publisher
	logger    *slog.Logger
}

func NewPublisher(publisher message.Publisher, logger *slog.Logger) *Publisher {
	return &Publisher{
		publisher: publisher,
		logger:    logger.With("module", "status"),
	}
}

// Publish emits a status event for the node. Failures are logged and
// swallowed: a dropped status update must never fail the run.
func (p *Publisher) Publish(nodeType, nodeID string, status models.NodeStatus) {
	payload, err := json.Marshal(Event{NodeID: nodeID, Status: status})
	if err != nil {
		p.logger.Error("Failed to encode status event", "node_id", nodeID, "error", err)

		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	if err := p.publisher.Publish(Topic(nodeType), msg); err != nil {
		p.logger.Warn("Failed to publish status event",
			"node_id", nodeID,
			"node_type", nodeType,
			"status", status,
			"error", err)
	}
}

// For returns the publish callback handed to one node's executor.
func (p *Publisher) For(nodeType, nodeID string) executor.PublishFunc {
	return func(status models.NodeStatus) {
		p.Publish(nodeType, nodeID, status)
	}
}

// Subscribe delivers decoded status events for one node type until the
// context is cancelled. Undecodable messages are acked and dropped.
func Subscribe(ctx context.Context, subscriber message.Subscriber, nodeType string) (<-chan Event, error) {
	messages, err := subscriber.Subscribe(ctx, Topic(nodeType))
	if err != nil {
		return nil, err
	}

	events := make(chan Event)

	go func() {
		defer close(events)

		for msg := range messages {
			var event Event
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				msg.Ack()

				continue
			}

			msg.Ack()

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
