package status

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/models"
)

func TestTopic_PerNodeType(t *testing.T) {
	assert.Equal(t, "fluxion.status.trigger.webhook", Topic("trigger:webhook"))
	assert.Equal(t, "fluxion.status.branch", Topic("branch"))
}

func TestPublishAndSubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	events, err := Subscribe(ctx, pubSub, "branch")
	require.NoError(t, err)

	publisher := NewPublisher(pubSub, slog.Default())

	publisher.Publish("branch", "node-1", models.NodeStatusLoading)
	first := <-events
	assert.Equal(t, Event{NodeID: "node-1", Status: models.NodeStatusLoading}, first)

	publisher.Publish("branch", "node-1", models.NodeStatusSuccess)
	second := <-events
	assert.Equal(t, Event{NodeID: "node-1", Status: models.NodeStatusSuccess}, second)
}

func TestPublisherFor_BindsNode(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	events, err := Subscribe(ctx, pubSub, "transform")
	require.NoError(t, err)

	publish := NewPublisher(pubSub, slog.Default()).For("transform", "node-9")
	publish(models.NodeStatusError)

	event := <-events
	assert.Equal(t, "node-9", event.NodeID)
	assert.Equal(t, models.NodeStatusError, event.Status)
}
