package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/channels/gochannel"
	"github.com/fluxionhq/fluxion/pkg/eventbus"
	"github.com/fluxionhq/fluxion/pkg/events"
)

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.RunRequested, 1)

	require.NoError(t, bus.Handle(events.RunRequestedEvent, func(_ context.Context, event any) error {
		request, ok := event.(*events.RunRequested)
		require.True(t, ok)

		received <- request

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sent := events.RunRequested{
		BaseEvent:       events.NewBaseEvent(events.RunRequestedEvent, "wf-1"),
		SeedData:        map[string]any{"x": float64(1)},
		ScheduleID:      "sched-1",
		ScheduleVersion: 2,
	}
	require.NoError(t, bus.Publish(ctx, "wf-1", sent))

	select {
	case request := <-received:
		assert.Equal(t, "wf-1", request.WorkflowID)
		assert.Equal(t, "sched-1", request.ScheduleID)
		assert.Equal(t, 2, request.ScheduleVersion)
		assert.Equal(t, float64(1), request.SeedData["x"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event delivery")
	}
}

func TestWatermillEventBus_UnhandledTypeIsIgnored(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	finished := events.RunFinished{
		BaseEvent:   events.NewBaseEvent(events.RunFinishedEvent, "wf-1"),
		ExecutionID: "exec-1",
	}
	assert.NoError(t, bus.Publish(ctx, "wf-1", finished))
}
