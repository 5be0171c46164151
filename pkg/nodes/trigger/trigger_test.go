package trigger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
)

func TestExecute_SeedUnderDefaultKey(t *testing.T) {
	exec := NewManualFactory().New()

	output, err := exec.Execute(context.Background(), executor.Input{
		NodeID:  "trigger-1",
		Seed:    map[string]any{"x": float64(1)},
		Publish: func(models.NodeStatus) {},
	})
	require.NoError(t, err)

	seed, ok := output["trigger"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), seed["x"])
}

func TestExecute_HonorsVariableName(t *testing.T) {
	exec := NewWebhookFactory().New()

	output, err := exec.Execute(context.Background(), executor.Input{
		NodeID:  "trigger-1",
		Data:    map[string]any{"variable_name": "payload"},
		Seed:    map[string]any{"order_id": "o-7"},
		Publish: func(models.NodeStatus) {},
	})
	require.NoError(t, err)

	require.NotContains(t, output, "trigger")

	seed, ok := output["payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "o-7", seed["order_id"])
}

func TestExecute_NilSeedBecomesEmptyMap(t *testing.T) {
	exec := NewScheduleFactory().New()

	output, err := exec.Execute(context.Background(), executor.Input{
		NodeID:  "trigger-1",
		Publish: func(models.NodeStatus) {},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, output["trigger"])
}

func TestExecute_MissingIDIsTerminal(t *testing.T) {
	exec := NewManualFactory().New()

	_, err := exec.Execute(context.Background(), executor.Input{
		Publish: func(models.NodeStatus) {},
	})
	require.Error(t, err)
	assert.True(t, flowerr.IsNonRetriable(err))
}
