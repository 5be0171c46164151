package runner

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/channels/gochannel"
	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/nodes/branch"
	"github.com/fluxionhq/fluxion/pkg/nodes/transform"
	"github.com/fluxionhq/fluxion/pkg/nodes/trigger"
	"github.com/fluxionhq/fluxion/pkg/persistence"
	"github.com/fluxionhq/fluxion/pkg/persistence/file"
	"github.com/fluxionhq/fluxion/pkg/status"
)

const alwaysFailType = "alwaysfail"

type alwaysFailFactory struct {
	terminal bool
}

func (f *alwaysFailFactory) Type() string                 { return alwaysFailType }
func (f *alwaysFailFactory) Category() models.CategoryType { return models.CategoryTypeAction }
func (f *alwaysFailFactory) Schema() map[string]any       { return nil }

func (f *alwaysFailFactory) New() executor.Executor {
	return executor.Func(func(_ context.Context, input executor.Input) (map[string]any, error) {
		input.Publish(models.NodeStatusError)

		if f.terminal {
			return nil, flowerr.Configuration("broken on purpose")
		}

		return nil, errors.New("flaky on purpose")
	})
}

const countOnceType = "countonce"

// countOnceFactory wraps its side effect in a durable step so tests can
// observe how often the effect actually runs.
type countOnceFactory struct {
	calls int
}

func (f *countOnceFactory) Type() string                  { return countOnceType }
func (f *countOnceFactory) Category() models.CategoryType { return models.CategoryTypeAction }
func (f *countOnceFactory) Schema() map[string]any        { return nil }

func (f *countOnceFactory) New() executor.Executor {
	return executor.Func(func(ctx context.Context, input executor.Input) (map[string]any, error) {
		input.Publish(models.NodeStatusLoading)

		output, err := input.Step.Run(ctx, "count/"+input.NodeID, func(context.Context) (map[string]any, error) {
			f.calls++

			return map[string]any{"calls": f.calls}, nil
		})
		if err != nil {
			input.Publish(models.NodeStatusError)

			return nil, err
		}

		input.Publish(models.NodeStatusSuccess)

		return map[string]any{"count": output}, nil
	})
}

func testRunner(t *testing.T, extra ...executor.Factory) (*Runner, persistence.Persistence) {
	t.Helper()

	persist := file.NewPersistence(t.TempDir())
	t.Cleanup(func() { _ = persist.Close(context.Background()) })

	registry := executor.NewRegistry(slog.Default())
	registry.Register(trigger.NewManualFactory())
	registry.Register(branch.NewFactory())
	registry.Register(transform.NewFactory())

	for _, factory := range extra {
		registry.Register(factory)
	}

	pubSub, _, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	statusPub := status.NewPublisher(pubSub, slog.Default())

	runner := New(slog.Default(), persist, registry, statusPub)
	runner.maxRetries = 1

	return runner, persist
}

func branchWorkflow(finalType string, finalConfig map[string]any) *models.Workflow {
	return &models.Workflow{
		ID:     "wf-1",
		Name:   "Branching workflow",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{
				ID:       "trigger-1",
				Type:     models.NodeTypeTriggerManual,
				Category: models.CategoryTypeTrigger,
				Name:     "Manual trigger",
			},
			{
				ID:       "branch-1",
				Type:     branch.NodeType,
				Category: models.CategoryTypeAction,
				Name:     "Check x",
				Config:   map[string]any{"condition": "{{trigger.x}} === 1"},
			},
			{
				ID:       "final-1",
				Type:     finalType,
				Category: models.CategoryTypeAction,
				Name:     "Final",
				Config:   finalConfig,
			},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNode: "trigger-1", TargetNode: "branch-1"},
			{ID: "c2", SourceNode: "branch-1", TargetNode: "final-1", SourcePort: models.PortTrue},
		},
	}
}

func stepsByNode(t *testing.T, persist persistence.Persistence, executionID string) map[string]*models.ExecutionStep {
	t.Helper()

	steps, err := persist.ExecutionRepository().StepsByExecution(context.Background(), executionID)
	require.NoError(t, err)

	byNode := make(map[string]*models.ExecutionStep, len(steps))
	for _, step := range steps {
		byNode[step.NodeID] = step
	}

	return byNode
}

func TestRun_TrueBranchExecutesEveryNode(t *testing.T) {
	runner, persist := testRunner(t)

	workflow := branchWorkflow(transform.NodeType, map[string]any{"expression": "done", "variable_name": "final"})
	require.NoError(t, persist.WorkflowRepository().Save(context.Background(), workflow))

	execution, err := runner.Run(context.Background(), Request{
		WorkflowID: "wf-1",
		Trigger:    "manual",
		SeedData:   map[string]any{"x": float64(1)},
	})
	require.NoError(t, err)
	require.NotNil(t, execution)
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)

	byNode := stepsByNode(t, persist, execution.ID)
	require.Len(t, byNode, 3)
	assert.Equal(t, models.StepStatusSuccess, byNode["trigger-1"].Status)
	assert.Equal(t, models.StepStatusSuccess, byNode["branch-1"].Status)
	assert.Equal(t, models.StepStatusSuccess, byNode["final-1"].Status)
}

func TestRun_FalseBranchSkipsPrunedSubtree(t *testing.T) {
	runner, persist := testRunner(t)

	workflow := branchWorkflow(transform.NodeType, map[string]any{"expression": "done", "variable_name": "final"})
	require.NoError(t, persist.WorkflowRepository().Save(context.Background(), workflow))

	execution, err := runner.Run(context.Background(), Request{
		WorkflowID: "wf-1",
		Trigger:    "manual",
		SeedData:   map[string]any{"x": float64(2)},
	})
	require.NoError(t, err, "a pruned subtree is not a failure")
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)

	byNode := stepsByNode(t, persist, execution.ID)
	assert.Equal(t, models.StepStatusSuccess, byNode["branch-1"].Status)
	assert.Equal(t, models.StepStatusSkipped, byNode["final-1"].Status)
}

func TestRun_TerminalFailureMarksRemainingSkipped(t *testing.T) {
	runner, persist := testRunner(t, &alwaysFailFactory{terminal: true})

	workflow := &models.Workflow{
		ID:     "wf-2",
		Name:   "Failing workflow",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{ID: "trigger-1", Type: models.NodeTypeTriggerManual, Category: models.CategoryTypeTrigger, Name: "Trigger"},
			{ID: "fail-1", Type: alwaysFailType, Category: models.CategoryTypeAction, Name: "Fail"},
			{ID: "after-1", Type: transform.NodeType, Category: models.CategoryTypeAction, Name: "After", Config: map[string]any{"expression": "x"}},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNode: "trigger-1", TargetNode: "fail-1"},
			{ID: "c2", SourceNode: "fail-1", TargetNode: "after-1"},
		},
	}
	require.NoError(t, persist.WorkflowRepository().Save(context.Background(), workflow))

	execution, err := runner.Run(context.Background(), Request{WorkflowID: "wf-2", Trigger: "manual"})
	require.Error(t, err)
	assert.True(t, flowerr.IsNonRetriable(err))
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)

	byNode := stepsByNode(t, persist, execution.ID)
	failed := byNode["fail-1"]
	assert.Equal(t, models.StepStatusFailed, failed.Status)
	assert.Equal(t, models.StepStatusSkipped, byNode["after-1"].Status)

	require.NotEmpty(t, failed.Output, "the failing step keeps its error message as output")

	message, ok := failed.Output["error"].(string)
	require.True(t, ok)
	assert.Contains(t, message, "Fail")
	assert.Contains(t, message, "broken on purpose")
}

func TestRun_RedeliveredRequestDoesNotRepeatDurableSteps(t *testing.T) {
	factory := &countOnceFactory{}
	runner, persist := testRunner(t, factory)

	workflow := &models.Workflow{
		ID:     "wf-3",
		Name:   "Side-effect workflow",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{ID: "trigger-1", Type: models.NodeTypeTriggerManual, Category: models.CategoryTypeTrigger, Name: "Trigger"},
			{ID: "count-1", Type: countOnceType, Category: models.CategoryTypeAction, Name: "Count"},
		},
		Connections: []*models.Connection{
			{ID: "c1", SourceNode: "trigger-1", TargetNode: "count-1"},
		},
	}
	require.NoError(t, persist.WorkflowRepository().Save(context.Background(), workflow))

	request := Request{WorkflowID: "wf-3", Trigger: "manual", RunID: "evt-1"}

	first, err := runner.Run(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, 1, factory.calls)

	second, err := runner.Run(context.Background(), request)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID, "a redelivery gets its own execution record")
	assert.Equal(t, 1, factory.calls, "the durable step must not repeat its side effect")

	byNode := stepsByNode(t, persist, second.ID)
	count, ok := byNode["count-1"].Output["count"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, count["calls"], "the redelivered run sees the memoized result")
}

func TestRun_StaleScheduleVersionIsDiscarded(t *testing.T) {
	runner, persist := testRunner(t)

	workflow := branchWorkflow(transform.NodeType, map[string]any{"expression": "done"})
	require.NoError(t, persist.WorkflowRepository().Save(context.Background(), workflow))

	schedule := &models.Schedule{
		ID:         "sched-1",
		WorkflowID: "wf-1",
		NodeID:     "trigger-1",
		Mode:       models.ScheduleModeInterval,
		IntervalMinutes: 5,
		Timezone:   "UTC",
		Enabled:    true,
		Version:    3,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, persist.ScheduleRepository().Save(context.Background(), schedule))

	execution, err := runner.Run(context.Background(), Request{
		WorkflowID:      "wf-1",
		ScheduleID:      "sched-1",
		ScheduleVersion: 2,
	})
	require.NoError(t, err)
	assert.Nil(t, execution, "stale schedule versions are silently discarded")
}

func TestRun_MissingWorkflowFails(t *testing.T) {
	runner, _ := testRunner(t)

	_, err := runner.Run(context.Background(), Request{WorkflowID: "nope"})
	require.Error(t, err)
	assert.True(t, persistence.IsNotFound(err))
}
