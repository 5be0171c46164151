package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func TestWorkflowRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	workflow := &models.Workflow{
		ID:     "wf-1",
		Name:   "roundtrip",
		Status: models.WorkflowStatusPublished,
		Nodes: []*models.WorkflowNode{
			{ID: "n1", Type: "trigger:manual", Category: models.CategoryTypeTrigger, Name: "start"},
		},
	}

	require.NoError(t, p.WorkflowRepository().Save(ctx, workflow))

	loaded, err := p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Name)
	require.Len(t, loaded.Nodes, 1)
	assert.Equal(t, "trigger:manual", loaded.Nodes[0].Type)
}

func TestWorkflowRepository_NotFound(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.WorkflowRepository().GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestExecutionRepository_StepOrdering(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.ExecutionRepository()

	require.NoError(t, repo.CreateExecution(ctx, &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}))

	// Created out of order on purpose; StepsByExecution sorts by index.
	require.NoError(t, repo.CreateStep(ctx, &models.ExecutionStep{ID: "s2", ExecutionID: "exec-1", StepIndex: 1, Status: models.StepStatusSuccess}))
	require.NoError(t, repo.CreateStep(ctx, &models.ExecutionStep{ID: "s1", ExecutionID: "exec-1", StepIndex: 0, Status: models.StepStatusSuccess}))
	require.NoError(t, repo.CreateStep(ctx, &models.ExecutionStep{ID: "other", ExecutionID: "exec-2", StepIndex: 0, Status: models.StepStatusSuccess}))

	steps, err := repo.StepsByExecution(ctx, "exec-1")
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "s1", steps[0].ID)
	assert.Equal(t, "s2", steps[1].ID)
}

func TestExecutionRepository_StatusUpdate(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.ExecutionRepository()

	require.NoError(t, repo.CreateExecution(ctx, &models.Execution{
		ID:         "exec-1",
		WorkflowID: "wf-1",
		Status:     models.ExecutionStatusRunning,
		StartedAt:  time.Now().UTC(),
	}))

	completed := time.Now().UTC()
	require.NoError(t, repo.UpdateExecutionStatus(ctx, "exec-1", models.ExecutionStatusSuccess, &completed))

	loaded, err := repo.GetExecution(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, loaded.Status)
	require.NotNil(t, loaded.CompletedAt)
}

func TestStepLogRepository_GetMissingReturnsNil(t *testing.T) {
	p := newTestPersistence(t)

	result, err := p.StepLogRepository().Get(context.Background(), "exec-1", "never-ran")
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestStepLogRepository_RoundTrip(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, p.StepLogRepository().Put(ctx, &models.StepResult{
		ExecutionID: "exec-1",
		Label:       "upload/attempt",
		Output:      map[string]any{"url": "https://example.com/file"},
		RecordedAt:  time.Now().UTC(),
	}))

	result, err := p.StepLogRepository().Get(ctx, "exec-1", "upload/attempt")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "https://example.com/file", result.Output["url"])
}

func TestScheduleRepository_ActiveFiltersDraftAndDisabled(t *testing.T) {
	p := newTestPersistence(t)
	ctx := context.Background()
	repo := p.ScheduleRepository()

	base := models.Schedule{
		WorkflowID: "wf-1",
		NodeID:     "n1",
		Mode:       models.ScheduleModeInterval,
		Timezone:   "UTC",
	}

	active := base
	active.ID = "active"
	active.Enabled = true

	draft := base
	draft.ID = "draft"
	draft.Enabled = true
	draft.IsDraft = true

	disabled := base
	disabled.ID = "disabled"

	for _, s := range []*models.Schedule{&active, &draft, &disabled} {
		require.NoError(t, repo.Save(ctx, s))
	}

	schedules, err := repo.ActiveSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "active", schedules[0].ID)
}
