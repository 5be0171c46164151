package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
)

const (
	workflowCollection  = "workflows"
	executionCollection = "executions"
	stepCollection      = "execution_steps"
	stepLogCollection   = "step_log"
	scheduleCollection  = "schedules"
)

type WorkflowRepository struct {
	persistence *Persistence
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow
	if err := r.persistence.read(workflowCollection, id, &workflow, persistence.ErrWorkflowNotFound); err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (r *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	return r.persistence.write(workflowCollection, workflow.ID, workflow)
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := r.persistence.ids(workflowCollection)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(_ context.Context, id string) error {
	return r.persistence.remove(workflowCollection, id, persistence.ErrWorkflowNotFound)
}

type ExecutionRepository struct {
	persistence *Persistence
}

func (r *ExecutionRepository) CreateExecution(_ context.Context, execution *models.Execution) error {
	return r.persistence.write(executionCollection, execution.ID, execution)
}

func (r *ExecutionRepository) UpdateExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, completedAt *time.Time) error {
	execution, err := r.GetExecution(ctx, id)
	if err != nil {
		return err
	}

	execution.Status = status
	execution.CompletedAt = completedAt

	return r.persistence.write(executionCollection, id, execution)
}

func (r *ExecutionRepository) GetExecution(_ context.Context, id string) (*models.Execution, error) {
	var execution models.Execution
	if err := r.persistence.read(executionCollection, id, &execution, persistence.ErrExecutionNotFound); err != nil {
		return nil, err
	}

	return &execution, nil
}

func (r *ExecutionRepository) CreateStep(_ context.Context, step *models.ExecutionStep) error {
	return r.persistence.write(stepCollection, step.ID, step)
}

func (r *ExecutionRepository) UpdateStep(_ context.Context, step *models.ExecutionStep) error {
	return r.persistence.write(stepCollection, step.ID, step)
}

func (r *ExecutionRepository) StepsByExecution(_ context.Context, executionID string) ([]*models.ExecutionStep, error) {
	ids, err := r.persistence.ids(stepCollection)
	if err != nil {
		return nil, err
	}

	var steps []*models.ExecutionStep

	for _, id := range ids {
		var step models.ExecutionStep
		if err := r.persistence.read(stepCollection, id, &step, persistence.ErrExecutionNotFound); err != nil {
			return nil, err
		}

		if step.ExecutionID == executionID {
			steps = append(steps, &step)
		}
	}

	sort.Slice(steps, func(i, j int) bool { return steps[i].StepIndex < steps[j].StepIndex })

	return steps, nil
}

type StepLogRepository struct {
	persistence *Persistence
}

/// stepLogKey derives a filesystem-safe key: labels are user-influenced
// (node IDs, step names) and may contain path separators.
func stepLogKey(executionID, label string) string {
	sum := sha256.Sum256([]byte(executionID + "\x00" + label))

	return hex.EncodeToString(sum[:])
}

func (r *StepLogRepository) Get(_ context.Context, executionID, label string) (*models.StepResult, error) {
	var result models.StepResult

	err := r.persistence.read(stepLogCollection, stepLogKey(executionID, label), &result, persistence.ErrExecutionNotFound)
	if err != nil {
		if persistence.IsNotFound(err) {
			return nil, nil
		}

		return nil, err
	}

	return &result, nil
}

func (r *StepLogRepository) Put(_ context.Context, result *models.StepResult) error {
	return r.persistence.write(stepLogCollection, stepLogKey(result.ExecutionID, result.Label), result)
}

type ScheduleRepository struct {
	persistence *Persistence
}

func (r *ScheduleRepository) ActiveSchedules(ctx context.Context) ([]*models.Schedule, error) {
	ids, err := r.persistence.ids(scheduleCollection)
	if err != nil {
		return nil, err
	}

	var schedules []*models.Schedule

	for _, id := range ids {
		schedule, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if schedule.Enabled && !schedule.IsDraft {
			schedules = append(schedules, schedule)
		}
	}

	return schedules, nil
}

func (r *ScheduleRepository) GetByID(_ context.Context, id string) (*models.Schedule, error) {
	var schedule models.Schedule
	if err := r.persistence.read(scheduleCollection, id, &schedule, persistence.ErrScheduleNotFound); err != nil {
		return nil, err
	}

	return &schedule, nil
}

func (r *ScheduleRepository) Save(_ context.Context, schedule *models.Schedule) error {
	return r.persistence.write(scheduleCollection, schedule.ID, schedule)
}

func (r *ScheduleRepository) Delete(_ context.Context, id string) error {
	return r.persistence.remove(scheduleCollection, id, persistence.ErrScheduleNotFound)
}
