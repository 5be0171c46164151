// Package persistence provides the storage abstraction consumed by the
// engine: workflows, executions and their step records, the durable step
// log, and schedules.
package persistence

import (
	"context"
	"time"

	"github.com/fluxionhq/fluxion/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	StepLogRepository() StepLogRepository
	ScheduleRepository() ScheduleRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow graphs. The engine reads them; the
// editor (out of scope here) writes them.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	List(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores runs and their per-node audit records.
// Records are append/update-only from the owning run and never touched by
// any other run.
type ExecutionRepository interface {
	CreateExecution(ctx context.Context, execution *models.Execution) error
	UpdateExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, completedAt *time.Time) error
	GetExecution(ctx context.Context, id string) (*models.Execution, error)

	CreateStep(ctx context.Context, step *models.ExecutionStep) error
	UpdateStep(ctx context.Context, step *models.ExecutionStep) error
	StepsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionStep, error)
}

// StepLogRepository is the append-only log of durable step results,
// consulted before a step's side effect runs so crashed-and-resumed runs
// skip completed work deterministically.
type StepLogRepository interface {
	// Get returns the memoized result, or nil when the label has not
	// completed for this execution.
	Get(ctx context.Context, executionID, label string) (*models.StepResult, error)
	Put(ctx context.Context, result *models.StepResult) error
}

// ScheduleRepository stores recurrence policies.
type ScheduleRepository interface {
	// ActiveSchedules returns schedules with enabled set and draft unset.
	ActiveSchedules(ctx context.Context) ([]*models.Schedule, error)
	GetByID(ctx context.Context, id string) (*models.Schedule, error)
	Save(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}
