package models

import "time"

// ExecutionStatus represents the terminal state machine of one run.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "PENDING"
	ExecutionStatusRunning ExecutionStatus = "RUNNING"
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
)

// StepStatus represents the state of a single node within a run.
type StepStatus string

const (
	StepStatusPending StepStatus = "PENDING"
	StepStatusRunning StepStatus = "RUNNING"
	StepStatusSuccess StepStatus = "SUCCESS"
	StepStatusFailed  StepStatus = "FAILED"
	StepStatusSkipped StepStatus = "SKIPPED"
)

// Execution records one workflow run, created per triggering event.
type Execution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	Trigger     string          `json:"trigger,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Steps       []*ExecutionStep `json:"steps,omitempty"`
}

// ExecutionStep is the persisted audit record of one node execution.
// StepIndex reflects execution order, not graph topology, and exists for
// UI replay. The record is immutable once it reaches a terminal status.
type ExecutionStep struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	NodeType    string         `json:"node_type"`
	NodeName    string         `json:"node_name"`
	StepIndex   int            `json:"step_index"`
	Status      StepStatus     `json:"status"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// StepResult is a memoized durable-step record. A resumed run consults the
// log by (execution_id, label) before repeating any side effect.
type StepResult struct {
	ExecutionID string         `json:"execution_id"`
	Label       string         `json:"label"`
	Output      map[string]any `json:"output"`
	RecordedAt  time.Time      `json:"recorded_at"`
}
