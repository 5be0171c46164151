// Package events defines the messages exchanged between the API, the
// scheduler, and the worker.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "fluxion.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunRequestedEvent EventType = "run.requested"
	RunFinishedEvent  EventType = "run.finished"
	RunFailedEvent    EventType = "run.failed"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	WorkerID   string    `json:"worker_id,omitempty"`
}

// RunRequested asks a worker to execute a workflow. ScheduleID and
// ScheduleVersion are set only for scheduler-originated runs; a worker
// discards the event when the version no longer matches the stored
// schedule.
type RunRequested struct {
	BaseEvent

	TriggerNodeID   string         `json:"trigger_node_id,omitempty"`
	SeedData        map[string]any `json:"seed_data,omitempty"`
	UserID          string         `json:"user_id,omitempty"`
	ScheduleID      string         `json:"schedule_id,omitempty"`
	ScheduleVersion int            `json:"schedule_version,omitempty"`
	ScheduledAt     time.Time      `json:"scheduled_at,omitempty"`
}

func (r RunRequested) GetType() EventType {
	return RunRequestedEvent
}

type RunFinished struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (r RunFinished) GetType() EventType {
	return RunFinishedEvent
}

type RunFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id,omitempty"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (r RunFailed) GetType() EventType {
	return RunFailedEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}
