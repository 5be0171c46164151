// Package schedule runs the recurring-run evaluator. Once per minute it
// loads the active schedules, asks each whether it is due, and enqueues a
// run request tagged with the schedule's id and version. Duplicate
// enqueues from overlapping evaluator instances are tolerated downstream;
// stale versions are discarded by the worker.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxionhq/fluxion/pkg/eventbus"
	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
)

const defaultTickInterval = time.Minute

type Evaluator struct {
	logger    *slog.Logger
	schedules persistence.ScheduleRepository
	publisher eventbus.EventPublisher
	interval  time.Duration
	now       func() time.Time
}

func NewEvaluator(logger *slog.Logger, schedules persistence.ScheduleRepository, publisher eventbus.EventPublisher) *Evaluator {
	return &Evaluator{
		logger:    logger.With("module", "schedule"),
		schedules: schedules,
		publisher: publisher,
		interval:  defaultTickInterval,
		now:       time.Now,
	}
}

// Start ticks once per minute until the context is cancelled. Evaluation
// errors are logged and do not stop the loop.
func (e *Evaluator) Start(ctx context.Context) error {
	e.logger.Info("Schedule evaluator started", "tick_interval", e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Schedule evaluator stopped")

			return ctx.Err()
		case <-ticker.C:
			if err := e.Tick(ctx, e.now().UTC()); err != nil {
				e.logger.Error("Schedule evaluation failed", "error", err)
			}
		}
	}
}

// Tick evaluates every active schedule against the given instant. One
// broken schedule does not block the others.
func (e *Evaluator) Tick(ctx context.Context, now time.Time) error {
	active, err := e.schedules.ActiveSchedules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load active schedules: %w", err)
	}

	for _, schedule := range active {
		due, err := schedule.ShouldRunNow(now)
		if err != nil {
			e.logger.Error("Skipping undecidable schedule", "schedule_id", schedule.ID, "error", err)

			continue
		}

		if !due {
			continue
		}

		if err := e.fire(ctx, schedule, now); err != nil {
			e.logger.Error("Failed to fire schedule", "schedule_id", schedule.ID, "error", err)
		}
	}

	return nil
}

func (e *Evaluator) fire(ctx context.Context, schedule *models.Schedule, now time.Time) error {
	event := events.RunRequested{
		BaseEvent:       events.NewBaseEvent(events.RunRequestedEvent, schedule.WorkflowID),
		TriggerNodeID:   schedule.NodeID,
		ScheduleID:      schedule.ID,
		ScheduleVersion: schedule.Version,
		ScheduledAt:     now,
	}

	if err := e.publisher.Publish(ctx, schedule.WorkflowID, event); err != nil {
		return fmt.Errorf("failed to enqueue run: %w", err)
	}

	schedule.LastRunAt = &now
	schedule.UpdatedAt = now

	if err := e.schedules.Save(ctx, schedule); err != nil {
		return fmt.Errorf("failed to record last run: %w", err)
	}

	e.logger.Info("Schedule fired",
		"schedule_id", schedule.ID,
		"workflow_id", schedule.WorkflowID,
		"mode", schedule.Mode)

	return nil
}

// Activate enables a schedule: the version bumps so run requests enqueued
// under the previous version are discarded, and the next due run is
// pre-enqueued with its future fire time.
func (e *Evaluator) Activate(ctx context.Context, scheduleID string) error {
	schedule, err := e.schedules.GetByID(ctx, scheduleID)
	if err != nil {
		return err
	}

	if err := schedule.Validate(); err != nil {
		return err
	}

	now := e.now().UTC()

	schedule.Enabled = true
	schedule.IsDraft = false
	schedule.Version++
	schedule.UpdatedAt = now

	if err := e.schedules.Save(ctx, schedule); err != nil {
		return fmt.Errorf("failed to save activated schedule: %w", err)
	}

	next, err := schedule.NextRunAfter(now)
	if err != nil {
		return err
	}

	event := events.RunRequested{
		BaseEvent:       events.NewBaseEvent(events.RunRequestedEvent, schedule.WorkflowID),
		TriggerNodeID:   schedule.NodeID,
		ScheduleID:      schedule.ID,
		ScheduleVersion: schedule.Version,
		ScheduledAt:     next,
	}

	if err := e.publisher.Publish(ctx, schedule.WorkflowID, event); err != nil {
		return fmt.Errorf("failed to pre-enqueue next run: %w", err)
	}

	e.logger.Info("Schedule activated",
		"schedule_id", schedule.ID,
		"version", schedule.Version,
		"next_run_at", next)

	return nil
}
