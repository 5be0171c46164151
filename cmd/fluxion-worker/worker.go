package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxionhq/fluxion/pkg/eventbus"
	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/otelhelper"
	"github.com/fluxionhq/fluxion/pkg/persistence"
	"github.com/fluxionhq/fluxion/pkg/queue"
	"github.com/fluxionhq/fluxion/pkg/runner"
	"github.com/fluxionhq/fluxion/pkg/status"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WorkerOptions carries the optional Redis run-queue settings.
type WorkerOptions struct {
	RunQueue  string
	RedisAddr string
}

// Worker consumes run requests from the event bus (and optionally a Redis
// queue) and executes them.
type Worker struct {
	id       string
	eventBus eventbus.EventBus
	runner   *runner.Runner
	logger   *slog.Logger
	options  WorkerOptions
	tracer   trace.Tracer
}

func NewWorker(id string, persist persistence.Persistence, eventBus eventbus.EventBus, registry *executor.Registry, statusPublisher *status.Publisher, logger *slog.Logger, options WorkerOptions) *Worker {
	return &Worker{
		id:       id,
		eventBus: eventBus,
		runner:   runner.New(logger, persist, registry, statusPublisher),
		logger:   logger,
		options:  options,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	tracer, err := otelhelper.NewTracer(ctx, "fluxion-worker")
	if err != nil {
		w.logger.WarnContext(ctx, "Tracing disabled", "error", err)
	} else {
		w.tracer = tracer
	}

	if err := w.eventBus.Handle(events.RunRequestedEvent, w.handleRunRequested); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to event bus: %w", err)
	}

	if w.options.RunQueue != "" {
		consumer, err := queue.NewConsumer(ctx, queue.Config{
			Addr:  w.options.RedisAddr,
			Queue: w.options.RunQueue,
		}, func(ctx context.Context, request events.RunRequested) error {
			return w.process(ctx, &request)
		}, w.logger)
		if err != nil {
			return err
		}

		consumer.Start(ctx)

		defer func() {
			if err := consumer.Stop(context.WithoutCancel(ctx)); err != nil {
				w.logger.ErrorContext(ctx, "Failed to stop queue consumer", "error", err)
			}
		}()
	}

	w.logger.InfoContext(ctx, "Worker started")

	<-ctx.Done()

	return ctx.Err()
}

func (w *Worker) handleRunRequested(ctx context.Context, event any) error {
	request, ok := event.(*events.RunRequested)
	if !ok {
		return fmt.Errorf("unexpected event payload %T", event)
	}

	return w.process(ctx, request)
}

func (w *Worker) process(ctx context.Context, request *events.RunRequested) error {
	if w.tracer != nil {
		var span trace.Span

		ctx, span = otelhelper.StartSpan(ctx, w.tracer, "workflow.run",
			attribute.String(otelhelper.WorkflowIDKey, request.WorkflowID),
			attribute.String(otelhelper.WorkerIDKey, w.id),
			attribute.String(otelhelper.EventIDKey, request.ID),
		)
		defer span.End()
	}

	started := time.Now()

	execution, err := w.runner.Run(ctx, runner.Request{
		WorkflowID:      request.WorkflowID,
		UserID:          request.UserID,
		Trigger:         request.TriggerNodeID,
		SeedData:        request.SeedData,
		RunID:           request.ID,
		ScheduleID:      request.ScheduleID,
		ScheduleVersion: request.ScheduleVersion,
	})

	if execution == nil && err == nil {
		// Stale schedule version, already logged by the runner.
		return nil
	}

	if err != nil {
		w.publishFailure(ctx, request, execution, err, time.Since(started))

		// The request was consumed; the failure is recorded on the
		// execution, so the message must not be redelivered.
		return nil
	}

	result := events.RunFinished{
		BaseEvent:   events.NewBaseEvent(events.RunFinishedEvent, request.WorkflowID),
		ExecutionID: execution.ID,
		Duration:    time.Since(started),
	}
	result.WorkerID = w.id

	if err := w.eventBus.Publish(ctx, request.WorkflowID, result); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish run result", "error", err)
	}

	return nil
}

func (w *Worker) publishFailure(ctx context.Context, request *events.RunRequested, execution *models.Execution, runErr error, duration time.Duration) {
	failure := events.RunFailed{
		BaseEvent: events.NewBaseEvent(events.RunFailedEvent, request.WorkflowID),
		Error:     runErr.Error(),
		Duration:  duration,
	}
	failure.WorkerID = w.id

	if execution != nil {
		failure.ExecutionID = execution.ID
	}

	if err := w.eventBus.Publish(ctx, request.WorkflowID, failure); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish run failure", "error", err)
	}
}
