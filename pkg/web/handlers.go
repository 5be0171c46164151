// Package web exposes the run enqueue HTTP surface: submitting a run for
// a workflow, activating a schedule, and a health probe. Workflow editing
// stays out of this API.
package web

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/fluxionhq/fluxion/pkg/eventbus"
	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
	"github.com/fluxionhq/fluxion/pkg/schedule"
)

type APIHandlers struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	evaluator   *schedule.Evaluator
}

func NewAPIHandlers(persist persistence.Persistence, publisher eventbus.EventPublisher, evaluator *schedule.Evaluator) *APIHandlers {
	return &APIHandlers{
		persistence: persist,
		publisher:   publisher,
		evaluator:   evaluator,
	}
}

// Register mounts the API routes on the app.
func (h *APIHandlers) Register(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
	app.Get("/workflows/:id", h.GetWorkflow)
	app.Post("/workflows/:id/runs", h.EnqueueRun)
	app.Post("/schedules/:id/activate", h.ActivateSchedule)
}

// EnqueueRunRequest is the POST /workflows/:id/runs payload. All fields
// are optional; an empty body enqueues a bare manual run.
type EnqueueRunRequest struct {
	TriggerNodeID string         `json:"trigger_node_id"`
	SeedData      map[string]any `json:"seed_data"`
	UserID        string         `json:"user_id"`
}

func (h *APIHandlers) EnqueueRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req EnqueueRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	workflow, err := h.persistence.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	if workflow.Status != models.WorkflowStatusPublished {
		return badRequest(c, "Only published workflows can be run")
	}

	event := events.RunRequested{
		BaseEvent:     events.NewBaseEvent(events.RunRequestedEvent, workflow.ID),
		TriggerNodeID: req.TriggerNodeID,
		SeedData:      req.SeedData,
		UserID:        req.UserID,
	}

	if err := h.publisher.Publish(c.Context(), workflow.ID, event); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"workflow_id": workflow.ID,
		"event_id":    event.ID,
		"status":      "enqueued",
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	workflow, err := h.persistence.WorkflowRepository().GetByID(c.Context(), id)
	if err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Workflow not found")
		}

		return internalError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) ActivateSchedule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Schedule ID is required")
	}

	if err := h.evaluator.Activate(c.Context(), id); err != nil {
		if persistence.IsNotFound(err) {
			return notFound(c, "Schedule not found")
		}

		return badRequest(c, err.Error())
	}

	return c.JSON(fiber.Map{"schedule_id": id, "status": "activated"})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	err := h.persistence.HealthCheck(c.Context())

	status := "healthy"
	httpStatus := http.StatusOK

	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}
