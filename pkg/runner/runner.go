// Package runner executes one workflow run from a triggering event to a
// terminal execution status.
package runner

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/graph"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
	"github.com/fluxionhq/fluxion/pkg/prune"
	"github.com/fluxionhq/fluxion/pkg/status"
	"github.com/fluxionhq/fluxion/pkg/steplog"
)

const defaultMaxRetries = 3

// Request describes one run to perform.
type Request struct {
	WorkflowID string
	UserID     string
	Trigger    string
	SeedData   map[string]any

	// RunID is the stable identifier of the enqueueing event. A
	// redelivered request carries the same RunID, so its durable steps
	// resolve to the results recorded before the crash instead of
	// repeating the side effects.
	RunID string

	// Set only for scheduler-originated runs; a version mismatch against
	// the stored schedule means the policy changed after enqueue and the
	// run is discarded.
	ScheduleID      string
	ScheduleVersion int
}

// Runner orchestrates workflow runs. One Runner serves many runs; per-run
// state lives on the stack of Run.
type Runner struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *executor.Registry
	status      *status.Publisher
	maxRetries  uint64
}

func New(logger *slog.Logger, persist persistence.Persistence, registry *executor.Registry, statusPub *status.Publisher) *Runner {
	return &Runner{
		logger:      logger.With("module", "runner"),
		persistence: persist,
		registry:    registry,
		status:      statusPub,
		maxRetries:  defaultMaxRetries,
	}
}

// Run executes the workflow named by the request. A stale schedule version
// discards the request and returns (nil, nil). The returned execution is
// in a terminal status; the error mirrors the failure that ended the run.
func (r *Runner) Run(ctx context.Context, request Request) (*models.Execution, error) {
	logger := r.logger.With("workflow_id", request.WorkflowID)

	if request.ScheduleID != "" {
		stale, err := r.scheduleIsStale(ctx, request)
		if err != nil {
			return nil, err
		}

		if stale {
			logger.Info("Discarding run for stale schedule version",
				"schedule_id", request.ScheduleID,
				"schedule_version", request.ScheduleVersion)

			return nil, nil
		}
	}

	workflow, err := r.persistence.WorkflowRepository().GetByID(ctx, request.WorkflowID)
	if err != nil {
		return nil, err
	}

	g, err := graph.Load(workflow)
	if err != nil {
		return nil, err
	}

	execution := &models.Execution{
		ID:         uuid.New().String(),
		WorkflowID: workflow.ID,
		Status:     models.ExecutionStatusRunning,
		Trigger:    request.Trigger,
		StartedAt:  time.Now().UTC(),
	}

	executions := r.persistence.ExecutionRepository()
	if err := executions.CreateExecution(ctx, execution); err != nil {
		return nil, err
	}

	logger = logger.With("execution_id", execution.ID)
	logger.Info("Execution started", "trigger", request.Trigger)

	stepScope := request.RunID
	if stepScope == "" {
		stepScope = execution.ID
	}

	steps := steplog.NewRunner(stepScope, r.persistence.StepLogRepository(), r.logger)

	runErr := r.execute(ctx, g, execution, request, steps, logger)

	completedAt := time.Now().UTC()
	finalStatus := models.ExecutionStatusSuccess

	if runErr != nil {
		finalStatus = models.ExecutionStatusFailed
	}

	if err := executions.UpdateExecutionStatus(ctx, execution.ID, finalStatus, &completedAt); err != nil {
		return nil, err
	}

	execution.Status = finalStatus
	execution.CompletedAt = &completedAt

	logger.Info("Execution finished", "status", finalStatus)

	return execution, runErr
}

func (r *Runner) scheduleIsStale(ctx context.Context, request Request) (bool, error) {
	schedule, err := r.persistence.ScheduleRepository().GetByID(ctx, request.ScheduleID)
	if err != nil {
		if persistence.IsNotFound(err) {
			return true, nil
		}

		return false, err
	}

	return schedule.Version != request.ScheduleVersion, nil
}

// execute walks the graph in dependency order. The first failure flips the
// run into drain mode: every remaining node is recorded SKIPPED and the
// failure is returned once the walk completes, so the audit trail covers
// the whole graph.
func (r *Runner) execute(ctx context.Context, g *graph.Graph, execution *models.Execution, request Request, steps executor.Step, logger *slog.Logger) error {
	executions := r.persistence.ExecutionRepository()

	execContext := make(map[string]any)
	decisions := make(map[string]string)
	disabled := make(map[string]bool)

	var failure error

	for index, nodeID := range g.TopologicalOrder() {
		node := g.Node(nodeID)

		record := &models.ExecutionStep{
			ID:          uuid.New().String(),
			ExecutionID: execution.ID,
			NodeID:      node.ID,
			NodeType:    node.Type,
			NodeName:    node.Name,
			StepIndex:   index,
		}

		if failure != nil || disabled[nodeID] {
			record.Status = models.StepStatusSkipped
			if err := executions.CreateStep(ctx, record); err != nil {
				return err
			}

			continue
		}

		startedAt := time.Now().UTC()
		record.Status = models.StepStatusRunning
		record.StartedAt = &startedAt
		record.Input = node.Config

		if err := executions.CreateStep(ctx, record); err != nil {
			return err
		}

		output, err := r.executeNode(ctx, node, execution, request, execContext, steps)

		completedAt := time.Now().UTC()
		record.CompletedAt = &completedAt

		if err != nil {
			record.Status = models.StepStatusFailed
			failure = flowerr.NodeError(node.Name, err)
			record.Output = map[string]any{"error": failure.Error()}

			logger.Error("Node failed", "node_id", node.ID, "node_type", node.Type, "error", err)
		} else {
			record.Status = models.StepStatusSuccess
			record.Output = output

			maps.Copy(execContext, output)

			r.applyBranchDecision(g, node, output, decisions, disabled, logger)
		}

		if err := executions.UpdateStep(ctx, record); err != nil {
			return err
		}
	}

	return failure
}

func (r *Runner) executeNode(ctx context.Context, node *models.WorkflowNode, execution *models.Execution, request Request, execContext map[string]any, steps executor.Step) (map[string]any, error) {
	if err := r.registry.ValidateConfig(node.Type, node.Config); err != nil {
		return nil, err
	}

	exec, err := r.registry.Executor(node.Type)
	if err != nil {
		return nil, err
	}

	input := executor.Input{
		NodeID:   node.ID,
		NodeName: node.Name,
		Data:     node.Config,
		UserID:   request.UserID,
		Context:  execContext,
		Step:     steps,
		Publish:  r.status.For(node.Type, node.ID),
	}

	if node.IsTriggerNode() {
		input.Seed = request.SeedData
	}

	return r.executeWithRetry(ctx, exec, input)
}

// executeWithRetry retries transient failures with exponential backoff.
// Non-retriable errors short-circuit through backoff.Permanent.
func (r *Runner) executeWithRetry(ctx context.Context, exec executor.Executor, input executor.Input) (map[string]any, error) {
	operation := func() (map[string]any, error) {
		output, err := exec.Execute(ctx, input)
		if err != nil && flowerr.IsNonRetriable(err) {
			return nil, backoff.Permanent(err)
		}

		return output, err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.maxRetries), ctx)

	return backoff.RetryWithData(operation, policy)
}

// applyBranchDecision records a decision node's chosen port and refreshes
// the disabled set. Executors that do not branch are ignored.
func (r *Runner) applyBranchDecision(g *graph.Graph, node *models.WorkflowNode, output map[string]any, decisions map[string]string, disabled map[string]bool, logger *slog.Logger) {
	exec, err := r.registry.Executor(node.Type)
	if err != nil {
		return
	}

	branching, ok := exec.(executor.Branching)
	if !ok {
		return
	}

	port := branching.ActivePort(output)
	if port == "" {
		return
	}

	decisions[node.ID] = port

	clear(disabled)
	maps.Copy(disabled, prune.Disabled(g, decisions))

	logger.Debug("Branch decided", "node_id", node.ID, "active_port", port, "disabled_nodes", len(disabled))
}
