// Package steplog implements the durable-checkpoint step runner. Results
// are memoized in an append-only log keyed by (execution, label), so a
// retried or crash-resumed run consults the log instead of repeating the
// wrapped side effect.
package steplog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
)

// Runner binds one execution to the step log. It implements executor.Step.
type Runner struct {
	executionID string
	repository  persistence.StepLogRepository
	logger      *slog.Logger
}

func NewRunner(executionID string, repository persistence.StepLogRepository, logger *slog.Logger) *Runner {
	return &Runner{
		executionID: executionID,
		repository:  repository,
		logger:      logger.With("module", "steplog", "execution_id", executionID),
	}
}

var _ executor.Step = (*Runner)(nil)

// Run executes fn at most effectively-once per run. A failed fn is not
// recorded, so the surrounding retry repeats it; a successful result is
// persisted before being returned.
func (r *Runner) Run(ctx context.Context, label string, fn executor.StepFunc) (map[string]any, error) {
	cached, err := r.repository.Get(ctx, r.executionID, label)
	if err != nil {
		return nil, fmt.Errorf("failed to consult step log for %q: %w", label, err)
	}

	if cached != nil {
		r.logger.Debug("Step already completed, returning memoized result", "label", label)

		return cached.Output, nil
	}

	output, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	record := &models.StepResult{
		ExecutionID: r.executionID,
		Label:       label,
		Output:      output,
		RecordedAt:  time.Now().UTC(),
	}

	if err := r.repository.Put(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record step %q: %w", label, err)
	}

	return output, nil
}
