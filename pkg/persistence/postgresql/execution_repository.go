package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
)

// ExecutionRepository stores runs and their per-node step records.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (er *ExecutionRepository) CreateExecution(ctx context.Context, execution *models.Execution) error {
	query := `
		INSERT INTO executions (id, workflow_id, status, trigger, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := er.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.Status,
		execution.Trigger,
		execution.StartedAt,
		execution.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

func (er *ExecutionRepository) UpdateExecutionStatus(ctx context.Context, id string, status models.ExecutionStatus, completedAt *time.Time) error {
	result, err := er.db.ExecContext(ctx,
		`UPDATE executions SET status = $2, completed_at = $3 WHERE id = $1`,
		id, status, completedAt)
	if err != nil {
		return fmt.Errorf("failed to update execution status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

func (er *ExecutionRepository) GetExecution(ctx context.Context, id string) (*models.Execution, error) {
	query := `
		SELECT id, workflow_id, status, trigger, started_at, completed_at
		FROM executions
		WHERE id = $1
	`

	var execution models.Execution

	err := er.db.QueryRowContext(ctx, query, id).Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.Status,
		&execution.Trigger,
		&execution.StartedAt,
		&execution.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to query execution: %w", err)
	}

	return &execution, nil
}

func (er *ExecutionRepository) CreateStep(ctx context.Context, step *models.ExecutionStep) error {
	input, output, err := encodeStepPayloads(step)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO execution_steps
			(id, execution_id, node_id, node_type, node_name, step_index, status, input, output, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = er.db.ExecContext(ctx, query,
		step.ID,
		step.ExecutionID,
		step.NodeID,
		step.NodeType,
		step.NodeName,
		step.StepIndex,
		step.Status,
		input,
		output,
		step.StartedAt,
		step.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create execution step: %w", err)
	}

	return nil
}

func (er *ExecutionRepository) UpdateStep(ctx context.Context, step *models.ExecutionStep) error {
	input, output, err := encodeStepPayloads(step)
	if err != nil {
		return err
	}

	query := `
		UPDATE execution_steps
		SET status = $2, input = $3, output = $4, started_at = $5, completed_at = $6
		WHERE id = $1
	`

	result, err := er.db.ExecContext(ctx, query,
		step.ID,
		step.Status,
		input,
		output,
		step.StartedAt,
		step.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update execution step: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrExecutionNotFound
	}

	return nil
}

func (er *ExecutionRepository) StepsByExecution(ctx context.Context, executionID string) ([]*models.ExecutionStep, error) {
	query := `
		SELECT id, execution_id, node_id, node_type, node_name, step_index, status, input, output, started_at, completed_at
		FROM execution_steps
		WHERE execution_id = $1
		ORDER BY step_index
	`

	rows, err := er.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution steps: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			er.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var steps []*models.ExecutionStep

	for rows.Next() {
		var (
			step   models.ExecutionStep
			input  []byte
			output []byte
		)

		err := rows.Scan(
			&step.ID,
			&step.ExecutionID,
			&step.NodeID,
			&step.NodeType,
			&step.NodeName,
			&step.StepIndex,
			&step.Status,
			&input,
			&output,
			&step.StartedAt,
			&step.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution step: %w", err)
		}

		if len(input) > 0 {
			if err := json.Unmarshal(input, &step.Input); err != nil {
				return nil, fmt.Errorf("failed to decode step input: %w", err)
			}
		}

		if len(output) > 0 {
			if err := json.Unmarshal(output, &step.Output); err != nil {
				return nil, fmt.Errorf("failed to decode step output: %w", err)
			}
		}

		steps = append(steps, &step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating execution steps: %w", err)
	}

	return steps, nil
}

func encodeStepPayloads(step *models.ExecutionStep) ([]byte, []byte, error) {
	var (
		input  []byte
		output []byte
		err    error
	)

	if step.Input != nil {
		if input, err = json.Marshal(step.Input); err != nil {
			return nil, nil, fmt.Errorf("failed to encode step input: %w", err)
		}
	}

	if step.Output != nil {
		if output, err = json.Marshal(step.Output); err != nil {
			return nil, nil, fmt.Errorf("failed to encode step output: %w", err)
		}
	}

	return input, output, nil
}
