package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// StepLogRepository is the append-only durable step log. The primary key
// on (execution_id, label) makes concurrent duplicate records impossible;
// ON CONFLICT DO NOTHING keeps the first recorded result.
type StepLogRepository struct {
	db *sql.DB
}

func (sr *StepLogRepository) Get(ctx context.Context, executionID, label string) (*models.StepResult, error) {
	query := `
		SELECT execution_id, label, output, recorded_at
		FROM step_log
		WHERE execution_id = $1 AND label = $2
	`

	var (
		result models.StepResult
		output []byte
	)

	err := sr.db.QueryRowContext(ctx, query, executionID, label).Scan(
		&result.ExecutionID,
		&result.Label,
		&output,
		&result.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query step log: %w", err)
	}

	if len(output) > 0 {
		if err := json.Unmarshal(output, &result.Output); err != nil {
			return nil, fmt.Errorf("failed to decode step result: %w", err)
		}
	}

	return &result, nil
}

func (sr *StepLogRepository) Put(ctx context.Context, result *models.StepResult) error {
	output, err := json.Marshal(result.Output)
	if err != nil {
		return fmt.Errorf("failed to encode step result: %w", err)
	}

	query := `
		INSERT INTO step_log (execution_id, label, output, recorded_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (execution_id, label) DO NOTHING
	`

	_, err = sr.db.ExecContext(ctx, query,
		result.ExecutionID,
		result.Label,
		output,
		result.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record step result: %w", err)
	}

	return nil
}
