package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
)

// ScheduleRepository stores recurrence policies.
type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const scheduleColumns = `id, workflow_id, node_id, mode, interval_minutes, run_time, days,
	cron_expression, timezone, enabled, is_draft, last_run_at, version, created_at, updated_at`

func (sr *ScheduleRepository) ActiveSchedules(ctx context.Context) ([]*models.Schedule, error) {
	query := `
		SELECT ` + scheduleColumns + `
		FROM schedules
		WHERE enabled AND NOT is_draft
		ORDER BY created_at
	`

	rows, err := sr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			sr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var schedules []*models.Schedule

	for rows.Next() {
		schedule, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}

		schedules = append(schedules, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

func (sr *ScheduleRepository) GetByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	schedule, err := scanSchedule(sr.db.QueryRowContext(ctx, query, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrScheduleNotFound
		}

		return nil, err
	}

	return schedule, nil
}

func (sr *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	days, err := json.Marshal(schedule.Days)
	if err != nil {
		return fmt.Errorf("failed to encode schedule days: %w", err)
	}

	query := `
		INSERT INTO schedules
			(id, workflow_id, node_id, mode, interval_minutes, run_time, days, cron_expression,
			 timezone, enabled, is_draft, last_run_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			node_id = EXCLUDED.node_id,
			mode = EXCLUDED.mode,
			interval_minutes = EXCLUDED.interval_minutes,
			run_time = EXCLUDED.run_time,
			days = EXCLUDED.days,
			cron_expression = EXCLUDED.cron_expression,
			timezone = EXCLUDED.timezone,
			enabled = EXCLUDED.enabled,
			is_draft = EXCLUDED.is_draft,
			last_run_at = EXCLUDED.last_run_at,
			version = EXCLUDED.version,
			updated_at = now()
	`

	_, err = sr.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.WorkflowID,
		schedule.NodeID,
		schedule.Mode,
		schedule.IntervalMinutes,
		schedule.Time,
		days,
		schedule.CronExpression,
		schedule.Timezone,
		schedule.Enabled,
		schedule.IsDraft,
		schedule.LastRunAt,
		schedule.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule: %w", err)
	}

	return nil
}

func (sr *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := sr.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrScheduleNotFound
	}

	return nil
}

func scanSchedule(scan func(dest ...any) error) (*models.Schedule, error) {
	var (
		schedule models.Schedule
		days     []byte
	)

	err := scan(
		&schedule.ID,
		&schedule.WorkflowID,
		&schedule.NodeID,
		&schedule.Mode,
		&schedule.IntervalMinutes,
		&schedule.Time,
		&days,
		&schedule.CronExpression,
		&schedule.Timezone,
		&schedule.Enabled,
		&schedule.IsDraft,
		&schedule.LastRunAt,
		&schedule.Version,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan schedule: %w", err)
	}

	if err := json.Unmarshal(days, &schedule.Days); err != nil {
		return nil, fmt.Errorf("failed to decode schedule days: %w", err)
	}

	return &schedule, nil
}
