// Package postgresql implements the persistence contract on PostgreSQL.
// Workflow graphs are stored as JSONB documents; executions, steps, the
// step log, and schedules get relational tables.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/fluxionhq/fluxion/pkg/persistence"
)

type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	workflows  *WorkflowRepository
	executions *ExecutionRepository
	stepLog    *StepLogRepository
	schedules  *ScheduleRepository
}

func NewPersistence(ctx context.Context, databaseURL string, logger *slog.Logger) (*Persistence, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	p := &Persistence{
		db:     db,
		logger: logger.With("module", "persistence:postgresql"),
	}

	if err := p.migrate(ctx); err != nil {
		return nil, err
	}

	p.workflows = &WorkflowRepository{db: db, logger: p.logger}
	p.executions = &ExecutionRepository{db: db, logger: p.logger}
	p.stepLog = &StepLogRepository{db: db}
	p.schedules = &ScheduleRepository{db: db, logger: p.logger}

	return p, nil
}

func (p *Persistence) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS workflows (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status      TEXT NOT NULL,
			owner       TEXT NOT NULL DEFAULT '',
			nodes       JSONB NOT NULL DEFAULT '[]',
			connections JSONB NOT NULL DEFAULT '[]',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id           TEXT PRIMARY KEY,
			workflow_id  TEXT NOT NULL,
			status       TEXT NOT NULL,
			trigger      TEXT NOT NULL DEFAULT '',
			started_at   TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS execution_steps (
			id           TEXT PRIMARY KEY,
			execution_id TEXT NOT NULL REFERENCES executions(id),
			node_id      TEXT NOT NULL,
			node_type    TEXT NOT NULL,
			node_name    TEXT NOT NULL,
			step_index   INTEGER NOT NULL,
			status       TEXT NOT NULL,
			input        JSONB,
			output       JSONB,
			started_at   TIMESTAMPTZ,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_execution_steps_execution
			ON execution_steps (execution_id, step_index)`,
		`CREATE TABLE IF NOT EXISTS step_log (
			execution_id TEXT NOT NULL,
			label        TEXT NOT NULL,
			output       JSONB,
			recorded_at  TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (execution_id, label)
		)`,
		`CREATE TABLE IF NOT EXISTS schedules (
			id               TEXT PRIMARY KEY,
			workflow_id      TEXT NOT NULL,
			node_id          TEXT NOT NULL,
			mode             TEXT NOT NULL,
			interval_minutes INTEGER NOT NULL DEFAULT 0,
			run_time         TEXT NOT NULL DEFAULT '',
			days             JSONB NOT NULL DEFAULT '[]',
			cron_expression  TEXT NOT NULL DEFAULT '',
			timezone         TEXT NOT NULL,
			enabled          BOOLEAN NOT NULL DEFAULT false,
			is_draft         BOOLEAN NOT NULL DEFAULT false,
			last_run_at      TIMESTAMPTZ,
			version          INTEGER NOT NULL DEFAULT 0,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, statement := range statements {
		if _, err := p.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflows
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executions
}

func (p *Persistence) StepLogRepository() persistence.StepLogRepository {
	return p.stepLog
}

func (p *Persistence) ScheduleRepository() persistence.ScheduleRepository {
	return p.schedules
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}
