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

// WorkflowRepository stores workflow graphs with nodes and connections as
// JSONB documents.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (wr *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT id, name, description, status, owner, nodes, connections, created_at, updated_at
		FROM workflows
		WHERE id = $1
	`

	var (
		workflow      models.Workflow
		rawNodes      []byte
		rawConnection []byte
	)

	err := wr.db.QueryRowContext(ctx, query, id).Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&workflow.Status,
		&workflow.Owner,
		&rawNodes,
		&rawConnection,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to query workflow: %w", err)
	}

	if err := json.Unmarshal(rawNodes, &workflow.Nodes); err != nil {
		return nil, fmt.Errorf("failed to decode workflow nodes: %w", err)
	}

	if err := json.Unmarshal(rawConnection, &workflow.Connections); err != nil {
		return nil, fmt.Errorf("failed to decode workflow connections: %w", err)
	}

	return &workflow, nil
}

func (wr *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	nodes, err := json.Marshal(workflow.Nodes)
	if err != nil {
		return fmt.Errorf("failed to encode workflow nodes: %w", err)
	}

	connections, err := json.Marshal(workflow.Connections)
	if err != nil {
		return fmt.Errorf("failed to encode workflow connections: %w", err)
	}

	query := `
		INSERT INTO workflows (id, name, description, status, owner, nodes, connections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			status = EXCLUDED.status,
			owner = EXCLUDED.owner,
			nodes = EXCLUDED.nodes,
			connections = EXCLUDED.connections,
			updated_at = now()
	`

	_, err = wr.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		workflow.Status,
		workflow.Owner,
		nodes,
		connections,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

func (wr *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT id, name, description, status, owner, nodes, connections, created_at, updated_at
		FROM workflows
		ORDER BY created_at
	`

	rows, err := wr.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			wr.logger.ErrorContext(ctx, "failed to close rows", "error", closeErr)
		}
	}()

	var workflows []*models.Workflow

	for rows.Next() {
		var (
			workflow      models.Workflow
			rawNodes      []byte
			rawConnection []byte
		)

		err := rows.Scan(
			&workflow.ID,
			&workflow.Name,
			&workflow.Description,
			&workflow.Status,
			&workflow.Owner,
			&rawNodes,
			&rawConnection,
			&workflow.CreatedAt,
			&workflow.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		if err := json.Unmarshal(rawNodes, &workflow.Nodes); err != nil {
			return nil, fmt.Errorf("failed to decode workflow nodes: %w", err)
		}

		if err := json.Unmarshal(rawConnection, &workflow.Connections); err != nil {
			return nil, fmt.Errorf("failed to decode workflow connections: %w", err)
		}

		workflows = append(workflows, &workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (wr *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := wr.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}
