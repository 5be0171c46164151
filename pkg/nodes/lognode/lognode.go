// Package lognode writes a templated message to the structured logger.
package lognode

import (
	"context"
	"log/slog"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "log"

type Executor struct {
	logger *slog.Logger
}

func (e *Executor) Execute(_ context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	message := executor.StringConfig(input, "message")
	if message == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("missing required field 'message'")
	}

	rendered := template.Render(message, input.Context)

	level := slog.LevelInfo
	if configured := executor.StringConfig(input, "level"); configured == "error" {
		level = slog.LevelError
	} else if configured == "warn" {
		level = slog.LevelWarn
	} else if configured == "debug" {
		level = slog.LevelDebug
	}

	e.logger.Log(context.Background(), level, rendered, "node_id", input.NodeID)

	input.Publish(models.NodeStatusSuccess)

	return map[string]any{
		executor.VariableName(input, ""): map[string]any{"message": rendered},
	}, nil
}

type Factory struct {
	logger *slog.Logger
}

func (f *Factory) Type() string {
	return NodeType
}

func (f *Factory) Category() models.CategoryType {
	return models.CategoryTypeAction
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message":       map[string]any{"type": "string"},
			"level":         map[string]any{"type": "string", "enum": []string{"debug", "info", "warn", "error"}},
			"variable_name": map[string]any{"type": "string"},
		},
		"required": []string{"message"},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{logger: f.logger}
}

func NewFactory(logger *slog.Logger) executor.Factory {
	return &Factory{logger: logger.With("module", "node:log")}
}
