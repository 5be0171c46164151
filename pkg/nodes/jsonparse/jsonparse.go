// Package jsonparse interprets a templated string as structured JSON,
// tolerating model output wrapped in Markdown code fences.
package jsonparse

import (
	"context"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "jsonparse"

type Executor struct{}

func (e *Executor) Execute(_ context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	source := executor.StringConfig(input, "source")
	if source == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("missing required field 'source'")
	}

	rendered := template.Render(source, input.Context)

	parsed := template.ExtractJSON(rendered)
	if parsed == nil {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("input is not valid JSON")
	}

	input.Publish(models.NodeStatusSuccess)

	return map[string]any{
		executor.VariableName(input, ""): parsed,
	}, nil
}

type Factory struct{}

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
			"source":        map[string]any{"type": "string"},
			"variable_name": map[string]any{"type": "string"},
		},
		"required": []string{"source"},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{}
}

func NewFactory() executor.Factory {
	return &Factory{}
}
