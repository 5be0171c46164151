// Package transform renders a templated expression against the context
// and stores the result under the node's variable name.
package transform

import (
	"context"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "transform"

type Executor struct{}

func (e *Executor) Execute(_ context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	expression := executor.StringConfig(input, "expression")
	if expression == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("missing required field 'expression'")
	}

	result := template.RenderValue(expression, input.Context)

	input.Publish(models.NodeStatusSuccess)

	return map[string]any{
		executor.VariableName(input, ""): result,
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
			"expression":    map[string]any{"type": "string"},
			"variable_name": map[string]any{"type": "string"},
		},
		"required": []string{"expression"},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{}
}

func NewFactory() executor.Factory {
	return &Factory{}
}
