// Package branch implements the IF/ELSE decision executor. The node does
// not mutate the context; it signals which output port is active so the
// orchestrator can prune the other subtree.
package branch

import (
	"context"
	"strconv"
	"strings"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "branch"

type Executor struct{}

func (e *Executor) Execute(_ context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	condition := executor.StringConfig(input, "condition")
	if condition == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("missing required field 'condition'")
	}

	result := evaluate(condition, input.Context)

	input.Publish(models.NodeStatusSuccess)

	return map[string]any{
		executor.VariableName(input, ""): map[string]any{
			"condition_result": result,
		},
	}, nil
}

// ActivePort routes traversal to "true" or "false" based on the stored
// condition result.
func (e *Executor) ActivePort(output map[string]any) string {
	for _, fragment := range output {
		if data, ok := fragment.(map[string]any); ok {
			if result, ok := data["condition_result"].(bool); ok && result {
				return models.PortTrue
			}
		}
	}

	return models.PortFalse
}

// evaluate renders the templated expression and reduces it to a boolean.
// Simple equality comparisons ("a === b", "a == b", "a !== b", "a != b")
// are supported; anything else falls back to truthiness of the rendered
// value.
func evaluate(condition string, context map[string]any) bool {
	for _, op := range []string{"!==", "===", "!=", "=="} {
		left, right, found := strings.Cut(condition, op)
		if !found {
			continue
		}

		leftValue := template.RenderValue(strings.TrimSpace(left), context)
		rightValue := template.RenderValue(strings.TrimSpace(right), context)

		equal := equalValues(leftValue, rightValue)

		if op == "!=" || op == "!==" {
			return !equal
		}

		return equal
	}

	return truthy(template.RenderValue(condition, context))
}

func equalValues(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}

	return normalize(a) == normalize(b)
}

func normalize(v any) string {
	switch value := v.(type) {
	case string:
		return strings.Trim(value, `"'`)
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}

func asFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case int:
		return float64(value), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func truthy(v any) bool {
	switch value := v.(type) {
	case bool:
		return value
	case string:
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}

		return value != ""
	case float64:
		return value != 0
	case int:
		return value != 0
	case []any:
		return len(value) > 0
	case map[string]any:
		return len(value) > 0
	default:
		return false
	}
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
			"condition": map[string]any{
				"type":        "string",
				"description": "Boolean expression templated against the context, e.g. {{trigger.x}} === 1.",
			},
			"variable_name": map[string]any{"type": "string"},
		},
		"required": []string{"condition"},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{}
}

func NewFactory() executor.Factory {
	return &Factory{}
}
