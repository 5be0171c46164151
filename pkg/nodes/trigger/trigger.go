// Package trigger implements the workflow entry-point executors. Trigger
// nodes perform no side effects: they validate minimal metadata and echo
// the incoming payload into the context as the run's seed.
package trigger

import (
	"context"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
)

// Executor echoes the triggering payload into the context, under
// "trigger" unless the node config names another key.
type Executor struct{}

func (e *Executor) Execute(_ context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	if input.NodeID == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("trigger node is missing an id")
	}

	seed := input.Seed
	if seed == nil {
		seed = map[string]any{}
	}

	input.Publish(models.NodeStatusSuccess)

	return map[string]any{executor.VariableName(input, "trigger"): seed}, nil
}

// Factory registers one trigger node type.
type Factory struct {
	nodeType string
}

func (f *Factory) Type() string {
	return f.nodeType
}

func (f *Factory) Category() models.CategoryType {
	return models.CategoryTypeTrigger
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"variable_name": map[string]any{
				"type":        "string",
				"description": "Context key the seed payload is stored under. Defaults to \"trigger\".",
			},
		},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{}
}

func NewManualFactory() executor.Factory {
	return &Factory{nodeType: models.NodeTypeTriggerManual}
}

func NewWebhookFactory() executor.Factory {
	return &Factory{nodeType: models.NodeTypeTriggerWebhook}
}

func NewScheduleFactory() executor.Factory {
	return &Factory{nodeType: models.NodeTypeTriggerSchedule}
}

func NewPaymentFactory() executor.Factory {
	return &Factory{nodeType: models.NodeTypeTriggerPayment}
}
