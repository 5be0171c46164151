// Package aigenerate implements the text generation executor. The model
// client is a collaborator; generation runs inside a durable step so a
// retried run reuses the recorded completion instead of paying for a new
// one.
package aigenerate

import (
	"context"
	"fmt"

	"github.com/fluxionhq/fluxion/pkg/credentials"
	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "aigenerate"

// FieldAPIKey is the credential field every model credential must carry.
const FieldAPIKey = "api_key"

// GenerateRequest carries one completion request to the model provider.
type GenerateRequest struct {
	APIKey string
	Model  string
	System string
	Prompt string
}

// ModelClient talks to a text generation provider.
type ModelClient interface {
	Generate(ctx context.Context, request GenerateRequest) (string, error)
}

type Executor struct {
	resolver *credentials.Resolver
	client   ModelClient
}

func (e *Executor) Execute(ctx context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	credentialID := executor.StringConfig(input, "credential_id")
	prompt := template.Render(executor.StringConfig(input, "prompt"), input.Context)

	if credentialID == "" || prompt == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("text generation requires 'credential_id' and 'prompt'")
	}

	model := executor.StringConfig(input, "model")
	system := template.Render(executor.StringConfig(input, "system"), input.Context)

	fields, err := e.resolver.Resolve(ctx, credentialID, input.UserID, FieldAPIKey)
	if err != nil {
		input.Publish(models.NodeStatusError)

		return nil, err
	}

	output, err := input.Step.Run(ctx, "aigenerate/"+input.NodeID, func(ctx context.Context) (map[string]any, error) {
		text, err := e.client.Generate(ctx, GenerateRequest{
			APIKey: fields[FieldAPIKey],
			Model:  model,
			System: system,
			Prompt: prompt,
		})
		if err != nil {
			return nil, fmt.Errorf("generation failed: %w", err)
		}

		result := map[string]any{"text": text}
		if parsed := template.ExtractJSON(text); parsed != nil {
			result["json"] = parsed
		}

		return result, nil
	})
	if err != nil {
		input.Publish(models.NodeStatusError)

		return nil, err
	}

	input.Publish(models.NodeStatusSuccess)

	return map[string]any{
		executor.VariableName(input, ""): output,
	}, nil
}

type Factory struct {
	resolver *credentials.Resolver
	client   ModelClient
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
			"credential_id": map[string]any{"type": "string"},
			"model":         map[string]any{"type": "string"},
			"system":        map[string]any{"type": "string"},
			"prompt":        map[string]any{"type": "string"},
			"variable_name": map[string]any{"type": "string"},
		},
		"required": []string{"credential_id", "prompt"},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{resolver: f.resolver, client: f.client}
}

func NewFactory(resolver *credentials.Resolver, client ModelClient) executor.Factory {
	return &Factory{resolver: resolver, client: client}
}
