// Package chatsend implements the chat message executor. The platform
// client is a collaborator; the send runs inside a durable step so a
// retried run never posts the message twice.
package chatsend

import (
	"context"
	"fmt"

	"github.com/fluxionhq/fluxion/pkg/credentials"
	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "chatsend"

// FieldToken is the credential field every chat credential must carry.
const FieldToken = "token"

// Sender posts one message to a chat platform.
type Sender interface {
	Send(ctx context.Context, token, channel, message string) (messageID string, err error)
}

type Executor struct {
	resolver *credentials.Resolver
	sender   Sender
}

func (e *Executor) Execute(ctx context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	credentialID := executor.StringConfig(input, "credential_id")
	channel := template.Render(executor.StringConfig(input, "channel"), input.Context)
	message := template.Render(executor.StringConfig(input, "message"), input.Context)

	if credentialID == "" || channel == "" || message == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("chat send requires 'credential_id', 'channel', and 'message'")
	}

	fields, err := e.resolver.Resolve(ctx, credentialID, input.UserID, FieldToken)
	if err != nil {
		input.Publish(models.NodeStatusError)

		return nil, err
	}

	output, err := input.Step.Run(ctx, "chatsend/"+input.NodeID, func(ctx context.Context) (map[string]any, error) {
		messageID, err := e.sender.Send(ctx, fields[FieldToken], channel, message)
		if err != nil {
			return nil, fmt.Errorf("failed to send message to %s: %w", channel, err)
		}

		return map[string]any{
			"message_id": messageID,
			"channel":    channel,
		}, nil
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
	sender   Sender
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
			"channel":       map[string]any{"type": "string"},
			"message":       map[string]any{"type": "string"},
			"variable_name": map[string]any{"type": "string"},
		},
		"required": []string{"credential_id", "channel", "message"},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{resolver: f.resolver, sender: f.sender}
}

func NewFactory(resolver *credentials.Resolver, sender Sender) executor.Factory {
	return &Factory{resolver: resolver, sender: sender}
}
