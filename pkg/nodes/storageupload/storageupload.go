// Package storageupload implements the object-storage upload executor.
// Credentials are resolved and validated before any network activity; the
// upload itself runs inside a durable step.
package storageupload

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/fluxionhq/fluxion/pkg/credentials"
	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "storageupload"

// Credential fields every storage credential must carry.
const (
	FieldAccessKeyID     = "access_key_id"
	FieldSecretAccessKey = "secret_access_key"
	FieldEndpoint        = "endpoint"
)

// UploadRequest carries everything the provider client needs for one put.
type UploadRequest struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Key             string
	Mime            string
	Data            []byte
}

// UploadResult is what the provider client reports back.
type UploadResult struct {
	URL  string
	Size int
}

// Uploader is the provider collaborator; concrete S3-compatible clients
// live outside the engine.
type Uploader interface {
	Upload(ctx context.Context, request UploadRequest) (*UploadResult, error)
}

type Executor struct {
	resolver *credentials.Resolver
	uploader Uploader
}

func (e *Executor) Execute(ctx context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	credentialID := executor.StringConfig(input, "credential_id")
	bucket := template.Render(executor.StringConfig(input, "bucket"), input.Context)
	key := template.Render(executor.StringConfig(input, "key"), input.Context)

	if credentialID == "" || bucket == "" || key == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("storage upload requires 'credential_id', 'bucket', and 'key'")
	}

	data, mime, err := resolveContent(input)
	if err != nil {
		input.Publish(models.NodeStatusError)

		return nil, err
	}

	fields, err := e.resolver.Resolve(ctx, credentialID, input.UserID,
		FieldAccessKeyID, FieldSecretAccessKey, FieldEndpoint)
	if err != nil {
		input.Publish(models.NodeStatusError)

		return nil, err
	}

	output, err := input.Step.Run(ctx, "storageupload/"+input.NodeID, func(ctx context.Context) (map[string]any, error) {
		result, err := e.uploader.Upload(ctx, UploadRequest{
			Endpoint:        fields[FieldEndpoint],
			AccessKeyID:     fields[FieldAccessKeyID],
			SecretAccessKey: fields[FieldSecretAccessKey],
			Bucket:          bucket,
			Key:             key,
			Mime:            mime,
			Data:            data,
		})
		if err != nil {
			return nil, fmt.Errorf("upload to %s/%s failed: %w", bucket, key, err)
		}

		return map[string]any{
			"provider": "s3",
			"bucket":   bucket,
			"key":      key,
			"mime":     mime,
			"size":     result.Size,
			"url":      result.URL,
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

// resolveContent extracts the upload payload from the templated source.
// Accepts an inline descriptor produced by the file normalization node or
// a plain string body.
func resolveContent(input executor.Input) ([]byte, string, error) {
	source := executor.StringConfig(input, "source")
	if source == "" {
		return nil, "", flowerr.Configuration("storage upload requires 'source'")
	}

	value := template.RenderValue(source, input.Context)

	switch content := value.(type) {
	case map[string]any:
		encoded, _ := content["data"].(string)
		if encoded == "" {
			return nil, "", flowerr.Configuration("file descriptor has no inline data to upload")
		}

		decoded, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", flowerr.NonRetriable(fmt.Errorf("file descriptor data is not base64: %w", err))
		}

		mime, _ := content["mime"].(string)

		return decoded, mime, nil
	case string:
		if content == "" {
			return nil, "", flowerr.Configuration("upload source resolved to empty content")
		}

		return []byte(content), "application/octet-stream", nil
	default:
		return nil, "", flowerr.Configuration("unsupported upload source type %T", value)
	}
}

type Factory struct {
	resolver *credentials.Resolver
	uploader Uploader
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
			"bucket":        map[string]any{"type": "string"},
			"key":           map[string]any{"type": "string"},
			"source":        map[string]any{"type": "string"},
			"variable_name": map[string]any{"type": "string"},
		},
		"required": []string{"credential_id", "bucket", "key", "source"},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{resolver: f.resolver, uploader: f.uploader}
}

func NewFactory(resolver *credentials.Resolver, uploader Uploader) executor.Factory {
	return &Factory{resolver: resolver, uploader: uploader}
}
