// Package filenormalize turns heterogeneous file references into one
// uniform descriptor. It distinguishes JSON-described files, base64 data
// URLs, and plain URLs; the first structurally valid interpretation wins.
package filenormalize

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "filenormalize"

// Descriptor kinds.
const (
	KindInline = "inline" // base64 content carried in the descriptor
	KindURL    = "url"    // content lives behind a URL
)

type Executor struct{}

func (e *Executor) Execute(_ context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	source := executor.StringConfig(input, "source")
	if source == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("missing required field 'source'")
	}

	rendered := strings.TrimSpace(template.Render(source, input.Context))

	descriptor, ok := normalize(rendered)
	if !ok {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("unsupported file input: expected a JSON file descriptor, data URL, or plain URL")
	}

	input.Publish(models.NodeStatusSuccess)

	return map[string]any{
		executor.VariableName(input, ""): descriptor,
	}, nil
}

func normalize(raw string) (map[string]any, bool) {
	if descriptor, ok := fromJSONDescriptor(raw); ok {
		return descriptor, true
	}

	if descriptor, ok := fromDataURL(raw); ok {
		return descriptor, true
	}

	if descriptor, ok := fromPlainURL(raw); ok {
		return descriptor, true
	}

	return nil, false
}

// fromJSONDescriptor accepts {"name": ..., "mime": ..., "data"|"url": ...}.
func fromJSONDescriptor(raw string) (map[string]any, bool) {
	parsed, ok := template.ExtractJSON(raw).(map[string]any)
	if !ok {
		return nil, false
	}

	name, _ := parsed["name"].(string)
	mime, _ := parsed["mime"].(string)

	if data, ok := parsed["data"].(string); ok && data != "" {
		decoded, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, false
		}

		return map[string]any{
			"kind": KindInline,
			"name": name,
			"mime": mime,
			"data": data,
			"size": len(decoded),
		}, true
	}

	if fileURL, ok := parsed["url"].(string); ok && isHTTPURL(fileURL) {
		return map[string]any{
			"kind": KindURL,
			"name": name,
			"mime": mime,
			"url":  fileURL,
		}, true
	}

	return nil, false
}

// fromDataURL accepts "data:<mime>;base64,<payload>".
func fromDataURL(raw string) (map[string]any, bool) {
	if !strings.HasPrefix(raw, "data:") {
		return nil, false
	}

	meta, payload, found := strings.Cut(strings.TrimPrefix(raw, "data:"), ",")
	if !found || !strings.HasSuffix(meta, ";base64") {
		return nil, false
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}

	return map[string]any{
		"kind": KindInline,
		"mime": strings.TrimSuffix(meta, ";base64"),
		"data": payload,
		"size": len(decoded),
	}, true
}

func fromPlainURL(raw string) (map[string]any, bool) {
	if !isHTTPURL(raw) {
		return nil, false
	}

	return map[string]any{
		"kind": KindURL,
		"url":  raw,
	}, true
}

func isHTTPURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
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
