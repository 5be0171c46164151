// Package httprequest implements the document fetch executor. The network
// call runs inside a durable step so a retried run does not repeat it.
package httprequest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/template"
)

const NodeType = "httprequest"

const maxResponseBytes = 10 << 20 // 10 MiB cap on captured response bodies

type Executor struct {
	client *http.Client
}

func (e *Executor) Execute(ctx context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	rawURL := executor.StringConfig(input, "url")
	if rawURL == "" {
		input.Publish(models.NodeStatusError)

		return nil, flowerr.Configuration("missing required field 'url'")
	}

	method := strings.ToUpper(executor.StringConfig(input, "method"))
	if method == "" {
		method = http.MethodGet
	}

	targetURL := template.Render(rawURL, input.Context)
	body := template.Render(executor.StringConfig(input, "body"), input.Context)

	headers := map[string]string{}
	if configured, ok := input.Data["headers"].(map[string]any); ok {
		for key, value := range configured {
			if str, ok := value.(string); ok {
				headers[key] = template.Render(str, input.Context)
			}
		}
	}

	output, err := input.Step.Run(ctx, "httprequest/"+input.NodeID, func(ctx context.Context) (map[string]any, error) {
		return e.perform(ctx, method, targetURL, body, headers)
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

// perform issues the request. Responses with 5xx status propagate as
// transient errors so the step retry applies; 4xx is a configuration
// problem and terminal.
func (e *Executor) perform(ctx context.Context, method, targetURL, body string, headers map[string]string) (map[string]any, error) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, method, targetURL, reader)
	if err != nil {
		return nil, flowerr.NonRetriable(fmt.Errorf("invalid request: %w", err))
	}

	for key, value := range headers {
		request.Header.Set(key, value)
	}

	response, err := e.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", targetURL, err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", targetURL, err)
	}

	if response.StatusCode >= 500 {
		return nil, fmt.Errorf("upstream returned %d", response.StatusCode)
	}

	if response.StatusCode >= 400 {
		return nil, flowerr.Configuration("upstream returned %d for %s", response.StatusCode, targetURL)
	}

	result := map[string]any{
		"status_code": response.StatusCode,
		"body":        string(payload),
		"mime":        response.Header.Get("Content-Type"),
	}

	if parsed := template.ExtractJSON(string(payload)); parsed != nil {
		result["json"] = parsed
	}

	return result, nil
}

type Factory struct {
	client *http.Client
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
			"url":           map[string]any{"type": "string"},
			"method":        map[string]any{"type": "string", "enum": []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"}},
			"body":          map[string]any{"type": "string"},
			"headers":       map[string]any{"type": "object"},
			"variable_name": map[string]any{"type": "string"},
		},
		"required": []string{"url"},
	}
}

func (f *Factory) New() executor.Executor {
	client := f.client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Executor{client: client}
}

// NewFactory builds the factory with the default HTTP client.
func NewFactory() executor.Factory {
	return &Factory{}
}

// NewFactoryWithClient injects the HTTP client, used by tests.
func NewFactoryWithClient(client *http.Client) executor.Factory {
	return &Factory{client: client}
}
