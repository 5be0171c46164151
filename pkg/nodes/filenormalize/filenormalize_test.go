package filenormalize

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
)

func run(t *testing.T, source string, execContext map[string]any) (map[string]any, error) {
	t.Helper()

	exec := &Executor{}

	return exec.Execute(context.Background(), executor.Input{
		NodeID:  "file-1",
		Data:    map[string]any{"source": source, "variable_name": "file"},
		Context: execContext,
		Publish: func(models.NodeStatus) {},
	})
}

func descriptor(t *testing.T, output map[string]any) map[string]any {
	t.Helper()

	result, ok := output["file"].(map[string]any)
	require.True(t, ok)

	return result
}

func TestExecute_JSONDescriptorWithInlineData(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("hello"))

	output, err := run(t, `{"name":"greeting.txt","mime":"text/plain","data":"`+payload+`"}`, nil)
	require.NoError(t, err)

	file := descriptor(t, output)
	assert.Equal(t, KindInline, file["kind"])
	assert.Equal(t, "greeting.txt", file["name"])
	assert.Equal(t, 5, file["size"])
}

func TestExecute_DataURL(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("pixels"))

	output, err := run(t, "data:image/png;base64,"+payload, nil)
	require.NoError(t, err)

	file := descriptor(t, output)
	assert.Equal(t, KindInline, file["kind"])
	assert.Equal(t, "image/png", file["mime"])
	assert.Equal(t, 6, file["size"])
}

func TestExecute_PlainURL(t *testing.T) {
	output, err := run(t, "https://example.com/report.pdf", nil)
	require.NoError(t, err)

	file := descriptor(t, output)
	assert.Equal(t, KindURL, file["kind"])
	assert.Equal(t, "https://example.com/report.pdf", file["url"])
}

func TestExecute_TemplatedSource(t *testing.T) {
	output, err := run(t, "{{upload.url}}", map[string]any{
		"upload": map[string]any{"url": "https://example.com/a.csv"},
	})
	require.NoError(t, err)

	file := descriptor(t, output)
	assert.Equal(t, KindURL, file["kind"])
}

func TestExecute_UnsupportedInputIsTerminal(t *testing.T) {
	_, err := run(t, "just some words", nil)
	require.Error(t, err)
	assert.True(t, flowerr.IsNonRetriable(err))
}

func TestExecute_InvalidBase64Rejected(t *testing.T) {
	_, err := run(t, "data:image/png;base64,!!!not-base64!!!", nil)
	require.Error(t, err)
	assert.True(t, flowerr.IsNonRetriable(err))
}
