package steplog

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/models"
)

type memoryStepLog struct {
	records map[string]*models.StepResult
}

func newMemoryStepLog() *memoryStepLog {
	return &memoryStepLog{records: make(map[string]*models.StepResult)}
}

func (m *memoryStepLog) Get(_ context.Context, executionID, label string) (*models.StepResult, error) {
	return m.records[executionID+"/"+label], nil
}

func (m *memoryStepLog) Put(_ context.Context, result *models.StepResult) error {
	m.records[result.ExecutionID+"/"+result.Label] = result

	return nil
}

func TestRun_MemoizesAcrossResume(t *testing.T) {
	log := newMemoryStepLog()
	counter := 0

	work := func(_ context.Context) (map[string]any, error) {
		counter++

		return map[string]any{"attempt": counter}, nil
	}

	first := NewRunner("exec-1", log, slog.Default())
	output, err := first.Run(context.Background(), "send-message", work)
	require.NoError(t, err)
	assert.Equal(t, 1, output["attempt"])

	// A resumed run builds a fresh runner over the same log; the side
	// effect must not repeat.
	resumed := NewRunner("exec-1", log, slog.Default())
	output, err = resumed.Run(context.Background(), "send-message", work)
	require.NoError(t, err)
	assert.Equal(t, 1, counter)
	assert.Equal(t, float64(1), toFloat(output["attempt"]))
}

func TestRun_DistinctLabelsRunIndependently(t *testing.T) {
	log := newMemoryStepLog()
	counter := 0

	runner := NewRunner("exec-1", log, slog.Default())

	work := func(_ context.Context) (map[string]any, error) {
		counter++

		return map[string]any{}, nil
	}

	_, err := runner.Run(context.Background(), "first", work)
	require.NoError(t, err)
	_, err = runner.Run(context.Background(), "second", work)
	require.NoError(t, err)

	assert.Equal(t, 2, counter)
}

func TestRun_FailureIsNotRecorded(t *testing.T) {
	log := newMemoryStepLog()
	counter := 0

	runner := NewRunner("exec-1", log, slog.Default())

	_, err := runner.Run(context.Background(), "flaky", func(_ context.Context) (map[string]any, error) {
		counter++

		if counter == 1 {
			return nil, errors.New("upstream timeout")
		}

		return map[string]any{"ok": true}, nil
	})
	require.Error(t, err)

	output, err := runner.Run(context.Background(), "flaky", func(_ context.Context) (map[string]any, error) {
		counter++

		return map[string]any{"ok": true}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, true, output["ok"])
	assert.Equal(t, 2, counter)
}

func toFloat(v any) float64 {
	switch value := v.(type) {
	case int:
		return float64(value)
	case float64:
		return value
	default:
		return -1
	}
}
