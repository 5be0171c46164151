// Package scheduleconfig implements the schedule declaration executor. It
// validates the recurrence settings a schedule trigger carries; the
// scheduler process reads the same settings when deciding when to fire.
package scheduleconfig

import (
	"context"
	"time"

	"github.com/fluxionhq/fluxion/pkg/executor"
	"github.com/fluxionhq/fluxion/pkg/flowerr"
	"github.com/fluxionhq/fluxion/pkg/models"
)

const NodeType = "scheduleconfig"

type Executor struct{}

func (e *Executor) Execute(_ context.Context, input executor.Input) (map[string]any, error) {
	input.Publish(models.NodeStatusLoading)

	if err := validate(input.Data); err != nil {
		input.Publish(models.NodeStatusError)

		return nil, err
	}

	input.Publish(models.NodeStatusSuccess)

	return map[string]any{}, nil
}

func validate(config map[string]any) error {
	mode, _ := config["mode"].(string)
	if mode == "" {
		return flowerr.Configuration("schedule requires 'mode'")
	}

	timezone, _ := config["timezone"].(string)
	if timezone == "" {
		return flowerr.Configuration("schedule requires 'timezone'")
	}

	if _, err := time.LoadLocation(timezone); err != nil {
		return flowerr.Configuration("unknown timezone %q", timezone)
	}

	switch models.ScheduleMode(mode) {
	case models.ScheduleModeInterval:
		minutes, ok := numeric(config["interval_minutes"])
		if !ok || minutes <= 0 {
			return flowerr.Configuration("interval schedule requires positive 'interval_minutes'")
		}
	case models.ScheduleModeDaily:
		if at, _ := config["time"].(string); at == "" {
			return flowerr.Configuration("daily schedule requires 'time'")
		}
	case models.ScheduleModeWeekly:
		if at, _ := config["time"].(string); at == "" {
			return flowerr.Configuration("weekly schedule requires 'time'")
		}

		days, _ := config["days"].([]any)
		if len(days) == 0 {
			return flowerr.Configuration("weekly schedule requires at least one day")
		}
	case models.ScheduleModeCron:
		if expr, _ := config["cron"].(string); expr == "" {
			return flowerr.Configuration("cron schedule requires 'cron'")
		}
	default:
		return flowerr.Configuration("unknown schedule mode %q", mode)
	}

	return nil
}

func numeric(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
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
			"mode":             map[string]any{"type": "string", "enum": []string{"interval", "daily", "weekly", "cron"}},
			"timezone":         map[string]any{"type": "string"},
			"interval_minutes": map[string]any{"type": "number"},
			"time":             map[string]any{"type": "string"},
			"days":             map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
			"cron":             map[string]any{"type": "string"},
		},
		"required": []string{"mode", "timezone"},
	}
}

func (f *Factory) New() executor.Executor {
	return &Executor{}
}

func NewFactory() executor.Factory {
	return &Factory{}
}
