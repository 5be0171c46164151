package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleMode selects how a schedule's recurrence policy is interpreted.
type ScheduleMode string

const (
	ScheduleModeInterval ScheduleMode = "interval"
	ScheduleModeDaily    ScheduleMode = "daily"
	ScheduleModeWeekly   ScheduleMode = "weekly"
	ScheduleModeCron     ScheduleMode = "cron"
)

// ErrInvalidSchedule is returned when schedule validation fails.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

// Schedule is a stored recurrence policy that autonomously enqueues
// workflow runs. Version increments on each (re)activation and is attached
// to enqueued run requests so stale, superseded schedule-run messages can
// be discarded by consumers.
type Schedule struct {
	ID              string       `json:"id"          validate:"required"`
	WorkflowID      string       `json:"workflow_id" validate:"required"`
	NodeID          string       `json:"node_id"     validate:"required"`
	Mode            ScheduleMode `json:"mode"        validate:"required"`
	IntervalMinutes int          `json:"interval_minutes,omitempty"`
	Time            string       `json:"time,omitempty"` // "HH:mm" local to Timezone
	Days            []int        `json:"days,omitempty"` // weekday indices, Sunday=0
	CronExpression  string       `json:"cron_expression,omitempty"`
	Timezone        string       `json:"timezone"    validate:"required"`
	Enabled         bool         `json:"enabled"`
	IsDraft         bool         `json:"is_draft"`
	LastRunAt       *time.Time   `json:"last_run_at,omitempty"`
	Version         int          `json:"version"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks the per-mode required fields.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" || s.NodeID == "" {
		return ErrInvalidSchedule
	}

	if s.Timezone == "" {
		return fmt.Errorf("%w: missing timezone", ErrInvalidSchedule)
	}

	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidSchedule, s.Timezone)
	}

	switch s.Mode {
	case ScheduleModeInterval:
		if s.IntervalMinutes <= 0 {
			return fmt.Errorf("%w: interval mode requires a positive interval", ErrInvalidSchedule)
		}
	case ScheduleModeDaily:
		if s.Time == "" {
			return fmt.Errorf("%w: daily mode requires a time", ErrInvalidSchedule)
		}
	case ScheduleModeWeekly:
		if s.Time == "" {
			return fmt.Errorf("%w: weekly mode requires a time", ErrInvalidSchedule)
		}

		if len(s.Days) == 0 {
			return fmt.Errorf("%w: weekly mode requires at least one day", ErrInvalidSchedule)
		}
	case ScheduleModeCron:
		if _, err := cronParser.Parse(s.CronExpression); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	default:
		return fmt.Errorf("%w: missing mode", ErrInvalidSchedule)
	}

	return nil
}

// ShouldRunNow decides whether the schedule is due at the given instant.
// The daily/weekly date comparison against LastRunAt guards against
// re-firing on every evaluator tick within the same matching minute.
func (s *Schedule) ShouldRunNow(now time.Time) (bool, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return false, fmt.Errorf("failed to load timezone %q: %w", s.Timezone, err)
	}

	local := now.In(loc)

	switch s.Mode {
	case ScheduleModeInterval:
		if s.LastRunAt == nil {
			return true, nil
		}

		elapsed := int(now.Sub(*s.LastRunAt).Minutes())

		return elapsed >= s.IntervalMinutes, nil
	case ScheduleModeDaily:
		return s.timeMatches(local), nil
	case ScheduleModeWeekly:
		if !s.dayMatches(local) {
			return false, nil
		}

		return s.timeMatches(local), nil
	case ScheduleModeCron:
		return s.cronMatches(local)
	default:
		return false, fmt.Errorf("%w: unknown mode %q", ErrInvalidSchedule, s.Mode)
	}
}

// NextRunAfter computes the next eligible run time strictly after the given
// instant, used by activation to pre-enqueue a single future-timed run.
func (s *Schedule) NextRunAfter(now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load timezone %q: %w", s.Timezone, err)
	}

	local := now.In(loc)

	switch s.Mode {
	case ScheduleModeInterval:
		return now.Add(time.Duration(s.IntervalMinutes) * time.Minute), nil
	case ScheduleModeDaily, ScheduleModeWeekly:
		hour, minute, err := parseClock(s.Time)
		if err != nil {
			return time.Time{}, err
		}

		candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
		for !candidate.After(local) || (s.Mode == ScheduleModeWeekly && !s.dayMatches(candidate)) {
			candidate = candidate.AddDate(0, 0, 1)
			candidate = time.Date(candidate.Year(), candidate.Month(), candidate.Day(), hour, minute, 0, 0, loc)
		}

		return candidate.UTC(), nil
	case ScheduleModeCron:
		cronSchedule, err := cronParser.Parse(s.CronExpression)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}

		return cronSchedule.Next(local).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidSchedule, s.Mode)
	}
}

// timeMatches reports whether the local clock reads the configured "HH:mm"
// and no run has been recorded for the same local calendar date.
func (s *Schedule) timeMatches(local time.Time) bool {
	if local.Format("15:04") != s.Time {
		return false
	}

	if s.LastRunAt == nil {
		return true
	}

	last := s.LastRunAt.In(local.Location())

	return last.Format("2006-01-02") != local.Format("2006-01-02")
}

func (s *Schedule) dayMatches(local time.Time) bool {
	weekday := int(local.Weekday())
	for _, day := range s.Days {
		if day == weekday {
			return true
		}
	}

	return false
}

// cronMatches checks whether the current minute is a cron firing minute,
// reusing the same per-date guard as daily mode for idempotence within the
// matching minute.
func (s *Schedule) cronMatches(local time.Time) (bool, error) {
	cronSchedule, err := cronParser.Parse(s.CronExpression)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}

	minute := local.Truncate(time.Minute)
	next := cronSchedule.Next(minute.Add(-time.Second))

	if !next.Equal(minute) {
		return false, nil
	}

	if s.LastRunAt != nil && !s.LastRunAt.Before(minute) {
		return false, nil
	}

	return true, nil
}

func parseClock(value string) (int, int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: time must be HH:mm, got %q", ErrInvalidSchedule, value)
	}

	return parsed.Hour(), parsed.Minute(), nil
}
