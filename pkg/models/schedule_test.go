package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchedule(mode ScheduleMode) *Schedule {
	s := &Schedule{
		ID:         "sched-1",
		WorkflowID: "wf-1",
		NodeID:     "trigger-1",
		Mode:       mode,
		Timezone:   "UTC",
		Enabled:    true,
	}

	switch mode {
	case ScheduleModeInterval:
		s.IntervalMinutes = 15
	case ScheduleModeDaily:
		s.Time = "09:00"
	case ScheduleModeWeekly:
		s.Time = "09:00"
		s.Days = []int{1}
	case ScheduleModeCron:
		s.CronExpression = "*/5 * * * *"
	}

	return s
}

func TestValidate(t *testing.T) {
	for _, mode := range []ScheduleMode{ScheduleModeInterval, ScheduleModeDaily, ScheduleModeWeekly, ScheduleModeCron} {
		assert.NoError(t, validSchedule(mode).Validate(), string(mode))
	}

	broken := validSchedule(ScheduleModeInterval)
	broken.IntervalMinutes = 0
	assert.ErrorIs(t, broken.Validate(), ErrInvalidSchedule)

	broken = validSchedule(ScheduleModeWeekly)
	broken.Days = nil
	assert.ErrorIs(t, broken.Validate(), ErrInvalidSchedule)

	broken = validSchedule(ScheduleModeDaily)
	broken.Timezone = "Mars/Olympus"
	assert.ErrorIs(t, broken.Validate(), ErrInvalidSchedule)

	broken = validSchedule(ScheduleModeCron)
	broken.CronExpression = "not a cron"
	assert.ErrorIs(t, broken.Validate(), ErrInvalidSchedule)
}

func TestShouldRunNow_Interval(t *testing.T) {
	s := validSchedule(ScheduleModeInterval)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	due, err := s.ShouldRunNow(now)
	require.NoError(t, err)
	assert.True(t, due, "never-run interval schedules fire immediately")

	last := now.Add(-10 * time.Minute)
	s.LastRunAt = &last

	due, err = s.ShouldRunNow(now)
	require.NoError(t, err)
	assert.False(t, due)

	last = now.Add(-15 * time.Minute)
	s.LastRunAt = &last

	due, err = s.ShouldRunNow(now)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestShouldRunNow_DailyMatchesWholeMinuteOncePerDate(t *testing.T) {
	s := validSchedule(ScheduleModeDaily)

	match := time.Date(2026, 3, 10, 9, 0, 45, 0, time.UTC)

	due, err := s.ShouldRunNow(match)
	require.NoError(t, err)
	assert.True(t, due)

	due, err = s.ShouldRunNow(match.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, due, "09:01 is outside the scheduled minute, even with no run recorded")

	ranAt := time.Date(2026, 3, 10, 9, 0, 10, 0, time.UTC)
	s.LastRunAt = &ranAt

	due, err = s.ShouldRunNow(match)
	require.NoError(t, err)
	assert.False(t, due, "a second evaluation inside the matching minute must not re-fire")

	nextDay := match.AddDate(0, 0, 1)

	due, err = s.ShouldRunNow(nextDay)
	require.NoError(t, err)
	assert.True(t, due)
}

func TestShouldRunNow_DailyHonorsTimezone(t *testing.T) {
	s := validSchedule(ScheduleModeDaily)
	s.Timezone = "America/Sao_Paulo"

	// 12:00 UTC is 09:00 in Sao Paulo (UTC-3).
	due, err := s.ShouldRunNow(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = s.ShouldRunNow(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestShouldRunNow_WeeklyChecksDay(t *testing.T) {
	s := validSchedule(ScheduleModeWeekly)
	s.Days = []int{2} // Tuesday

	tuesday := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Tuesday, tuesday.Weekday())

	due, err := s.ShouldRunNow(tuesday)
	require.NoError(t, err)
	assert.True(t, due)

	due, err = s.ShouldRunNow(tuesday.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestShouldRunNow_CronFiresOnMatchingMinute(t *testing.T) {
	s := validSchedule(ScheduleModeCron)

	due, err := s.ShouldRunNow(time.Date(2026, 3, 10, 9, 5, 30, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, due)

	due, err = s.ShouldRunNow(time.Date(2026, 3, 10, 9, 6, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, due)

	ranAt := time.Date(2026, 3, 10, 9, 5, 10, 0, time.UTC)
	s.LastRunAt = &ranAt

	due, err = s.ShouldRunNow(time.Date(2026, 3, 10, 9, 5, 40, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, due)
}

func TestNextRunAfter(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 30, 0, 0, time.UTC)

	interval := validSchedule(ScheduleModeInterval)
	next, err := interval.NextRunAfter(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(15*time.Minute), next)

	daily := validSchedule(ScheduleModeDaily)
	next, err = daily.NextRunAfter(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), next, "09:00 already passed, so tomorrow")

	weekly := validSchedule(ScheduleModeWeekly)
	weekly.Days = []int{5} // Friday
	next, err = weekly.NextRunAfter(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC), next)

	cronSched := validSchedule(ScheduleModeCron)
	next, err = cronSched.NextRunAfter(now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 10, 35, 0, 0, time.UTC), next)
}
