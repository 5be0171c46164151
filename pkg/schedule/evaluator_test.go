package schedule

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxionhq/fluxion/pkg/eventbus"
	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/models"
	"github.com/fluxionhq/fluxion/pkg/persistence"
)

type fakeScheduleRepo struct {
	schedules map[string]*models.Schedule
}

func (f *fakeScheduleRepo) ActiveSchedules(_ context.Context) ([]*models.Schedule, error) {
	var active []*models.Schedule

	for _, s := range f.schedules {
		if s.Enabled && !s.IsDraft {
			active = append(active, s)
		}
	}

	return active, nil
}

func (f *fakeScheduleRepo) GetByID(_ context.Context, id string) (*models.Schedule, error) {
	s, ok := f.schedules[id]
	if !ok {
		return nil, persistence.ErrScheduleNotFound
	}

	return s, nil
}

func (f *fakeScheduleRepo) Save(_ context.Context, s *models.Schedule) error {
	f.schedules[s.ID] = s

	return nil
}

func (f *fakeScheduleRepo) Delete(_ context.Context, id string) error {
	delete(f.schedules, id)

	return nil
}

type capturingPublisher struct {
	published []eventbus.Event
}

func (c *capturingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	c.published = append(c.published, event)

	return nil
}

func newEvaluator(t *testing.T, schedules ...*models.Schedule) (*Evaluator, *fakeScheduleRepo, *capturingPublisher) {
	t.Helper()

	repo := &fakeScheduleRepo{schedules: map[string]*models.Schedule{}}
	for _, s := range schedules {
		repo.schedules[s.ID] = s
	}

	publisher := &capturingPublisher{}

	return NewEvaluator(slog.Default(), repo, publisher), repo, publisher
}

func dailySchedule() *models.Schedule {
	return &models.Schedule{
		ID:         "sched-1",
		WorkflowID: "wf-1",
		NodeID:     "trigger-1",
		Mode:       models.ScheduleModeDaily,
		Time:       "09:00",
		Timezone:   "UTC",
		Enabled:    true,
		Version:    1,
	}
}

func TestTick_DailyFiresAtConfiguredTime(t *testing.T) {
	evaluator, repo, publisher := newEvaluator(t, dailySchedule())

	now := time.Date(2026, 3, 10, 9, 0, 20, 0, time.UTC)
	require.NoError(t, evaluator.Tick(context.Background(), now))

	require.Len(t, publisher.published, 1)

	request, ok := publisher.published[0].(events.RunRequested)
	require.True(t, ok)
	assert.Equal(t, "wf-1", request.WorkflowID)
	assert.Equal(t, "sched-1", request.ScheduleID)
	assert.Equal(t, 1, request.ScheduleVersion)

	require.NotNil(t, repo.schedules["sched-1"].LastRunAt)
	assert.Equal(t, now, *repo.schedules["sched-1"].LastRunAt)
}

func TestTick_DailyDoesNotRefireSameDate(t *testing.T) {
	evaluator, _, publisher := newEvaluator(t, dailySchedule())

	now := time.Date(2026, 3, 10, 9, 0, 5, 0, time.UTC)
	require.NoError(t, evaluator.Tick(context.Background(), now))
	require.NoError(t, evaluator.Tick(context.Background(), now.Add(20*time.Second)))

	assert.Len(t, publisher.published, 1, "a matching minute fires once per local date")
}

func TestTick_DailyOutsideWindowDoesNotFire(t *testing.T) {
	evaluator, _, publisher := newEvaluator(t, dailySchedule())

	now := time.Date(2026, 3, 10, 9, 1, 0, 0, time.UTC)
	require.NoError(t, evaluator.Tick(context.Background(), now))

	assert.Empty(t, publisher.published)
}

func TestTick_IntervalFiresAfterElapsed(t *testing.T) {
	last := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	schedule := &models.Schedule{
		ID:              "sched-2",
		WorkflowID:      "wf-1",
		NodeID:          "trigger-1",
		Mode:            models.ScheduleModeInterval,
		IntervalMinutes: 30,
		Timezone:        "UTC",
		Enabled:         true,
		LastRunAt:       &last,
	}

	evaluator, _, publisher := newEvaluator(t, schedule)

	require.NoError(t, evaluator.Tick(context.Background(), last.Add(10*time.Minute)))
	assert.Empty(t, publisher.published)

	require.NoError(t, evaluator.Tick(context.Background(), last.Add(30*time.Minute)))
	assert.Len(t, publisher.published, 1)
}

func TestTick_DisabledAndDraftSchedulesAreIgnored(t *testing.T) {
	disabled := dailySchedule()
	disabled.ID = "sched-off"
	disabled.Enabled = false

	draft := dailySchedule()
	draft.ID = "sched-draft"
	draft.IsDraft = true

	evaluator, _, publisher := newEvaluator(t, disabled, draft)

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	require.NoError(t, evaluator.Tick(context.Background(), now))

	assert.Empty(t, publisher.published)
}

func TestActivate_BumpsVersionAndPreEnqueues(t *testing.T) {
	schedule := dailySchedule()
	schedule.Enabled = false
	schedule.IsDraft = true

	evaluator, repo, publisher := newEvaluator(t, schedule)
	evaluator.now = func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}

	require.NoError(t, evaluator.Activate(context.Background(), "sched-1"))

	saved := repo.schedules["sched-1"]
	assert.True(t, saved.Enabled)
	assert.False(t, saved.IsDraft)
	assert.Equal(t, 2, saved.Version)

	require.Len(t, publisher.published, 1)

	request, ok := publisher.published[0].(events.RunRequested)
	require.True(t, ok)
	assert.Equal(t, 2, request.ScheduleVersion)
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), request.ScheduledAt)
}
