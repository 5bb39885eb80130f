package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/dandantas/vigil/internal/bus"
	"github.com/dandantas/vigil/internal/config"
	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *database.MemoryStore
	sweeper *Sweeper
	events  *[]bus.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := database.NewMemoryStore()
	b := bus.New()
	var published []bus.Event
	b.Subscribe("test", func(ev bus.Event) { published = append(published, ev) })

	sw := NewSweeper(&config.Config{}, store, store, nil, b)
	return &fixture{store: store, sweeper: sw, events: &published}
}

// seed creates a healthy job whose deadline is t0 plus one minute with a
// thirty second grace period.
func (f *fixture) seed(t *testing.T, t0 time.Time) *model.Job {
	t.Helper()

	job := &model.Job{
		Name:         "nightly-backup",
		Schedule:     "60s",
		GraceSeconds: 30,
		Status:       model.StatusHealthy,
		NextExpect:   t0.Add(60 * time.Second),
		CreatedAt:    t0,
	}
	require.NoError(t, f.store.CreateJob(context.Background(), job))
	return job
}

func (f *fixture) status(t *testing.T, id string) model.JobStatus {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job.Status
}

func TestTickBeforeDeadlineDoesNothing(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)

	f.sweeper.tick(context.Background(), t0.Add(59*time.Second))
	// Exactly at the deadline is still on time.
	f.sweeper.tick(context.Background(), t0.Add(60*time.Second))

	assert.Equal(t, model.StatusHealthy, f.status(t, job.ID.Hex()))
	assert.Empty(t, *f.events)
}

func TestTickPastDeadlineMarksLate(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)

	f.sweeper.tick(context.Background(), t0.Add(61*time.Second))

	assert.Equal(t, model.StatusLate, f.status(t, job.ID.Hex()))
	require.Len(t, *f.events, 1)
	ev := (*f.events)[0]
	assert.Equal(t, bus.Escalated, ev.Type)
	assert.Equal(t, model.StatusHealthy, ev.From)
	assert.Equal(t, model.StatusLate, ev.To)
	assert.Equal(t, "deadline", ev.Reason)
}

func TestTickPastGraceMarksMissing(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)

	f.sweeper.tick(context.Background(), t0.Add(61*time.Second))
	require.Equal(t, model.StatusLate, f.status(t, job.ID.Hex()))

	f.sweeper.tick(context.Background(), t0.Add(91*time.Second))

	assert.Equal(t, model.StatusMissing, f.status(t, job.ID.Hex()))
	require.Len(t, *f.events, 2)
	ev := (*f.events)[1]
	assert.Equal(t, model.StatusLate, ev.From)
	assert.Equal(t, model.StatusMissing, ev.To)
	assert.Equal(t, "grace-expired", ev.Reason)
}

func TestGraceBoundaryIsInclusive(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)

	// Exactly deadline plus grace: missing, not merely late.
	f.sweeper.tick(context.Background(), t0.Add(90*time.Second))

	assert.Equal(t, model.StatusMissing, f.status(t, job.ID.Hex()))
}

func TestSlowSweepStepsThroughLate(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)

	// First tick long after both boundaries: the job must still pass
	// through late on its way to missing, one event per step.
	f.sweeper.tick(context.Background(), t0.Add(10*time.Minute))

	assert.Equal(t, model.StatusMissing, f.status(t, job.ID.Hex()))
	require.Len(t, *f.events, 2)
	assert.Equal(t, model.StatusLate, (*f.events)[0].To)
	assert.Equal(t, model.StatusMissing, (*f.events)[1].To)
}

func TestRepeatedTicksEscalateExactlyOnce(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)

	for i := 0; i < 10; i++ {
		f.sweeper.tick(context.Background(), t0.Add(2*time.Minute))
	}

	assert.Equal(t, model.StatusMissing, f.status(t, job.ID.Hex()))
	assert.Len(t, *f.events, 2)
}

func TestPausedJobIsNeverSwept(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)

	_, err := f.store.SetPaused(context.Background(), job.ID.Hex(), true, time.Time{})
	require.NoError(t, err)

	f.sweeper.tick(context.Background(), t0.Add(24*time.Hour))

	assert.Equal(t, model.StatusHealthy, f.status(t, job.ID.Hex()))
	assert.Empty(t, *f.events)
}

func TestPingBetweenScanAndEscalateWins(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)
	now := t0.Add(61 * time.Second)

	// Simulate a ping landing after the scan returned the job: the
	// compare-and-set in escalate must refuse to mark it late.
	_, err := f.store.ApplyPing(context.Background(), job.ID.Hex(), now, now.Add(60*time.Second), false)
	require.NoError(t, err)

	overdueCopy := *job
	require.NoError(t, f.sweeper.escalate(context.Background(), overdueCopy, now))

	assert.Equal(t, model.StatusHealthy, f.status(t, job.ID.Hex()))
	assert.Empty(t, *f.events)
}

func TestTickSweepsMultipleJobsIndependently(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	overdue := f.seed(t, t0)
	onTime := &model.Job{
		Name:         "hourly-report",
		Schedule:     "1h",
		GraceSeconds: 60,
		Status:       model.StatusHealthy,
		NextExpect:   t0.Add(time.Hour),
		CreatedAt:    t0,
	}
	require.NoError(t, f.store.CreateJob(context.Background(), onTime))

	f.sweeper.tick(context.Background(), t0.Add(2*time.Minute))

	assert.Equal(t, model.StatusMissing, f.status(t, overdue.ID.Hex()))
	assert.Equal(t, model.StatusHealthy, f.status(t, onTime.ID.Hex()))
}

func TestTickAppendsAuditEvents(t *testing.T) {
	f := newFixture(t)
	t0 := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	job := f.seed(t, t0)

	f.sweeper.tick(context.Background(), t0.Add(2*time.Minute))

	trail, err := f.store.ListEvents(context.Background(), job.ID.Hex(), 10)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	// Newest first.
	assert.Equal(t, model.EventMiss, trail[0].Type)
	assert.Equal(t, model.EventLate, trail[1].Type)
}
