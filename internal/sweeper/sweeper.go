package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dandantas/vigil/internal/bus"
	"github.com/dandantas/vigil/internal/config"
	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/metrics"
	"github.com/dandantas/vigil/internal/model"
	"github.com/google/uuid"
)

const (
	scanRetries   = 3
	scanRetryBase = 100 * time.Millisecond
)

// LeaderLock is the sweep leadership contract. In multi-replica
// deployments database.LockRepository backs it; single-instance and
// memory-store deployments run without one.
type LeaderLock interface {
	AcquireSweepLock(ctx context.Context, holder string, ttl time.Duration) (bool, error)
	ReleaseSweepLock(ctx context.Context, holder string) error
}

// Sweeper periodically scans for jobs whose deadline has passed and
// escalates them, healthy to late at the deadline, late to missing once
// the grace period is also spent. Pings race the sweep through the store's
// compare-and-set transitions, so a job that reports in mid-tick is left
// alone.
type Sweeper struct {
	cfg      *config.Config
	jobs     database.JobStore
	events   database.EventStore
	lock     LeaderLock
	bus      *bus.Bus
	podID    string
	ticker   *time.Ticker
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSweeper creates a new sweeper instance. lock may be nil to disable
// leader election.
func NewSweeper(
	cfg *config.Config,
	jobs database.JobStore,
	events database.EventStore,
	lock LeaderLock,
	b *bus.Bus,
) *Sweeper {
	podID, err := os.Hostname()
	if err != nil {
		podID = uuid.New().String()
		slog.Warn("Failed to get hostname, using UUID as pod ID", "pod_id", podID)
	}

	return &Sweeper{
		cfg:      cfg,
		jobs:     jobs,
		events:   events,
		lock:     lock,
		bus:      b,
		podID:    podID,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep tick loop
func (s *Sweeper) Start(ctx context.Context) {
	if !s.cfg.SweepEnabled {
		slog.Info("Sweeper is disabled by configuration")
		return
	}

	slog.Info("Starting sweeper",
		"pod_id", s.podID,
		"tick_interval", s.cfg.SweepInterval,
		"lock_enabled", s.lock != nil,
	)

	s.ticker = time.NewTicker(s.cfg.SweepInterval)
	s.wg.Add(1)

	go s.run(ctx)
}

// Stop gracefully stops the sweeper
func (s *Sweeper) Stop(ctx context.Context) {
	if !s.cfg.SweepEnabled {
		return
	}

	slog.Info("Stopping sweeper", "pod_id", s.podID)

	close(s.stopChan)

	if s.ticker != nil {
		s.ticker.Stop()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("Timeout waiting for in-flight sweep to complete")
	}

	if s.lock != nil {
		if err := s.lock.ReleaseSweepLock(context.Background(), s.podID); err != nil {
			slog.Error("Failed to release sweep lock during shutdown", "error", err)
		}
	}

	slog.Info("Sweeper stopped", "pod_id", s.podID)
}

// run is the main sweep loop
func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	// Run immediately on start
	s.sweep(ctx)

	for {
		select {
		case <-s.ticker.C:
			s.sweep(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			slog.Info("Sweeper context done", "pod_id", s.podID)
			return
		}
	}
}

// sweep runs one tick at the current wall clock, guarded by the leader
// lock when one is configured.
func (s *Sweeper) sweep(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.AcquireSweepLock(ctx, s.podID, s.cfg.SweepLockTTL)
		if err != nil {
			slog.Error("Failed to acquire sweep lock", "pod_id", s.podID, "error", err)
			return
		}
		if !acquired {
			slog.Debug("Sweep lock held by another replica", "pod_id", s.podID)
			return
		}
	}

	s.tick(ctx, time.Now().UTC())
}

// tick scans for overdue jobs as of now and escalates each one. A job
// past its deadline goes late; a job past deadline plus grace goes
// missing, stepping through late first so no state is skipped.
func (s *Sweeper) tick(ctx context.Context, now time.Time) {
	metrics.SweepTicksTotal.Inc()
	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	due, err := s.findDue(ctx, now)
	if err != nil {
		slog.Error("Failed to scan for overdue jobs", "pod_id", s.podID, "error", err)
		return
	}

	metrics.SweepDueJobs.Observe(float64(len(due)))
	if len(due) == 0 {
		return
	}

	slog.Info("Found overdue jobs",
		"pod_id", s.podID,
		"count", len(due),
		"time", now.Format(time.RFC3339),
	)

	for _, job := range due {
		if err := s.escalate(ctx, job, now); err != nil {
			slog.Error("Failed to escalate overdue job",
				"job_id", job.ID.Hex(),
				"job_name", job.Name,
				"error", err,
			)
		}
	}
}

// findDue retries the overdue scan on transient store failures so one
// flaky query does not cost a whole tick.
func (s *Sweeper) findDue(ctx context.Context, now time.Time) ([]model.Job, error) {
	var due []model.Job
	var err error
	delay := scanRetryBase

	for attempt := 1; ; attempt++ {
		due, err = s.jobs.FindDueBefore(ctx, now)
		if err == nil || !errors.Is(err, database.ErrUnavailable) || attempt >= scanRetries {
			return due, err
		}

		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// escalate advances one overdue job. Each step is a compare-and-set on
// the previous status, so a concurrent ping or a competing replica makes
// the step a silent no-op instead of a duplicate event.
func (s *Sweeper) escalate(ctx context.Context, job model.Job, now time.Time) error {
	id := job.ID.Hex()
	graceSpent := !now.Before(job.NextExpect.Add(job.GracePeriod()))

	if job.Status == model.StatusHealthy {
		moved, err := s.jobs.Transition(ctx, id, model.StatusHealthy, model.StatusLate, now)
		if err != nil {
			return fmt.Errorf("healthy to late: %w", err)
		}
		if !moved {
			// A ping landed first; nothing overdue anymore.
			return nil
		}
		s.emit(ctx, job, model.StatusHealthy, model.StatusLate, "deadline", now)
		if !graceSpent {
			return nil
		}
		job.Status = model.StatusLate
	}

	if job.Status == model.StatusLate && graceSpent {
		moved, err := s.jobs.Transition(ctx, id, model.StatusLate, model.StatusMissing, now)
		if err != nil {
			return fmt.Errorf("late to missing: %w", err)
		}
		if moved {
			s.emit(ctx, job, model.StatusLate, model.StatusMissing, "grace-expired", now)
		}
	}

	return nil
}

func (s *Sweeper) emit(ctx context.Context, job model.Job, from, to model.JobStatus, reason string, now time.Time) {
	metrics.TransitionsTotal.WithLabelValues(string(to)).Inc()

	eventType := model.EventLate
	if to == model.StatusMissing {
		eventType = model.EventMiss
	}
	ev := &model.JobEvent{
		JobID:  job.ID,
		Type:   eventType,
		Detail: fmt.Sprintf("no ping by %s (%s)", now.Format(time.RFC3339), reason),
	}
	if err := s.events.AppendEvent(ctx, ev); err != nil {
		slog.Error("Failed to append audit event",
			"job_id", job.ID.Hex(),
			"event_type", string(eventType),
			"error", err,
		)
	}

	s.bus.Publish(bus.Event{
		JobID:   job.ID.Hex(),
		JobName: job.Name,
		Type:    bus.Escalated,
		From:    from,
		To:      to,
		Reason:  reason,
		At:      now,
	})
}
