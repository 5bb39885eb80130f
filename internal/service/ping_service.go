package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dandantas/vigil/internal/bus"
	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/evaluator"
	"github.com/dandantas/vigil/internal/metrics"
	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/internal/schedule"
)

// storeRetries bounds the backoff loop on a transient store failure. A
// dropped ping can surface as a false missing escalation, so the ingestor
// retries before giving up.
const (
	storeRetries   = 3
	storeRetryBase = 100 * time.Millisecond
)

// PingService is the ping ingestor: it turns an inbound liveness signal
// into one atomic store write, an audit entry, and at most one bus event.
// It is invoked concurrently, once per inbound ping.
type PingService struct {
	jobs   database.JobStore
	events database.EventStore
	bus    *bus.Bus
	eval   *evaluator.Evaluator
}

// NewPingService creates a new ping service
func NewPingService(jobs database.JobStore, events database.EventStore, b *bus.Bus) *PingService {
	return &PingService{
		jobs:   jobs,
		events: events,
		bus:    b,
		eval:   evaluator.New(),
	}
}

// RecordPing ingests one liveness signal. receivedAt orders pings (last
// writer wins), body optionally carries a JSON payload matched against the
// job's fail rules. Returns the job after the write, or
// database.ErrNotFound with no side effects for an unknown or concurrently
// deleted id.
func (s *PingService) RecordPing(ctx context.Context, id string, receivedAt time.Time, body []byte) (*model.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.PingsTotal.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}

	spec, err := schedule.Parse(job.Schedule, job.Timezone)
	if err != nil {
		return nil, fmt.Errorf("stored schedule no longer parses: %w", err)
	}

	receivedAt = receivedAt.UTC()
	next, err := spec.Next(receivedAt)
	if err != nil {
		return nil, err
	}

	fail, ruleMatches := s.eval.Classify(job.FailRules, body)

	var res *database.PingResult
	err = withStoreRetry(ctx, func() error {
		var applyErr error
		res, applyErr = s.jobs.ApplyPing(ctx, id, receivedAt, next, fail)
		return applyErr
	})
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Deleted between the read and the write: deletion wins.
			metrics.PingsTotal.WithLabelValues("not_found").Inc()
		}
		return nil, err
	}

	if res.Stale {
		metrics.PingsTotal.WithLabelValues("stale").Inc()
		s.audit(ctx, job, model.EventStalePing,
			fmt.Sprintf("out-of-order ping at %s ignored", receivedAt.Format(time.RFC3339)))
		return res.Job, nil
	}

	if fail {
		metrics.PingsTotal.WithLabelValues("fail_signal").Inc()
		s.audit(ctx, job, model.EventFail, describeMatches(ruleMatches))
	} else {
		metrics.PingsTotal.WithLabelValues("accepted").Inc()
		s.audit(ctx, job, model.EventPing, "")
	}

	// Events fire only for committed status changes; a paused job records
	// the ping but keeps its frozen state, and healthy->healthy is a no-op.
	if !res.PrevPaused {
		switch {
		case fail && res.PrevStatus != model.StatusMissing:
			metrics.TransitionsTotal.WithLabelValues(string(model.StatusMissing)).Inc()
			s.audit(ctx, job, model.EventMiss, "explicit fail signal")
			s.bus.Publish(bus.Event{
				JobID:   id,
				JobName: job.Name,
				Type:    bus.Escalated,
				From:    res.PrevStatus,
				To:      model.StatusMissing,
				Reason:  "fail-signal",
				At:      receivedAt,
			})
		case !fail && (res.PrevStatus == model.StatusLate || res.PrevStatus == model.StatusMissing):
			metrics.TransitionsTotal.WithLabelValues(string(model.StatusHealthy)).Inc()
			s.audit(ctx, job, model.EventRecovery, "")
			s.bus.Publish(bus.Event{
				JobID:   id,
				JobName: job.Name,
				Type:    bus.Recovered,
				From:    res.PrevStatus,
				To:      model.StatusHealthy,
				Reason:  "ping",
				At:      receivedAt,
			})
		}
	}

	return res.Job, nil
}

func (s *PingService) audit(ctx context.Context, job *model.Job, typ model.JobEventType, detail string) {
	ev := &model.JobEvent{
		JobID:  job.ID,
		Type:   typ,
		Detail: detail,
	}
	if err := s.events.AppendEvent(ctx, ev); err != nil {
		slog.Error("Failed to append audit event",
			"job_id", job.ID.Hex(),
			"event_type", string(typ),
			"error", err,
		)
	}
}

func describeMatches(matches []evaluator.RuleMatch) string {
	var names []string
	for _, m := range matches {
		if m.Matched {
			names = append(names, m.RuleName)
		}
	}
	return "fail rules matched: " + strings.Join(names, ", ")
}

// withStoreRetry retries a store operation with exponential backoff while
// the error is transient (database.ErrUnavailable).
func withStoreRetry(ctx context.Context, op func() error) error {
	var err error
	delay := storeRetryBase

	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || !errors.Is(err, database.ErrUnavailable) || attempt >= storeRetries {
			return err
		}

		slog.Warn("Store unavailable, retrying",
			"attempt", attempt,
			"next_retry_ms", delay.Milliseconds(),
			"error", err,
		)

		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
