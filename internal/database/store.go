package database

import (
	"context"
	"time"

	"github.com/dandantas/vigil/internal/model"
)

// PingResult is the outcome of an ApplyPing call: the job after the write,
// the liveness fields it had before, and whether the ping was stale
// (received_at older than an already recorded ping — kept for audit, job
// untouched).
type PingResult struct {
	Job        *model.Job
	PrevStatus model.JobStatus
	PrevPaused bool
	Stale      bool
}

// JobStore is the authoritative record of job configuration and liveness
// fields. Every mutation of the liveness fields goes through one of the
// conditional operations below; their preconditions are evaluated atomically
// with the write, so a ping and a sweep racing on the same job always
// produce one consistent outcome.
type JobStore interface {
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
	ListJobs(ctx context.Context) ([]model.Job, error)
	// DeleteJob reports whether the job existed. Deletion wins against
	// in-flight pings and sweeps: their conditional writes simply match
	// nothing afterwards.
	DeleteJob(ctx context.Context, id string) (bool, error)
	// ReplaceJob overwrites configuration and recomputed liveness fields.
	ReplaceJob(ctx context.Context, job *model.Job) error

	// FindDueBefore returns non-paused jobs with next_expect strictly before
	// now that are not already missing.
	FindDueBefore(ctx context.Context, now time.Time) ([]model.Job, error)

	// ApplyPing records a liveness signal, last-writer-wins by receivedAt:
	// last_ping and next_expect advance only if receivedAt is not older than
	// the stored last_ping. Status resets to healthy — or to missing when the
	// ping carried a fail signal — unless the job is paused, in which case
	// the liveness state stays frozen beneath the overlay.
	ApplyPing(ctx context.Context, id string, receivedAt, nextExpect time.Time, fail bool) (*PingResult, error)

	// Transition promotes status from -> to, but only while the job still
	// holds status from, is not paused, and has next_expect before dueBefore.
	// A ping committing first invalidates the precondition and the call
	// reports false; it is the sweeper's compare-and-mutate and the reason a
	// job stuck overdue escalates exactly once.
	Transition(ctx context.Context, id string, from, to model.JobStatus, dueBefore time.Time) (bool, error)

	// SetPaused flips the pause overlay. When resuming, nextExpect carries
	// the deadline recomputed from the current instant; when pausing it is
	// ignored and the stored deadline is left as is.
	SetPaused(ctx context.Context, id string, paused bool, nextExpect time.Time) (*model.Job, error)
}

// EventStore is the append-only audit trail per job.
type EventStore interface {
	AppendEvent(ctx context.Context, ev *model.JobEvent) error
	ListEvents(ctx context.Context, jobID string, limit int) ([]model.JobEvent, error)
	DeleteEvents(ctx context.Context, jobID string) error
}

// NotificationStore records webhook delivery outcomes.
type NotificationStore interface {
	InsertNotification(ctx context.Context, n *model.NotificationLog) error
	ListNotifications(ctx context.Context, page, limit int) ([]model.NotificationLog, int64, error)
}
