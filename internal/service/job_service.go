package service

import (
	"context"
	"fmt"
	"time"

	"github.com/dandantas/vigil/internal/database"
	"github.com/dandantas/vigil/internal/model"
	"github.com/dandantas/vigil/internal/schedule"
)

// JobService manages job configuration: create, read, update, delete, and
// the pause overlay. Liveness-field writes stay on the store's conditional
// operations; this service only ever seeds or recomputes next_expect
// together with a config change.
type JobService struct {
	jobs   database.JobStore
	events database.EventStore
}

// NewJobService creates a new job service
func NewJobService(jobs database.JobStore, events database.EventStore) *JobService {
	return &JobService{
		jobs:   jobs,
		events: events,
	}
}

// Create validates and stores a new job. A fresh job starts healthy
// (optimistic) with its first deadline computed from the creation instant,
// so a job that never pings escalates once that deadline plus grace passes.
func (s *JobService) Create(ctx context.Context, job *model.Job) error {
	spec, err := job.Validate()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	next, err := spec.Next(now)
	if err != nil {
		return err
	}

	job.Status = model.StatusHealthy
	job.Paused = false
	job.LastPing = nil
	job.NextExpect = next
	job.CreatedAt = now
	job.UpdatedAt = now

	return s.jobs.CreateJob(ctx, job)
}

// Get retrieves a job by id
func (s *JobService) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.jobs.GetJob(ctx, id)
}

// List retrieves all jobs as API views
func (s *JobService) List(ctx context.Context) ([]model.JobView, error) {
	jobs, err := s.jobs.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]model.JobView, len(jobs))
	for i := range jobs {
		views[i] = jobs[i].ToView()
	}
	return views, nil
}

// UpdateRequest carries a partial job update; nil fields are left unchanged.
type UpdateRequest struct {
	Name        *string           `json:"name,omitempty"`
	Description *string           `json:"description,omitempty"`
	Schedule    *string           `json:"schedule,omitempty"`
	Timezone    *string           `json:"timezone,omitempty"`
	GraceTime   *int              `json:"grace_time,omitempty"`
	FailRules   *[]model.FailRule `json:"fail_rules,omitempty"`
	Webhook     *model.Webhook    `json:"webhook,omitempty"`
}

// Update applies a partial update. Changing the schedule or timezone
// revalidates the cadence and recomputes next_expect from the last ping (or
// from now for a job that never pinged), keeping the deadline invariant.
func (s *JobService) Update(ctx context.Context, id string, req UpdateRequest) (*model.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		job.Name = *req.Name
	}
	if req.Description != nil {
		job.Description = *req.Description
	}
	if req.FailRules != nil {
		job.FailRules = *req.FailRules
	}
	if req.Webhook != nil {
		job.Webhook = req.Webhook
	}

	cadenceChanged := false
	if req.Schedule != nil && *req.Schedule != job.Schedule {
		job.Schedule = *req.Schedule
		cadenceChanged = true
	}
	if req.Timezone != nil && *req.Timezone != job.Timezone {
		job.Timezone = *req.Timezone
		cadenceChanged = true
	}
	if req.GraceTime != nil {
		job.GraceSeconds = *req.GraceTime
	}

	spec, err := job.Validate()
	if err != nil {
		return nil, err
	}

	if cadenceChanged {
		ref := time.Now().UTC()
		if job.LastPing != nil {
			ref = *job.LastPing
		}
		next, err := spec.Next(ref)
		if err != nil {
			return nil, err
		}
		job.NextExpect = next
	}

	job.UpdatedAt = time.Now().UTC()

	if err := s.jobs.ReplaceJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Pause freezes escalation for a job. The liveness state underneath stays
// as it was and the sweeper skips the job entirely.
func (s *JobService) Pause(ctx context.Context, id string) (*model.Job, error) {
	return s.jobs.SetPaused(ctx, id, true, time.Time{})
}

// Resume lifts the pause overlay. The deadline is recomputed from the
// current instant so the job is not instantly swept as missing for the
// pings it legitimately skipped while paused.
func (s *JobService) Resume(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	spec, err := schedule.Parse(job.Schedule, job.Timezone)
	if err != nil {
		return nil, fmt.Errorf("stored schedule no longer parses: %w", err)
	}
	next, err := spec.Next(time.Now().UTC())
	if err != nil {
		return nil, err
	}

	return s.jobs.SetPaused(ctx, id, false, next)
}

// Delete removes a job and its audit trail
func (s *JobService) Delete(ctx context.Context, id string) error {
	deleted, err := s.jobs.DeleteJob(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return database.ErrNotFound
	}
	return s.events.DeleteEvents(ctx, id)
}

// Events lists the newest audit entries for a job
func (s *JobService) Events(ctx context.Context, id string, limit int) ([]model.JobEvent, error) {
	if _, err := s.jobs.GetJob(ctx, id); err != nil {
		return nil, err
	}
	return s.events.ListEvents(ctx, id, limit)
}
