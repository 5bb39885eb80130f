package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a mutex-guarded implementation of JobStore, EventStore and
// NotificationStore. It backs the dev deployment mode and the test suite;
// the conditional operations follow the exact semantics of the Mongo
// repositories, with the mutex standing in for document-level atomicity.
type MemoryStore struct {
	mu            sync.Mutex
	jobs          map[string]*model.Job
	events        []model.JobEvent
	notifications []model.NotificationLog
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*model.Job),
	}
}

func copyJob(j *model.Job) *model.Job {
	cp := *j
	if j.LastPing != nil {
		t := *j.LastPing
		cp.LastPing = &t
	}
	return &cp
}

// CreateJob inserts a new job, enforcing name uniqueness like the Mongo
// collection's unique index does.
func (s *MemoryStore) CreateJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.Name == job.Name {
			return fmt.Errorf("job with name '%s': %w", job.Name, ErrDuplicateName)
		}
	}

	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}
	s.jobs[job.ID.Hex()] = copyJob(job)
	return nil
}

// GetJob retrieves a job by id
func (s *MemoryStore) GetJob(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyJob(job), nil
}

// ListJobs retrieves all jobs, newest first
func (s *MemoryStore) ListJobs(_ context.Context) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *copyJob(job))
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	return jobs, nil
}

// DeleteJob removes a job, reporting whether it existed
func (s *MemoryStore) DeleteJob(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	delete(s.jobs, id)
	return true, nil
}

// ReplaceJob overwrites a job
func (s *MemoryStore) ReplaceJob(_ context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := job.ID.Hex()
	if _, ok := s.jobs[id]; !ok {
		return ErrNotFound
	}
	s.jobs[id] = copyJob(job)
	return nil
}

// FindDueBefore returns non-paused, non-missing jobs with next_expect
// strictly before now.
func (s *MemoryStore) FindDueBefore(_ context.Context, now time.Time) ([]model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Job
	for _, job := range s.jobs {
		if job.Paused || job.Status == model.StatusMissing {
			continue
		}
		if job.NextExpect.Before(now) {
			due = append(due, *copyJob(job))
		}
	}
	sort.Slice(due, func(i, k int) bool {
		return due[i].NextExpect.Before(due[k].NextExpect)
	})
	return due, nil
}

// ApplyPing mirrors JobRepository.ApplyPing: last-writer-wins by receivedAt,
// status reset suppressed while paused.
func (s *MemoryStore) ApplyPing(_ context.Context, id string, receivedAt, nextExpect time.Time, fail bool) (*PingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	if job.LastPing != nil && job.LastPing.After(receivedAt) {
		return &PingResult{
			Job:        copyJob(job),
			PrevStatus: job.Status,
			PrevPaused: job.Paused,
			Stale:      true,
		}, nil
	}

	prev := job.Status
	prevPaused := job.Paused

	t := receivedAt
	job.LastPing = &t
	job.NextExpect = nextExpect
	job.UpdatedAt = time.Now().UTC()
	if !job.Paused {
		if fail {
			job.Status = model.StatusMissing
		} else {
			job.Status = model.StatusHealthy
		}
	}

	return &PingResult{
		Job:        copyJob(job),
		PrevStatus: prev,
		PrevPaused: prevPaused,
	}, nil
}

// Transition mirrors JobRepository.Transition's compare-and-mutate.
func (s *MemoryStore) Transition(_ context.Context, id string, from, to model.JobStatus, dueBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return false, nil
	}
	if job.Status != from || job.Paused || !job.NextExpect.Before(dueBefore) {
		return false, nil
	}

	job.Status = to
	job.UpdatedAt = time.Now().UTC()
	return true, nil
}

// SetPaused flips the pause overlay; resuming writes the recomputed deadline.
func (s *MemoryStore) SetPaused(_ context.Context, id string, paused bool, nextExpect time.Time) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	job.Paused = paused
	if !paused {
		job.NextExpect = nextExpect
	}
	job.UpdatedAt = time.Now().UTC()
	return copyJob(job), nil
}

// AppendEvent appends an audit entry
func (s *MemoryStore) AppendEvent(_ context.Context, ev *model.JobEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID.IsZero() {
		ev.ID = primitive.NewObjectID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.events = append(s.events, *ev)
	return nil
}

// ListEvents returns the newest entries for a job
func (s *MemoryStore) ListEvents(_ context.Context, jobID string, limit int) ([]model.JobEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []model.JobEvent
	for i := len(s.events) - 1; i >= 0 && len(events) < limit; i-- {
		if s.events[i].JobID.Hex() == jobID {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}

// DeleteEvents drops a job's audit trail
func (s *MemoryStore) DeleteEvents(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	for _, ev := range s.events {
		if ev.JobID.Hex() != jobID {
			kept = append(kept, ev)
		}
	}
	s.events = kept
	return nil
}

// InsertNotification records a delivery log
func (s *MemoryStore) InsertNotification(_ context.Context, n *model.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

// ListNotifications returns delivery logs with pagination, newest first.
// Non-positive page or limit values are treated as the first page.
func (s *MemoryStore) ListNotifications(_ context.Context, page, limit int) ([]model.NotificationLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}

	total := int64(len(s.notifications))

	reversed := make([]model.NotificationLog, 0, len(s.notifications))
	for i := len(s.notifications) - 1; i >= 0; i-- {
		reversed = append(reversed, s.notifications[i])
	}

	start := (page - 1) * limit
	if start >= len(reversed) {
		return nil, total, nil
	}
	end := start + limit
	if end > len(reversed) {
		end = len(reversed)
	}
	return reversed[start:end], total, nil
}
