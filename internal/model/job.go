package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/vigil/internal/schedule"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStatus is the liveness state of a monitored job.
type JobStatus string

const (
	// StatusHealthy means the last expected ping arrived in time.
	StatusHealthy JobStatus = "healthy"
	// StatusLate means the deadline passed but the grace window is still open.
	StatusLate JobStatus = "late"
	// StatusMissing means the deadline plus grace passed with no ping.
	StatusMissing JobStatus = "missing"
	// StatusPaused is only ever reported through the API view; underneath it
	// the liveness state is frozen until the job is resumed.
	StatusPaused JobStatus = "paused"
)

// Job is a monitored unit: an external task expected to ping on a cadence.
type Job struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name        string             `json:"name" bson:"name"`
	Description string             `json:"description,omitempty" bson:"description,omitempty"`

	// Schedule is either a cron expression or a fixed-interval duration,
	// parsed by internal/schedule. Timezone applies to cron expressions only.
	Schedule string `json:"schedule" bson:"schedule"`
	Timezone string `json:"timezone,omitempty" bson:"timezone,omitempty"`

	// GraceSeconds is the tolerance past NextExpect before escalation.
	GraceSeconds int `json:"grace_time" bson:"grace_time"`

	// FailRules classify a ping body as an explicit failure signal.
	FailRules []FailRule `json:"fail_rules,omitempty" bson:"fail_rules,omitempty"`

	// Webhook overrides the global notification webhook for this job.
	Webhook *Webhook `json:"webhook,omitempty" bson:"webhook,omitempty"`

	Status     JobStatus  `json:"-" bson:"status"`
	Paused     bool       `json:"paused" bson:"paused"`
	LastPing   *time.Time `json:"last_ping,omitempty" bson:"last_ping,omitempty"`
	NextExpect time.Time  `json:"next_expect" bson:"next_expect"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// GracePeriod returns the grace window as a duration.
func (j *Job) GracePeriod() time.Duration {
	return time.Duration(j.GraceSeconds) * time.Second
}

// DisplayStatus is the status the API reports: "paused" while the pause
// overlay is set, the frozen liveness state otherwise.
func (j *Job) DisplayStatus() JobStatus {
	if j.Paused {
		return StatusPaused
	}
	return j.Status
}

// Validate checks the configuration fields and compiles the schedule. It is
// called on create and on every config update, so an unparsable cadence is
// rejected synchronously and never stored.
func (j *Job) Validate() (*schedule.Spec, error) {
	if j.Name == "" {
		return nil, errors.New("job name is required")
	}
	if len(j.Name) > 255 {
		return nil, errors.New("job name must be 255 characters or less")
	}
	if j.GraceSeconds < 0 {
		return nil, errors.New("grace_time must not be negative")
	}

	spec, err := schedule.Parse(j.Schedule, j.Timezone)
	if err != nil {
		return nil, err
	}

	for i := range j.FailRules {
		if err := j.FailRules[i].Validate(); err != nil {
			return nil, fmt.Errorf("fail rule %q: %w", j.FailRules[i].Name, err)
		}
	}

	if j.Webhook != nil {
		if err := j.Webhook.Validate(); err != nil {
			return nil, err
		}
	}

	return spec, nil
}

// JobView is the read model exposed over the API. Instants are RFC 3339 UTC
// strings; status folds the pause overlay in.
type JobView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Schedule    string    `json:"schedule"`
	Timezone    string    `json:"timezone,omitempty"`
	GraceTime   int       `json:"grace_time"`
	Status      JobStatus `json:"status"`
	LastPing    string    `json:"last_ping,omitempty"`
	NextExpect  string    `json:"next_expect"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// ToView converts a Job to its API read model.
func (j *Job) ToView() JobView {
	v := JobView{
		ID:          j.ID.Hex(),
		Name:        j.Name,
		Description: j.Description,
		Schedule:    j.Schedule,
		Timezone:    j.Timezone,
		GraceTime:   j.GraceSeconds,
		Status:      j.DisplayStatus(),
		NextExpect:  j.NextExpect.UTC().Format(time.RFC3339),
		CreatedAt:   j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if j.LastPing != nil {
		v.LastPing = j.LastPing.UTC().Format(time.RFC3339)
	}
	return v
}

// FailRule is a JSONPath predicate evaluated against a ping's JSON body. A
// matching rule turns the ping into an explicit failure signal.
type FailRule struct {
	Name          string      `json:"name" bson:"name"`
	Expression    string      `json:"expression" bson:"expression"`
	Operator      string      `json:"operator" bson:"operator"`
	ExpectedValue interface{} `json:"expected_value,omitempty" bson:"expected_value,omitempty"`
}

var validOperators = map[string]bool{
	"eq": true, "ne": true, "gt": true, "lt": true,
	"gte": true, "lte": true, "contains": true, "exists": true, "regex": true,
}

// Validate checks the rule fields.
func (r *FailRule) Validate() error {
	if r.Name == "" {
		return errors.New("rule name is required")
	}
	if r.Expression == "" {
		return errors.New("rule expression is required")
	}
	if !validOperators[r.Operator] {
		return fmt.Errorf("invalid operator: %s", r.Operator)
	}
	return nil
}
