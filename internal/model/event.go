package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobEventType classifies an audit log entry for a job.
type JobEventType string

const (
	// EventPing records an accepted liveness signal.
	EventPing JobEventType = "ping"
	// EventStalePing records an out-of-order ping kept for audit only.
	EventStalePing JobEventType = "stale_ping"
	// EventFail records a ping classified as an explicit failure signal.
	EventFail JobEventType = "fail"
	// EventLate records the sweeper escalating past the deadline.
	EventLate JobEventType = "late"
	// EventMiss records the sweeper escalating past deadline plus grace.
	EventMiss JobEventType = "miss"
	// EventRecovery records a ping bringing a late or missing job back.
	EventRecovery JobEventType = "recovery"
)

// JobEvent is one entry in a job's audit trail.
type JobEvent struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	JobID     primitive.ObjectID `json:"job_id" bson:"job_id"`
	Type      JobEventType       `json:"type" bson:"type"`
	Detail    string             `json:"detail,omitempty" bson:"detail,omitempty"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
