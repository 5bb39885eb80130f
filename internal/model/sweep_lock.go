package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SweepLock is the leader lock for the liveness sweeper. When several
// replicas share one store, only the lock holder runs sweep ticks, so each
// escalation event is emitted once.
type SweepLock struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"` // single well-known lock name
	LockedBy  string             `json:"locked_by" bson:"locked_by"`
	LockedAt  time.Time          `json:"locked_at" bson:"locked_at"`
	ExpiresAt time.Time          `json:"expires_at" bson:"expires_at"`
}
