package database

import (
	"context"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EventRepository stores the per-job audit trail (pings, misses, recoveries).
type EventRepository struct {
	collection *mongo.Collection
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *MongoDB) *EventRepository {
	return &EventRepository{
		collection: db.GetCollection(CollectionJobEvents),
	}
}

// AppendEvent inserts an audit entry
func (r *EventRepository) AppendEvent(ctx context.Context, ev *model.JobEvent) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if ev.ID.IsZero() {
		ev.ID = primitive.NewObjectID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	if _, err := r.collection.InsertOne(ctxTimeout, ev); err != nil {
		return unavailable("append event", err)
	}

	return nil
}

// ListEvents retrieves the newest entries for a job
func (r *EventRepository) ListEvents(ctx context.Context, jobID string, limit int) ([]model.JobEvent, error) {
	oid, err := primitive.ObjectIDFromHex(jobID)
	if err != nil {
		return nil, ErrNotFound
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctxTimeout, bson.M{"job_id": oid}, opts)
	if err != nil {
		return nil, unavailable("list events", err)
	}
	defer cursor.Close(ctxTimeout)

	var events []model.JobEvent
	if err := cursor.All(ctxTimeout, &events); err != nil {
		return nil, unavailable("decode events", err)
	}

	return events, nil
}

// DeleteEvents removes a deleted job's audit trail
func (r *EventRepository) DeleteEvents(ctx context.Context, jobID string) error {
	oid, err := primitive.ObjectIDFromHex(jobID)
	if err != nil {
		return nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := r.collection.DeleteMany(ctxTimeout, bson.M{"job_id": oid}); err != nil {
		return unavailable("delete events", err)
	}

	return nil
}
