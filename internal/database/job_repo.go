package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// JobRepository is the MongoDB-backed JobStore. Preconditions of the
// conditional operations are expressed as query filters, so the check and
// the write happen in one document-level atomic step on the server.
type JobRepository struct {
	collection *mongo.Collection
}

// NewJobRepository creates a new job repository
func NewJobRepository(db *MongoDB) *JobRepository {
	return &JobRepository{
		collection: db.GetCollection(CollectionJobs),
	}
}

// CreateJob inserts a new job
func (r *JobRepository) CreateJob(ctx context.Context, job *model.Job) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if job.ID.IsZero() {
		job.ID = primitive.NewObjectID()
	}

	_, err := r.collection.InsertOne(ctxTimeout, job)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("job with name '%s': %w", job.Name, ErrDuplicateName)
		}
		return unavailable("create job", err)
	}

	return nil
}

// GetJob retrieves a job by its hex id
func (r *JobRepository) GetJob(ctx context.Context, id string) (*model.Job, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid job id: %w", ErrNotFound)
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var job model.Job
	err = r.collection.FindOne(ctxTimeout, bson.M{"_id": oid}).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, unavailable("get job", err)
	}

	return &job, nil
}

// ListJobs retrieves all jobs, newest first
func (r *JobRepository) ListJobs(ctx context.Context) ([]model.Job, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctxTimeout, bson.M{}, opts)
	if err != nil {
		return nil, unavailable("list jobs", err)
	}
	defer cursor.Close(ctxTimeout)

	var jobs []model.Job
	if err := cursor.All(ctxTimeout, &jobs); err != nil {
		return nil, unavailable("decode jobs", err)
	}

	return jobs, nil
}

// DeleteJob removes a job. A concurrent ping or sweep for the same id sees
// its conditional write match nothing afterwards.
func (r *JobRepository) DeleteJob(ctx context.Context, id string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{"_id": oid})
	if err != nil {
		return false, unavailable("delete job", err)
	}

	return result.DeletedCount > 0, nil
}

// ReplaceJob overwrites a job document
func (r *JobRepository) ReplaceJob(ctx context.Context, job *model.Job) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.ReplaceOne(ctxTimeout, bson.M{"_id": job.ID}, job)
	if err != nil {
		return unavailable("replace job", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// FindDueBefore retrieves jobs the sweeper must evaluate: not paused, not
// already missing, deadline strictly before now. Served by the
// (paused, status, next_expect) index so a tick only touches candidates.
func (r *JobRepository) FindDueBefore(ctx context.Context, now time.Time) ([]model.Job, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{
		"paused":      false,
		"status":      bson.M{"$in": bson.A{string(model.StatusHealthy), string(model.StatusLate)}},
		"next_expect": bson.M{"$lt": now},
	}

	cursor, err := r.collection.Find(ctxTimeout, filter)
	if err != nil {
		return nil, unavailable("find due jobs", err)
	}
	defer cursor.Close(ctxTimeout)

	var jobs []model.Job
	if err := cursor.All(ctxTimeout, &jobs); err != nil {
		return nil, unavailable("decode due jobs", err)
	}

	return jobs, nil
}

// ApplyPing records a liveness signal with last-writer-wins ordering by
// receivedAt. The ordering guard is part of the filter and the conditional
// status reset is an aggregation-pipeline update, so the whole step is one
// atomic document write.
func (r *JobRepository) ApplyPing(ctx context.Context, id string, receivedAt, nextExpect time.Time, fail bool) (*PingResult, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"_id": oid,
		"$or": bson.A{
			bson.M{"last_ping": bson.M{"$exists": false}},
			bson.M{"last_ping": nil},
			bson.M{"last_ping": bson.M{"$lte": receivedAt}},
		},
	}

	newStatus := string(model.StatusHealthy)
	if fail {
		newStatus = string(model.StatusMissing)
	}

	// Paused jobs record the ping but keep their frozen liveness state.
	update := bson.A{
		bson.M{"$set": bson.M{
			"last_ping":   receivedAt,
			"next_expect": nextExpect,
			"updated_at":  time.Now().UTC(),
			"status": bson.M{"$cond": bson.A{"$paused", "$status", newStatus}},
		}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var before model.Job
	err = r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&before)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, unavailable("apply ping", err)
		}
		// Either the job is gone or a newer ping is already recorded.
		current, getErr := r.GetJob(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return &PingResult{
			Job:        current,
			PrevStatus: current.Status,
			PrevPaused: current.Paused,
			Stale:      true,
		}, nil
	}

	after := before
	after.LastPing = &receivedAt
	after.NextExpect = nextExpect
	if !before.Paused {
		after.Status = model.JobStatus(newStatus)
	}

	return &PingResult{
		Job:        &after,
		PrevStatus: before.Status,
		PrevPaused: before.Paused,
	}, nil
}

// Transition promotes a job's status, guarded by the sweep preconditions.
// Reports false without error when the precondition no longer holds.
func (r *JobRepository) Transition(ctx context.Context, id string, from, to model.JobStatus, dueBefore time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, nil
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{
		"_id":         oid,
		"status":      string(from),
		"paused":      false,
		"next_expect": bson.M{"$lt": dueBefore},
	}
	update := bson.M{"$set": bson.M{
		"status":     string(to),
		"updated_at": time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctxTimeout, filter, update)
	if err != nil {
		return false, unavailable("transition job", err)
	}

	return result.ModifiedCount > 0, nil
}

// SetPaused flips the pause overlay. Resuming also writes the recomputed
// next_expect so the job cannot be instantly swept as missing.
func (r *JobRepository) SetPaused(ctx context.Context, id string, paused bool, nextExpect time.Time) (*model.Job, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	set := bson.M{
		"paused":     paused,
		"updated_at": time.Now().UTC(),
	}
	if !paused {
		set["next_expect"] = nextExpect
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var job model.Job
	err = r.collection.FindOneAndUpdate(ctxTimeout, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, unavailable("set paused", err)
	}

	return &job, nil
}
