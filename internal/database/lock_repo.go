package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dandantas/vigil/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// sweepLockName is the single well-known lock document shared by replicas.
const sweepLockName = "liveness-sweep"

// LockRepository coordinates sweep leadership between replicas sharing one
// store, so an overdue job produces one escalation event, not one per
// replica. Single-instance deployments can leave it disabled.
type LockRepository struct {
	collection *mongo.Collection
}

// NewLockRepository creates a new lock repository
func NewLockRepository(db *MongoDB) *LockRepository {
	return &LockRepository{
		collection: db.GetCollection(CollectionSweepLocks),
	}
}

// AcquireSweepLock attempts to take the sweep leader lock for one tick.
// Uses FindOneAndUpdate with upsert for atomic acquisition; returns false
// when another holder's unexpired lock exists.
func (r *LockRepository) AcquireSweepLock(ctx context.Context, holder string, ttl time.Duration) (bool, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now().UTC()

	filter := bson.M{
		"name": sweepLockName,
		"$or": bson.A{
			bson.M{"expires_at": bson.M{"$lt": now}},
			bson.M{"expires_at": bson.M{"$exists": false}},
			bson.M{"locked_by": holder},
		},
	}

	update := bson.M{"$set": bson.M{
		"name":       sweepLockName,
		"locked_by":  holder,
		"locked_at":  now,
		"expires_at": now.Add(ttl),
	}}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var lock model.SweepLock
	err := r.collection.FindOneAndUpdate(ctxTimeout, filter, update, opts).Decode(&lock)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			// Upsert raced another replica inserting the lock document.
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}

	return lock.LockedBy == holder, nil
}

// ReleaseSweepLock drops the lock if this holder owns it. Called on
// graceful shutdown; a crashed holder's lock simply expires.
func (r *LockRepository) ReleaseSweepLock(ctx context.Context, holder string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.collection.DeleteOne(ctxTimeout, bson.M{
		"name":      sweepLockName,
		"locked_by": holder,
	})
	if err != nil {
		return fmt.Errorf("failed to release sweep lock: %w", err)
	}

	if result.DeletedCount > 0 {
		slog.Debug("Released sweep lock", "holder", holder)
	}

	return nil
}
