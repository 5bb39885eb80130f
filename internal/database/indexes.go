package database

import (
	"context"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateIndexes creates all necessary indexes for the collections
func CreateIndexes(ctx context.Context, db *MongoDB) error {
	slog.Info("Creating MongoDB indexes")

	if err := createJobIndexes(ctx, db); err != nil {
		return err
	}
	if err := createJobEventIndexes(ctx, db); err != nil {
		return err
	}
	if err := createNotificationIndexes(ctx, db); err != nil {
		return err
	}
	if err := createSweepLockIndexes(ctx, db); err != nil {
		return err
	}

	slog.Info("Successfully created all MongoDB indexes")
	return nil
}

func createJobIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionJobs)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_name_unique"),
		},
		{
			// The sweeper's due scan: paused + status + next_expect.
			Keys: bson.D{
				{Key: "paused", Value: 1},
				{Key: "status", Value: 1},
				{Key: "next_expect", Value: 1},
			},
			Options: options.Index().SetName("idx_due_scan"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return err
	}

	slog.Info("Created jobs indexes")
	return nil
}

func createJobEventIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionJobEvents)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "job_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_job_id_created_at"),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_created_at"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return err
	}

	slog.Info("Created job_events indexes")
	return nil
}

func createNotificationIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionNotifications)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "job_id", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_job_id_created_at"),
		},
		{
			Keys: bson.D{
				{Key: "final_status", Value: 1},
				{Key: "created_at", Value: -1},
			},
			Options: options.Index().SetName("idx_final_status_created_at"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return err
	}

	slog.Info("Created notifications indexes")
	return nil
}

func createSweepLockIndexes(ctx context.Context, db *MongoDB) error {
	collection := db.GetCollection(CollectionSweepLocks)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("idx_name_unique"),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_expires_at_ttl"),
		},
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctxTimeout, indexes); err != nil {
		return err
	}

	slog.Info("Created sweep_locks indexes")
	return nil
}
