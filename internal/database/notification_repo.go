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

// NotificationRepository stores webhook delivery logs.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *MongoDB) *NotificationRepository {
	return &NotificationRepository{
		collection: db.GetCollection(CollectionNotifications),
	}
}

// InsertNotification inserts a delivery log
func (r *NotificationRepository) InsertNotification(ctx context.Context, n *model.NotificationLog) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctxTimeout, n); err != nil {
		return unavailable("insert notification", err)
	}

	return nil
}

// ListNotifications retrieves delivery logs with pagination, newest first.
// Non-positive page or limit values are treated as the first page; a
// negative skip would be rejected by the server.
func (r *NotificationRepository) ListNotifications(ctx context.Context, page, limit int) ([]model.NotificationLog, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	total, err := r.collection.CountDocuments(ctxTimeout, bson.M{})
	if err != nil {
		return nil, 0, unavailable("count notifications", err)
	}

	skip := (page - 1) * limit
	opts := options.Find().
		SetSkip(int64(skip)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctxTimeout, bson.M{}, opts)
	if err != nil {
		return nil, 0, unavailable("list notifications", err)
	}
	defer cursor.Close(ctxTimeout)

	var logs []model.NotificationLog
	if err := cursor.All(ctxTimeout, &logs); err != nil {
		return nil, 0, unavailable("decode notifications", err)
	}

	return logs, total, nil
}
