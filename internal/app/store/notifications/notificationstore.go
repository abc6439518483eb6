// internal/app/store/notifications/notificationstore.go
package notificationstore

import (
	"context"
	"time"

	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("notifications")}
}

// Create inserts a notification for a single user.
func (s *Store) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	n.ID = primitive.NewObjectID()
	n.IsRead = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, n)
	if err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

// CreateMany inserts one notification per recipient. Used for officer
// fan-out; an empty recipient list is a no-op.
func (s *Store) CreateMany(ctx context.Context, ns []models.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(ns))
	for i := range ns {
		ns[i].ID = primitive.NewObjectID()
		ns[i].IsRead = false
		if ns[i].CreatedAt.IsZero() {
			ns[i].CreatedAt = now
		}
		docs = append(docs, ns[i])
	}
	_, err := s.c.InsertMany(ctx, docs)
	return err
}

// ListForUser returns a user's notifications, most recent first.
func (s *Store) ListForUser(ctx context.Context, userID primitive.ObjectID, limit, skip int64) ([]models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)

	cur, err := s.c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountUnread returns the number of unread notifications for a user.
func (s *Store) CountUnread(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"user_id": userID, "is_read": false})
}

// MarkRead marks a single notification read. The filter includes the
// user id so one user cannot mark another's notifications. Returns the
// matched count.
func (s *Store) MarkRead(ctx context.Context, id, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateOne(ctx, bson.M{
		"_id":     id,
		"user_id": userID,
	}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// MarkAllRead marks all of a user's notifications read. Returns the
// number of notifications updated.
func (s *Store) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.UpdateMany(ctx, bson.M{
		"user_id": userID,
		"is_read": false,
	}, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a notification, scoped to its owner.
func (s *Store) Delete(ctx context.Context, id, userID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
