// internal/app/store/categories/categorystore.go
package categorystore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/paytrack/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var ErrDuplicateCategory = errors.New("a payment category with this name already exists in the organization")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("payment_categories")}
}

func (s *Store) Create(ctx context.Context, cat models.PaymentCategory) (models.PaymentCategory, error) {
	now := time.Now().UTC()
	cat.ID = primitive.NewObjectID()
	cat.NameCI = text.Fold(cat.Name)
	if cat.Recurrence == "" {
		cat.Recurrence = models.RecurrenceOneTime
	}
	cat.CreatedAt = now
	cat.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, cat)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.PaymentCategory{}, ErrDuplicateCategory
		}
		return models.PaymentCategory{}, err
	}
	return cat, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.PaymentCategory, error) {
	var cat models.PaymentCategory
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&cat)
	if err != nil {
		return models.PaymentCategory{}, err
	}
	return cat, nil
}

// GetByIDs loads multiple categories by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.PaymentCategory, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var cats []models.PaymentCategory
	if err := cur.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// Update modifies a category's mutable fields and refreshes UpdatedAt.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, cat models.PaymentCategory) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if cat.Name != "" {
		set["name"] = cat.Name
		set["name_ci"] = text.Fold(cat.Name)
	}
	if cat.Description != "" {
		set["description"] = cat.Description
	}
	if cat.Amount > 0 {
		set["amount"] = cat.Amount
	}
	if cat.DueDate != nil {
		set["due_date"] = cat.DueDate
	}
	if cat.Recurrence != "" {
		set["recurrence"] = cat.Recurrence
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateCategory
		}
		return err
	}
	return nil
}

// Delete removes a category by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByOrg returns an organization's categories ordered by folded name.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.PaymentCategory, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"org_id": orgID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var cats []models.PaymentCategory
	if err := cur.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// DueSoon returns categories in the given orgs whose due date falls within
// the window starting now. Used for dues reminders on the dashboard.
func (s *Store) DueSoon(ctx context.Context, orgIDs []primitive.ObjectID, window time.Duration) ([]models.PaymentCategory, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	query := bson.M{
		"org_id": bson.M{"$in": orgIDs},
		"due_date": bson.M{
			"$gte": now,
			"$lte": now.Add(window),
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var cats []models.PaymentCategory
	if err := cur.All(ctx, &cats); err != nil {
		return nil, err
	}
	return cats, nil
}
