// internal/app/store/payments/paymentstore.go
package paymentstore

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
	return &Store{c: db.Collection("payments")}
}

// Create inserts a payment record. New payments always start pending;
// verification is a separate, guarded transition.
func (s *Store) Create(ctx context.Context, p models.Payment) (models.Payment, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.Status = models.PaymentPending
	p.VerifiedBy = nil
	p.VerifiedAt = nil
	if p.PaymentDate.IsZero() {
		p.PaymentDate = now
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, p)
	if err != nil {
		return models.Payment{}, err
	}
	return p, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Payment, error) {
	var p models.Payment
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		return models.Payment{}, err
	}
	return p, nil
}

// PendingUpdate carries the fields an owner may change while a payment
// is still pending.
type PendingUpdate struct {
	Amount          float64
	Method          models.PaymentMethod
	ReferenceNumber string
	Notes           string
	ProofPath       string // empty keeps the existing proof
}

// UpdatePending applies an owner edit with a guarded conditional update:
// the filter requires the payment to belong to userID and still be
// pending. Returns the matched count; zero means the payment was
// missing, owned by someone else, or already verified.
func (s *Store) UpdatePending(ctx context.Context, id, userID primitive.ObjectID, upd PendingUpdate) (int64, error) {
	set := bson.M{
		"amount":           upd.Amount,
		"method":           upd.Method,
		"reference_number": upd.ReferenceNumber,
		"notes":            upd.Notes,
		"updated_at":       time.Now().UTC(),
	}
	if upd.ProofPath != "" {
		set["proof_path"] = upd.ProofPath
	}

	res, err := s.c.UpdateOne(ctx, bson.M{
		"_id":     id,
		"user_id": userID,
		"status":  models.PaymentPending,
	}, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// Verify transitions a pending payment to a terminal status with a guarded
// conditional update: the filter requires status to still be pending, so
// two concurrent verifiers cannot both win. Returns the matched count;
// zero means the payment was missing or already decided.
func (s *Store) Verify(ctx context.Context, id primitive.ObjectID, status models.PaymentStatus, verifierID primitive.ObjectID, reason string) (int64, error) {
	now := time.Now().UTC()
	set := bson.M{
		"status":      status,
		"verified_by": verifierID,
		"verified_at": now,
		"updated_at":  now,
	}
	if reason != "" {
		set["notes"] = reason
	}

	res, err := s.c.UpdateOne(ctx, bson.M{
		"_id":    id,
		"status": models.PaymentPending,
	}, bson.M{"$set": set})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// Delete removes a payment by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListFilter selects which payments List returns.
type ListFilter struct {
	UserID     *primitive.ObjectID
	OrgID      *primitive.ObjectID
	CategoryID *primitive.ObjectID
	Status     models.PaymentStatus
	Method     models.PaymentMethod
	From       *time.Time // payment_date >= From
	To         *time.Time // payment_date <= To
	Limit      int64
	Skip       int64
}

func (f ListFilter) query() bson.M {
	query := bson.M{}
	if f.UserID != nil {
		query["user_id"] = f.UserID
	}
	if f.OrgID != nil {
		query["org_id"] = f.OrgID
	}
	if f.CategoryID != nil {
		query["category_id"] = f.CategoryID
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Method != "" {
		query["method"] = f.Method
	}
	if f.From != nil || f.To != nil {
		dateQuery := bson.M{}
		if f.From != nil {
			dateQuery["$gte"] = *f.From
		}
		if f.To != nil {
			dateQuery["$lte"] = *f.To
		}
		query["payment_date"] = dateQuery
	}
	return query
}

// List returns payments matching the filter, most recent first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]models.Payment, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "payment_date", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Skip)

	cur, err := s.c.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var payments []models.Payment
	if err := cur.All(ctx, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// Count returns the number of payments matching the filter.
func (s *Store) Count(ctx context.Context, filter ListFilter) (int64, error) {
	return s.c.CountDocuments(ctx, filter.query())
}

// HasPaymentFor reports whether the user has a completed or pending payment
// for the given category. Rejected and refunded payments don't count, so
// those members still appear in the unpaid list.
func (s *Store) HasPaymentFor(ctx context.Context, userID, categoryID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"user_id":     userID,
		"category_id": categoryID,
		"status": bson.M{"$in": []models.PaymentStatus{
			models.PaymentCompleted,
			models.PaymentPending,
		}},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
