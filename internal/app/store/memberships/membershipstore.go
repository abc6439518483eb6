// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/paytrack/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrAlreadyMember is returned when a join request hits the unique
// (org_id, user_id) index.
var ErrAlreadyMember = errors.New("user already has a membership in this organization")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("memberships")}
}

// Create inserts a membership. New memberships default to role member
// and status pending until an officer approves them.
func (s *Store) Create(ctx context.Context, m models.Membership) (models.Membership, error) {
	now := time.Now().UTC()
	m.ID = primitive.NewObjectID()
	if m.Role == "" {
		m.Role = models.MemberRoleMember
	}
	if m.Status == "" {
		m.Status = models.MemberStatusPending
	}
	m.JoinedAt = now
	m.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, m)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Membership{}, ErrAlreadyMember
		}
		return models.Membership{}, err
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Membership, error) {
	var m models.Membership
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// Get returns the membership for a user in an organization.
func (s *Store) Get(ctx context.Context, orgID, userID primitive.ObjectID) (models.Membership, error) {
	var m models.Membership
	err := s.c.FindOne(ctx, bson.M{"org_id": orgID, "user_id": userID}).Decode(&m)
	if err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// GetActive returns the membership only if it is active.
func (s *Store) GetActive(ctx context.Context, orgID, userID primitive.ObjectID) (models.Membership, error) {
	var m models.Membership
	err := s.c.FindOne(ctx, bson.M{
		"org_id":  orgID,
		"user_id": userID,
		"status":  models.MemberStatusActive,
	}).Decode(&m)
	if err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// SetStatus updates a membership's status. Returns the matched count so
// callers can detect a missing membership.
func (s *Store) SetStatus(ctx context.Context, id primitive.ObjectID, status models.MemberStatus) (int64, error) {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// SetRole updates a membership's role within the organization.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role models.MemberRole) (int64, error) {
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// Delete removes a membership by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ListByOrg returns memberships in an organization, optionally filtered
// by status, ordered by join time.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID, status models.MemberStatus) ([]models.Membership, error) {
	query := bson.M{"org_id": orgID}
	if status != "" {
		query["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByUser returns a user's memberships across organizations.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID, status models.MemberStatus) ([]models.Membership, error) {
	query := bson.M{"user_id": userID}
	if status != "" {
		query["status"] = status
	}
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveOfficers returns active memberships holding an officer-level role
// (officer, president, or treasurer) in the organization. Used for
// notification fan-out on payment submission and join requests.
func (s *Store) ActiveOfficers(ctx context.Context, orgID primitive.ObjectID) ([]models.Membership, error) {
	query := bson.M{
		"org_id": orgID,
		"status": models.MemberStatusActive,
		"role": bson.M{"$in": []models.MemberRole{
			models.MemberRoleOfficer,
			models.MemberRolePresident,
			models.MemberRoleTreasurer,
		}},
	}
	cur, err := s.c.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Membership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountByOrg returns the number of memberships in an organization with
// the given status, or all when status is empty.
func (s *Store) CountByOrg(ctx context.Context, orgID primitive.ObjectID, status models.MemberStatus) (int64, error) {
	query := bson.M{"org_id": orgID}
	if status != "" {
		query["status"] = status
	}
	return s.c.CountDocuments(ctx, query)
}
