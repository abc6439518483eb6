// internal/app/store/organizations/organizationstore.go
package organizationstore

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

var ErrDuplicateOrganization = errors.New("an organization with this name already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organizations")}
}

func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.NameCI = text.Fold(org.Name)
	if org.Status == "" {
		org.Status = models.OrgStatusActive
	}
	org.CreatedAt = now
	org.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, org)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateOrganization
		}
		return models.Organization{}, err
	}
	return org, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org)
	if err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// GetByIDs loads multiple organizations by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Organization, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Update modifies an organization's mutable fields and refreshes UpdatedAt.
// Empty fields are left unchanged; officer assignments use SetOfficers.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, org models.Organization) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if org.Name != "" {
		set["name"] = org.Name
		set["name_ci"] = text.Fold(org.Name)
	}
	if org.Acronym != "" {
		set["acronym"] = org.Acronym
	}
	if org.Description != "" {
		set["description"] = org.Description
	}
	if org.LogoPath != "" {
		set["logo_path"] = org.LogoPath
	}
	if org.MembershipFee > 0 {
		set["membership_fee"] = org.MembershipFee
	}
	if org.Status != "" {
		set["status"] = org.Status
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateOrganization
		}
		return err
	}
	return nil
}

// SetOfficers assigns the adviser, president, and treasurer references.
// Nil pointers clear the corresponding assignment.
func (s *Store) SetOfficers(ctx context.Context, id primitive.ObjectID, adviserID, presidentID, treasurerID *primitive.ObjectID) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"adviser_id":   adviserID,
		"president_id": presidentID,
		"treasurer_id": treasurerID,
		"updated_at":   time.Now().UTC(),
	}})
	return err
}

// Delete removes an organization by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// ExistsByNameCI checks if an organization with the given case-insensitive name exists.
func (s *Store) ExistsByNameCI(ctx context.Context, nameCI string) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{"name_ci": nameCI}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// NameExistsForOther checks if an organization with the given name exists,
// excluding the specified ID. Used by update validation.
func (s *Store) NameExistsForOther(ctx context.Context, nameCI string, excludeID primitive.ObjectID) (bool, error) {
	err := s.c.FindOne(ctx, bson.M{
		"name_ci": nameCI,
		"_id":     bson.M{"$ne": excludeID},
	}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListFilter selects which organizations List returns.
type ListFilter struct {
	Status models.OrgStatus
	Search string // matched against folded name prefix
	Limit  int64
	Skip   int64
}

// List returns organizations matching the filter, ordered by folded name.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]models.Organization, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Search != "" {
		query["name_ci"] = bson.M{"$regex": "^" + text.Fold(filter.Search)}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetSkip(filter.Skip)

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var orgs []models.Organization
	if err := cur.All(ctx, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// Count returns the number of organizations with the given status,
// or all organizations when status is empty.
func (s *Store) Count(ctx context.Context, status models.OrgStatus) (int64, error) {
	query := bson.M{}
	if status != "" {
		query["status"] = status
	}
	return s.c.CountDocuments(ctx, query)
}
