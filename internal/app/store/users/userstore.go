// internal/app/store/users/userstore.go
package userstore

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

var (
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrDuplicateStudentID = errors.New("an account with this student ID already exists")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// Create inserts a new user. The caller is responsible for hashing the
// password and normalizing email and student ID beforehand.
func (s *Store) Create(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.FullNameCI = text.Fold(u.FullName)
	if u.Role == "" {
		u.Role = models.RoleStudent
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	_, err := s.c.InsertOne(ctx, u)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.User{}, s.classifyDup(ctx, u)
		}
		return models.User{}, err
	}
	return u, nil
}

// classifyDup determines which unique field caused a duplicate-key error
// so the registration form can show a specific message.
func (s *Store) classifyDup(ctx context.Context, u models.User) error {
	if u.StudentID != "" {
		if err := s.c.FindOne(ctx, bson.M{"student_id": u.StudentID}).Err(); err == nil {
			return ErrDuplicateStudentID
		}
	}
	return ErrDuplicateEmail
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByIDs loads multiple users by their ObjectIDs.
func (s *Store) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetByEmail looks up a user by normalized email.
func (s *Store) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// GetByStudentID looks up a user by normalized student ID.
func (s *Store) GetByStudentID(ctx context.Context, studentID string) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"student_id": studentID}).Decode(&u)
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// UpdateProfile modifies a user's profile fields and refreshes UpdatedAt.
// Empty fields are left unchanged.
func (s *Store) UpdateProfile(ctx context.Context, id primitive.ObjectID, u models.User) error {
	set := bson.M{
		"updated_at": time.Now().UTC(),
	}
	if u.FullName != "" {
		set["full_name"] = u.FullName
		set["full_name_ci"] = text.Fold(u.FullName)
	}
	if u.Email != "" {
		set["email"] = u.Email
	}
	if u.Department != "" {
		set["department"] = u.Department
	}
	if u.YearLevel != "" {
		set["year_level"] = u.YearLevel
	}
	if u.ProfileImage != "" {
		set["profile_image"] = u.ProfileImage
	}
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (s *Store) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	}})
	return err
}

// UpdateRole changes a user's account role. Admin only.
func (s *Store) UpdateRole(ctx context.Context, id primitive.ObjectID, role models.Role) error {
	_, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now().UTC(),
	}})
	return err
}

// ListFilter selects which users List returns.
type ListFilter struct {
	Role   models.Role
	Search string // matched against folded full name prefix
	Limit  int64
	Skip   int64
}

// List returns users matching the filter, ordered by folded full name.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]models.User, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.Search != "" {
		query["full_name_ci"] = bson.M{"$regex": "^" + text.Fold(filter.Search)}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit).
		SetSkip(filter.Skip)

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Count returns the number of users matching the role filter.
func (s *Store) Count(ctx context.Context, role models.Role) (int64, error) {
	query := bson.M{}
	if role != "" {
		query["role"] = role
	}
	return s.c.CountDocuments(ctx, query)
}

// Delete removes a user by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
