package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Calls chain: an existing route context is reused so multi-parameter
// routes can be built up one parameter at a time.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(key, value)
	return r
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateOrganization creates an active test organization with the given name.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:            primitive.NewObjectID(),
		Name:          name,
		NameCI:        text.Fold(name),
		Acronym:       "ORG",
		MembershipFee: 150,
		Status:        models.OrgStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	_, err := f.db.Collection("organizations").InsertOne(ctx, org)
	if err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}
	return org
}

// CreateUser creates a test user with the given name, student ID, and role.
func (f *Fixtures) CreateUser(ctx context.Context, fullName, studentID string, role models.Role) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:           primitive.NewObjectID(),
		StudentID:    studentID,
		FullName:     fullName,
		FullNameCI:   text.Fold(fullName),
		Email:        studentID + "@test.edu",
		PasswordHash: "not-a-real-hash",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateMembership creates a membership with the given role and status.
func (f *Fixtures) CreateMembership(ctx context.Context, orgID, userID primitive.ObjectID, role models.MemberRole, status models.MemberStatus) models.Membership {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.Membership{
		ID:        primitive.NewObjectID(),
		OrgID:     orgID,
		UserID:    userID,
		Role:      role,
		Status:    status,
		JoinedAt:  now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("memberships").InsertOne(ctx, m)
	if err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// CreateCategory creates a payment category for the organization.
func (f *Fixtures) CreateCategory(ctx context.Context, orgID primitive.ObjectID, name string, amount float64) models.PaymentCategory {
	f.t.Helper()

	now := time.Now().UTC()
	cat := models.PaymentCategory{
		ID:         primitive.NewObjectID(),
		OrgID:      orgID,
		Name:       name,
		NameCI:     text.Fold(name),
		Amount:     amount,
		Recurrence: models.RecurrenceOneTime,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := f.db.Collection("payment_categories").InsertOne(ctx, cat)
	if err != nil {
		f.t.Fatalf("failed to create test category: %v", err)
	}
	return cat
}

// CreatePayment creates a payment with the given status and payment date.
func (f *Fixtures) CreatePayment(ctx context.Context, userID, orgID, categoryID primitive.ObjectID, amount float64, status models.PaymentStatus, paymentDate time.Time) models.Payment {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Payment{
		ID:          primitive.NewObjectID(),
		UserID:      userID,
		OrgID:       orgID,
		CategoryID:  categoryID,
		Amount:      amount,
		Method:      models.MethodCash,
		Status:      status,
		PaymentDate: paymentDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := f.db.Collection("payments").InsertOne(ctx, p)
	if err != nil {
		f.t.Fatalf("failed to create test payment: %v", err)
	}
	return p
}
