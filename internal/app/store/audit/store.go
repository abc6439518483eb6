// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryAuth    = "auth"
	CategoryAdmin   = "admin"
	CategoryPayment = "payment"
)

// Auth event types
const (
	EventLoginSuccess             = "login_success"
	EventLoginFailedUserNotFound  = "login_failed_user_not_found"
	EventLoginFailedWrongPassword = "login_failed_wrong_password"
	EventLoginFailedRateLimit     = "login_failed_rate_limit"
	EventLogout                   = "logout"
	EventUserRegistered           = "user_registered"
	EventPasswordChanged          = "password_changed"
)

// Payment event types
const (
	EventPaymentSubmitted = "payment_submitted"
	EventPaymentUpdated   = "payment_updated"
	EventPaymentApproved  = "payment_approved"
	EventPaymentRejected  = "payment_rejected"
)

// Admin event types
const (
	EventOrgCreated            = "org_created"
	EventOrgUpdated            = "org_updated"
	EventCategoryCreated       = "category_created"
	EventCategoryUpdated       = "category_updated"
	EventMembershipRequested   = "membership_requested"
	EventMembershipApproved    = "membership_approved"
	EventMembershipRoleChanged = "membership_role_changed"
	EventMembershipRemoved     = "membership_removed"
	EventUserUpdated           = "user_updated"
)

// Event represents an audit event.
type Event struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty"`
	Timestamp      time.Time           `bson:"timestamp"`
	OrganizationID *primitive.ObjectID `bson:"organization_id,omitempty"`

	// Event classification
	Category  string `bson:"category"`
	EventType string `bson:"event_type"`

	// Who
	UserID  *primitive.ObjectID `bson:"user_id,omitempty"`  // affected user
	ActorID *primitive.ObjectID `bson:"actor_id,omitempty"` // who performed the action

	// Context
	IP        string `bson:"ip"`
	UserAgent string `bson:"user_agent,omitempty"`

	// Outcome
	Success       bool   `bson:"success"`
	FailureReason string `bson:"failure_reason,omitempty"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	OrganizationID *primitive.ObjectID
	UserID         *primitive.ObjectID
	Category       string
	EventType      string
	StartTime      *time.Time
	EndTime        *time.Time
	Limit          int64
	Offset         int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "organization_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

// Query retrieves audit events matching the given filter, most recent first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	query := bson.M{}

	if filter.OrganizationID != nil {
		query["organization_id"] = filter.OrganizationID
	}
	if filter.UserID != nil {
		query["user_id"] = filter.UserID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}

	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cur, err := s.c.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var events []Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// Count returns the number of events matching the filter.
func (s *Store) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	query := bson.M{}
	if filter.OrganizationID != nil {
		query["organization_id"] = filter.OrganizationID
	}
	if filter.UserID != nil {
		query["user_id"] = filter.UserID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	return s.c.CountDocuments(ctx, query)
}
