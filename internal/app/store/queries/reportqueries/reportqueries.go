// internal/app/store/queries/reportqueries/reportqueries.go
//
// Cross-collection report queries: unpaid members per category and
// membership rollups for organization reports.
package reportqueries

import (
	"context"

	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type Queries struct {
	memberships *mongo.Collection
	payments    *mongo.Collection
}

func New(db *mongo.Database) *Queries {
	return &Queries{
		memberships: db.Collection("memberships"),
		payments:    db.Collection("payments"),
	}
}

// UnpaidMembers returns the user IDs of active members of the organization
// with no completed or pending payment for the category. A rejected or
// refunded payment does not count as paid, so those members still appear.
func (q *Queries) UnpaidMembers(ctx context.Context, orgID, categoryID primitive.ObjectID) ([]primitive.ObjectID, error) {
	// All user IDs with a counting payment for this category.
	cur, err := q.payments.Find(ctx, bson.M{
		"org_id":      orgID,
		"category_id": categoryID,
		"status": bson.M{"$in": []models.PaymentStatus{
			models.PaymentCompleted,
			models.PaymentPending,
		}},
	})
	if err != nil {
		return nil, err
	}
	paid := make(map[primitive.ObjectID]struct{})
	for cur.Next(ctx) {
		var row struct {
			UserID primitive.ObjectID `bson:"user_id"`
		}
		if cur.Decode(&row) == nil {
			paid[row.UserID] = struct{}{}
		}
	}
	cur.Close(ctx)
	if err := cur.Err(); err != nil {
		return nil, err
	}

	// Active members not in the paid set.
	mcur, err := q.memberships.Find(ctx, bson.M{
		"org_id": orgID,
		"status": models.MemberStatusActive,
	})
	if err != nil {
		return nil, err
	}
	defer mcur.Close(ctx)

	var unpaid []primitive.ObjectID
	for mcur.Next(ctx) {
		var row struct {
			UserID primitive.ObjectID `bson:"user_id"`
		}
		if mcur.Decode(&row) != nil {
			continue
		}
		if _, ok := paid[row.UserID]; !ok {
			unpaid = append(unpaid, row.UserID)
		}
	}
	return unpaid, mcur.Err()
}

// MembershipCounts summarizes an organization's memberships by status.
type MembershipCounts struct {
	Active   int64
	Pending  int64
	Inactive int64
}

// CountMemberships returns membership counts per status for an organization.
// All three statuses are present in the result, zero-filled when absent.
func (q *Queries) CountMemberships(ctx context.Context, orgID primitive.ObjectID) (MembershipCounts, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"org_id": orgID}}},
		bson.D{{Key: "$group", Value: bson.M{
			"_id":   "$status",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cur, err := q.memberships.Aggregate(ctx, pipeline)
	if err != nil {
		return MembershipCounts{}, err
	}
	defer cur.Close(ctx)

	var counts MembershipCounts
	for cur.Next(ctx) {
		var row struct {
			Status models.MemberStatus `bson:"_id"`
			Count  int64               `bson:"count"`
		}
		if cur.Decode(&row) != nil {
			continue
		}
		switch row.Status {
		case models.MemberStatusActive:
			counts.Active = row.Count
		case models.MemberStatusPending:
			counts.Pending = row.Count
		case models.MemberStatusInactive:
			counts.Inactive = row.Count
		}
	}
	return counts, cur.Err()
}

// OrgIDsForUser returns the organization IDs where the user holds an
// active membership. Used to scope dashboards and dues reminders.
func (q *Queries) OrgIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := q.memberships.Find(ctx, bson.M{
		"user_id": userID,
		"status":  models.MemberStatusActive,
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var orgIDs []primitive.ObjectID
	for cur.Next(ctx) {
		var row struct {
			OrgID primitive.ObjectID `bson:"org_id"`
		}
		if cur.Decode(&row) == nil {
			orgIDs = append(orgIDs, row.OrgID)
		}
	}
	return orgIDs, cur.Err()
}
