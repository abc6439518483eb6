// internal/app/policy/orgpolicy.go
package orgpolicy

import (
	"context"
	"net/http"

	"github.com/dalemusser/paytrack/internal/app/system/authz"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// requestUserID returns the context user's ObjectID, or NilObjectID when
// the request is unauthenticated or the ID is malformed.
func requestUserID(r *http.Request) primitive.ObjectID {
	u := authz.UserCtx(r)
	if u == nil {
		return primitive.NilObjectID
	}
	oid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return primitive.NilObjectID
	}
	return oid
}

// HasOfficerMembership returns true if the user holds an active membership
// with an officer-level role (officer, president, or treasurer) in the
// organization, according to the authoritative memberships collection.
func HasOfficerMembership(ctx context.Context, db *mongo.Database, orgID, userID primitive.ObjectID) (bool, error) {
	c := db.Collection("memberships")
	n, err := c.CountDocuments(ctx, bson.M{
		"org_id":  orgID,
		"user_id": userID,
		"status":  models.MemberStatusActive,
		"role": bson.M{"$in": []models.MemberRole{
			models.MemberRoleOfficer,
			models.MemberRolePresident,
			models.MemberRoleTreasurer,
		}},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsOrgOfficer reports whether the current request user can manage the
// organization day to day: admins always can; everyone else needs an
// active officer-level membership. Returns an error only for database
// failures, so callers can distinguish "not authorized" (false, nil)
// from "check failed" (false, err).
func IsOrgOfficer(ctx context.Context, db *mongo.Database, r *http.Request, orgID primitive.ObjectID) (bool, error) {
	u := authz.UserCtx(r)
	if u == nil {
		return false, nil
	}
	if u.Role == string(models.RoleAdmin) {
		return true, nil
	}
	uid := requestUserID(r)
	if uid == primitive.NilObjectID {
		return false, nil
	}
	return HasOfficerMembership(ctx, db, orgID, uid)
}

// IsFinanceOfficer reports whether the current request user may verify
// payments for the organization. This is intentionally stricter than
// IsOrgOfficer: admins qualify, otherwise the user must be the
// organization's designated president or treasurer. The authority source
// is the organization record itself, not the memberships collection, so
// an ordinary officer membership is not enough to approve money.
func IsFinanceOfficer(ctx context.Context, db *mongo.Database, r *http.Request, orgID primitive.ObjectID) (bool, error) {
	u := authz.UserCtx(r)
	if u == nil {
		return false, nil
	}
	if u.Role == string(models.RoleAdmin) {
		return true, nil
	}
	uid := requestUserID(r)
	if uid == primitive.NilObjectID {
		return false, nil
	}

	c := db.Collection("organizations")
	n, err := c.CountDocuments(ctx, bson.M{
		"_id": orgID,
		"$or": []bson.M{
			{"president_id": uid},
			{"treasurer_id": uid},
		},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CanViewPayment reports whether the current request user may see a
// payment: its owner, an officer of its organization, or an admin.
func CanViewPayment(ctx context.Context, db *mongo.Database, r *http.Request, p models.Payment) (bool, error) {
	uid := requestUserID(r)
	if uid != primitive.NilObjectID && uid == p.UserID {
		return true, nil
	}
	return IsOrgOfficer(ctx, db, r, p.OrgID)
}

// IsOwner reports whether the current request user owns the payment.
// Whether the payment is still editable is the lifecycle's concern.
func IsOwner(r *http.Request, p models.Payment) bool {
	uid := requestUserID(r)
	return uid != primitive.NilObjectID && uid == p.UserID
}

// IsActiveMember returns true if the user holds an active membership of
// any role in the organization.
func IsActiveMember(ctx context.Context, db *mongo.Database, orgID, userID primitive.ObjectID) (bool, error) {
	c := db.Collection("memberships")
	n, err := c.CountDocuments(ctx, bson.M{
		"org_id":  orgID,
		"user_id": userID,
		"status":  models.MemberStatusActive,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
