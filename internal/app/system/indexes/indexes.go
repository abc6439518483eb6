// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureUsers(ctx, db); err != nil {
		problems = append(problems, "users: "+err.Error())
	}
	if err := ensureOrganizations(ctx, db); err != nil {
		problems = append(problems, "organizations: "+err.Error())
	}
	if err := ensureMemberships(ctx, db); err != nil {
		problems = append(problems, "memberships: "+err.Error())
	}
	if err := ensureCategories(ctx, db); err != nil {
		problems = append(problems, "payment_categories: "+err.Error())
	}
	if err := ensurePayments(ctx, db); err != nil {
		problems = append(problems, "payments: "+err.Error())
	}
	if err := ensureNotifications(ctx, db); err != nil {
		problems = append(problems, "notifications: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := a != nil && *a
	bv := b != nil && *b
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	// Load existing indexes once per collection.
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err == nil {
		for cur.Next(ctx) {
			var idx existingIndex
			if err := cur.Decode(&idx); err != nil {
				zap.L().Warn("failed to decode existing index",
					zap.String("collection", coll.Name()),
					zap.Error(err))
				continue
			}
			existing[keySig(idx.Key)] = idx
		}
		cur.Close(ctx)
	}

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			desiredUnique = m.Options.Unique
		}
		desiredSig := keySig(m.Keys.(bson.D))
		start := time.Now()

		if ex, ok := existing[desiredSig]; ok {
			if sameBoolPtr(desiredUnique, ex.Unique) {
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig))
				continue
			}

			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
		}

		if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
			if isDuplicateKeyErr(err) && desiredUnique != nil && *desiredUnique {
				errs = append(errs, fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)", coll.Name(), desiredName))
			} else {
				errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), desiredName, err))
			}
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                             */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("users")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Email and student ID are each unique across all accounts.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_email"),
		},
		{
			Keys:    bson.D{{Key: "student_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_studentid"),
		},

		// Member lists: role filter + folded-name sort + stable tiebreak.
		{
			Keys: bson.D{
				{Key: "role", Value: 1},
				{Key: "full_name_ci", Value: 1},
				{Key: "_id", Value: 1},
			},
			Options: options.Index().SetName("idx_users_role_fullnameci_id"),
		},
	})
}

func ensureOrganizations(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("organizations")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Enforce global uniqueness of organization names (case/diacritics folded).
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_orgs_nameci"),
		},
		// Filter by status, then name_ci sort
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_orgs_status_nameci_id"),
		},
	})
}

func ensureMemberships(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("memberships")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// One membership per user per organization. The payment lifecycle
		// relies on this to keep join requests idempotent.
		{
			Keys:    bson.D{{Key: "org_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_memberships_org_user"),
		},
		// Member lists and officer fan-out: org + status (+ role scan).
		{
			Keys: bson.D{
				{Key: "org_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "role", Value: 1},
			},
			Options: options.Index().SetName("idx_memberships_org_status_role"),
		},
		// A user's organizations (dashboard, dues).
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_memberships_user_status"),
		},
	})
}

func ensureCategories(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("payment_categories")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// No duplicate category names inside the same org (folded via name_ci).
		{
			Keys:    bson.D{{Key: "org_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_categories_org_nameci"),
		},
		// Dues reminders scan by due date inside the member's orgs.
		{
			Keys:    bson.D{{Key: "org_id", Value: 1}, {Key: "due_date", Value: 1}},
			Options: options.Index().SetName("idx_categories_org_duedate"),
		},
	})
}

func ensurePayments(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("payments")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// A student's payment history, newest first.
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "payment_date", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("idx_payments_user_date"),
		},
		// Org transaction lists with status filter.
		{
			Keys: bson.D{
				{Key: "org_id", Value: 1},
				{Key: "status", Value: 1},
				{Key: "payment_date", Value: -1},
			},
			Options: options.Index().SetName("idx_payments_org_status_date"),
		},
		// Unpaid-member checks: has this user paid this category?
		{
			Keys: bson.D{
				{Key: "category_id", Value: 1},
				{Key: "user_id", Value: 1},
				{Key: "status", Value: 1},
			},
			Options: options.Index().SetName("idx_payments_category_user_status"),
		},
		// Verification queues: all pending across orgs.
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "payment_date", Value: -1},
			},
			Options: options.Index().SetName("idx_payments_status_date"),
		},
	})
}

func ensureNotifications(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("notifications")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Notification lists, newest first.
		{
			Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "created_at", Value: -1},
				{Key: "_id", Value: -1},
			},
			Options: options.Index().SetName("idx_notifications_user_created"),
		},
		// Unread badge counts.
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("idx_notifications_user_isread"),
		},
	})
}
