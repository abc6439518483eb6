// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	// Core collections this app uses
	ensure("users", usersSchema())
	ensure("organizations", orgsSchema())
	ensure("memberships", membershipsSchema())
	ensure("payment_categories", categoriesSchema())
	ensure("payments", paymentsSchema())
	ensure("notifications", notificationsSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("audit_events", nil)
	ensure("oauth_states", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"student_id", "full_name", "email", "role"},
			"properties": bson.M{
				"student_id":   bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"full_name":    bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"full_name_ci": bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"email":        bson.M{"bsonType": "string", "minLength": 3},
				"role":         bson.M{"enum": bson.A{"student", "officer", "adviser", "admin"}},
				"department":   bson.M{"bsonType": "string"},
				"year_level":   bson.M{"bsonType": "string"},
			},
		},
	}
}

func orgsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"name", "name_ci", "status"},
			"properties": bson.M{
				"name":           bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":        bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"status":         bson.M{"enum": bson.A{"active", "inactive"}},
				"membership_fee": bson.M{"bsonType": bson.A{"double", "int", "long", "decimal"}, "minimum": 0},
			},
		},
	}
}

func membershipsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"org_id", "user_id", "role", "status"},
			"properties": bson.M{
				"org_id":    bson.M{"bsonType": "objectId"},
				"user_id":   bson.M{"bsonType": "objectId"},
				"role":      bson.M{"enum": bson.A{"member", "officer", "president", "treasurer"}},
				"status":    bson.M{"enum": bson.A{"pending", "active", "inactive"}},
				"joined_at": bson.M{"bsonType": "date"},
			},
		},
	}
}

func categoriesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"org_id", "name", "name_ci", "amount"},
			"properties": bson.M{
				"org_id":     bson.M{"bsonType": "objectId"},
				"name":       bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"name_ci":    bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"},
				"amount":     bson.M{"bsonType": bson.A{"double", "int", "long", "decimal"}, "minimum": 0},
				"recurrence": bson.M{"enum": bson.A{"one-time", "monthly", "semestral", "annual"}},
			},
		},
	}
}

func paymentsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "org_id", "category_id", "amount", "method", "status"},
			"properties": bson.M{
				"user_id":     bson.M{"bsonType": "objectId"},
				"org_id":      bson.M{"bsonType": "objectId"},
				"category_id": bson.M{"bsonType": "objectId"},
				"amount":      bson.M{"bsonType": bson.A{"double", "int", "long", "decimal"}, "minimum": 0},
				"method":      bson.M{"enum": bson.A{"cash", "gcash", "bank_transfer", "other"}},
				"status":      bson.M{"enum": bson.A{"pending", "completed", "rejected", "refunded"}},
			},
		},
	}
}

func notificationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "title", "message", "type"},
			"properties": bson.M{
				"user_id": bson.M{"bsonType": "objectId"},
				"title":   bson.M{"bsonType": "string", "minLength": 1},
				"message": bson.M{"bsonType": "string"},
				"type":    bson.M{"enum": bson.A{"payment", "announcement", "reminder", "other"}},
				"is_read": bson.M{"bsonType": "bool"},
			},
		},
	}
}
