// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	auditstore "github.com/dalemusser/paytrack/internal/app/store/audit"
	"github.com/dalemusser/paytrack/internal/app/store/oauthstate"
	"github.com/dalemusser/paytrack/internal/app/system/indexes"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/validators"
)

// ConnectDB establishes the MongoDB connection and verifies it with a
// ping before the rest of startup proceeds.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return DBDeps{}, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeouts.Ping())
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return DBDeps{}, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase))

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: client.Database(appCfg.MongoDatabase),
	}, nil
}

// EnsureSchema creates the collections, JSON-Schema validators, and
// indexes the app relies on. Everything here is idempotent, so
// restarting the service is safe.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	if err := validators.EnsureAll(ctx, db); err != nil {
		return fmt.Errorf("ensure validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, db); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	if err := auditstore.New(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure audit indexes: %w", err)
	}
	if err := oauthstate.New(db).EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure oauth state indexes: %w", err)
	}

	logger.Info("database schema ready")
	return nil
}
