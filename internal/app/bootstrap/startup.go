// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	userstore "github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/domain/models"
)

// Startup runs one-time application initialization after DB connections
// and schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.AdminEmail != "" {
		if err := promoteAdmin(ctx, deps, appCfg.AdminEmail, logger); err != nil {
			return err
		}
	}
	return nil
}

// promoteAdmin gives the configured user the admin role. The user must
// already exist; a missing account is logged, not fatal, so a fresh
// deployment can start before anyone has registered.
func promoteAdmin(ctx context.Context, deps DBDeps, email string, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	users := userstore.New(deps.MongoDatabase)
	u, err := users.GetByEmail(ctx, normalize.Email(email))
	if errors.Is(err, mongo.ErrNoDocuments) {
		logger.Warn("admin_email user not registered yet, skipping promotion",
			zap.String("email", email))
		return nil
	}
	if err != nil {
		return err
	}
	if u.Role == models.RoleAdmin {
		return nil
	}

	if err := users.UpdateRole(ctx, u.ID, models.RoleAdmin); err != nil {
		return err
	}
	logger.Info("promoted user to admin", zap.String("email", email))
	return nil
}
