// internal/app/bootstrap/routes.go
package bootstrap

import (
	"context"
	"net/http"

	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	authgooglefeature "github.com/dalemusser/paytrack/internal/app/features/authgoogle"
	dashboardfeature "github.com/dalemusser/paytrack/internal/app/features/dashboard"
	duesfeature "github.com/dalemusser/paytrack/internal/app/features/dues"
	errorsfeature "github.com/dalemusser/paytrack/internal/app/features/errors"
	healthfeature "github.com/dalemusser/paytrack/internal/app/features/health"
	homefeature "github.com/dalemusser/paytrack/internal/app/features/home"
	_ "github.com/dalemusser/paytrack/internal/app/features/layout"
	loginfeature "github.com/dalemusser/paytrack/internal/app/features/login"
	notificationsfeature "github.com/dalemusser/paytrack/internal/app/features/notifications"
	organizationsfeature "github.com/dalemusser/paytrack/internal/app/features/organizations"
	paymentfeature "github.com/dalemusser/paytrack/internal/app/features/payment"
	profilefeature "github.com/dalemusser/paytrack/internal/app/features/profile"
	registerfeature "github.com/dalemusser/paytrack/internal/app/features/register"
	reportsfeature "github.com/dalemusser/paytrack/internal/app/features/reports"
	transactionsfeature "github.com/dalemusser/paytrack/internal/app/features/transactions"
	membershipsvc "github.com/dalemusser/paytrack/internal/app/memberships"
	paymentsvc "github.com/dalemusser/paytrack/internal/app/payments"
	auditstore "github.com/dalemusser/paytrack/internal/app/store/audit"
	categorystore "github.com/dalemusser/paytrack/internal/app/store/categories"
	membershipstore "github.com/dalemusser/paytrack/internal/app/store/memberships"
	notificationstore "github.com/dalemusser/paytrack/internal/app/store/notifications"
	"github.com/dalemusser/paytrack/internal/app/store/oauthstate"
	organizationstore "github.com/dalemusser/paytrack/internal/app/store/organizations"
	paymentstore "github.com/dalemusser/paytrack/internal/app/store/payments"
	userstore "github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/app/system/notify"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
)

// BuildHandler constructs the root HTTP handler (router) for this
// WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup,
// and the Startup hook have completed. It initializes the template
// engine, applies session middleware, wires the shared services
// (audit log, in-app notifications, file storage), and mounts the
// feature routers.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Session manager; secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// LoadSessionUser fetches fresh user data on each request so role
	// changes and profile updates take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db))

	// Template engine boots once at startup. Dev mode enables
	// template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)

	// Audit trail: MongoDB plus structured logs, per config.
	audit := auditlog.New(auditstore.New(db), logger, auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Payment: appCfg.AuditLogPayment,
		Admin:   appCfg.AuditLogAdmin,
	})

	// In-app notifications back the header badge and the services'
	// officer/member alerts.
	notifStore := notificationstore.New(db)
	sink := notify.NewStoreSink(notifStore, logger)
	viewdata.SetUnreadCounter(func(ctx context.Context, userID string) int64 {
		uid, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			return 0
		}
		n, err := notifStore.CountUnread(ctx, uid)
		if err != nil {
			return 0
		}
		return n
	})

	// File storage for payment proofs, logos, and profile images.
	store, err := storage.NewLocal(storage.LocalConfig{BasePath: appCfg.StorageLocalPath})
	if err != nil {
		logger.Error("storage init failed", zap.Error(err))
		return nil, err
	}

	// Domain services shared by the feature handlers.
	memberSvc := membershipsvc.NewService(membershipstore.New(db), organizationstore.New(db), sink, logger)
	paySvc := paymentsvc.NewService(paymentstore.New(db), categorystore.New(db), membershipstore.New(db), sink, logger)

	googleEnabled := appCfg.GoogleClientID != ""

	r := chi.NewRouter()

	// CSRF protection for every unsafe method. The token is issued
	// per request through viewdata.BaseVM and carried by the hidden
	// field each form template renders.
	r.Use(csrf.Protect([]byte(appCfg.CSRFKey),
		csrf.Secure(secure),
		csrf.Path("/"),
	))

	// Global auth middleware: loads SessionUser into context if
	// logged in, making the current user available to all handlers
	// via auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Uploaded files (proofs, logos, profile images)
	r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))

	// Public landing page
	homeHandler := homefeature.NewHandler(logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// Authentication
	loginHandler := loginfeature.NewHandler(db, sessionMgr, errLog, audit, googleEnabled, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))
	r.Post("/logout", loginHandler.HandleLogout)

	registerHandler := registerfeature.NewHandler(db, sessionMgr, errLog, audit, logger)
	r.Mount("/register", registerfeature.Routes(registerHandler))

	if googleEnabled {
		googleHandler := authgooglefeature.NewHandler(db, sessionMgr, errLog, audit,
			oauthstate.New(db), appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, logger)
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
	}

	// Error pages
	errorsHandler := errorsfeature.NewHandler()
	r.Get("/forbidden", errorsHandler.Forbidden)
	r.Get("/unauthorized", errorsHandler.Unauthorized)
	r.NotFound(errorsHandler.NotFound)

	// Signed-in areas
	dashboardHandler := dashboardfeature.NewHandler(db, errLog, logger)
	r.Mount("/dashboard", dashboardfeature.Routes(dashboardHandler, sessionMgr))

	orgHandler := organizationsfeature.NewHandler(db, memberSvc, store, errLog, audit, logger)
	r.Mount("/organizations", organizationsfeature.Routes(orgHandler, sessionMgr))

	duesHandler := duesfeature.NewHandler(db, errLog, audit, logger)
	r.Mount("/dues", duesfeature.Routes(duesHandler, sessionMgr))

	paymentHandler := paymentfeature.NewHandler(db, paySvc, store, errLog, audit, logger)
	r.Mount("/payments", paymentfeature.Routes(paymentHandler, sessionMgr))

	transactionsHandler := transactionsfeature.NewHandler(db, errLog, logger)
	r.Mount("/transactions", transactionsfeature.Routes(transactionsHandler, sessionMgr))

	reportsHandler := reportsfeature.NewHandler(db, errLog, logger)
	r.Mount("/reports", reportsfeature.Routes(reportsHandler, sessionMgr))

	notificationsHandler := notificationsfeature.NewHandler(db, errLog, logger)
	r.Mount("/notifications", notificationsfeature.Routes(notificationsHandler, sessionMgr))

	profileHandler := profilefeature.NewHandler(db, store, errLog, audit, logger)
	r.Mount("/profile", profilefeature.Routes(profileHandler, sessionMgr))

	return r, nil
}
