// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/paytrack/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for authentication events (login, logout, register).
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Payment controls logging for payment lifecycle events (submit, edit, verify).
	// Same values as Auth.
	Payment string
	// Admin controls logging for admin action events (org/category CRUD, membership changes).
	// Same values as Auth.
	Admin string
}

// Logger provides convenience methods for logging audit events.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.OrganizationID != nil {
		fields = append(fields, zap.String("organization_id", event.OrganizationID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryPayment:
		setting = l.config.Payment
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = "all"
	}

	if setting == "off" {
		return
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"email": email},
	})
}

// LoginFailedUserNotFound logs a failed login due to no matching account.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_email": attemptedEmail},
	})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "wrong password",
		Details:       map[string]string{"email": email},
	})
}

// LoginFailedRateLimit logs a failed login due to rate limiting.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email, limitType string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedRateLimit,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "rate limit exceeded",
		Details: map[string]string{
			"email":      email,
			"limit_type": limitType,
		},
	})
}

// Logout logs a user logout. Accepts the string ID from SessionUser.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	var userID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		userID = &oid
	}

	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// UserRegistered logs a new account registration.
func (l *Logger) UserRegistered(ctx context.Context, r *http.Request, userID primitive.ObjectID, studentID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventUserRegistered,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"student_id": studentID},
	})
}

// PasswordChanged logs a password change.
func (l *Logger) PasswordChanged(ctx context.Context, r *http.Request, userID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventPasswordChanged,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// --- Payment Events ---

// PaymentSubmitted logs a payment submission by its owner.
func (l *Logger) PaymentSubmitted(ctx context.Context, r *http.Request, userID, orgID, paymentID primitive.ObjectID, amount string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryPayment,
		EventType:      audit.EventPaymentSubmitted,
		UserID:         &userID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details: map[string]string{
			"payment_id": paymentID.Hex(),
			"amount":     amount,
		},
	})
}

// PaymentUpdated logs an edit of a pending payment by its owner.
func (l *Logger) PaymentUpdated(ctx context.Context, r *http.Request, userID, paymentID primitive.ObjectID) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryPayment,
		EventType: audit.EventPaymentUpdated,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"payment_id": paymentID.Hex()},
	})
}

// PaymentVerified logs an approve or reject decision on a payment.
// The ownerID is the paying student; actorID is the verifying officer.
func (l *Logger) PaymentVerified(ctx context.Context, r *http.Request, ownerID, actorID, orgID, paymentID primitive.ObjectID, approved bool, reason string) {
	eventType := audit.EventPaymentApproved
	details := map[string]string{"payment_id": paymentID.Hex()}
	if !approved {
		eventType = audit.EventPaymentRejected
		if reason != "" {
			details["reason"] = reason
		}
	}

	l.Log(ctx, audit.Event{
		Category:       audit.CategoryPayment,
		EventType:      eventType,
		UserID:         &ownerID,
		ActorID:        &actorID,
		OrganizationID: &orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details:        details,
	})
}

// --- Admin Events ---

// AdminAction logs a generic admin action (org/category CRUD, membership changes).
func (l *Logger) AdminAction(ctx context.Context, r *http.Request, eventType string, actorID primitive.ObjectID, orgID *primitive.ObjectID, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      eventType,
		ActorID:        &actorID,
		OrganizationID: orgID,
		IP:             getClientIP(r),
		UserAgent:      r.UserAgent(),
		Success:        true,
		Details:        details,
	})
}
