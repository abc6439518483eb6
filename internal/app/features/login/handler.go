// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	userstore "github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/app/system/authutil"
	"github.com/dalemusser/paytrack/internal/app/system/limits"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/ratelimit"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users         *userstore.Store
	Log           *zap.Logger
	SessionMgr    *auth.SessionManager
	ErrLog        *uierrors.ErrorLogger
	AuditLog      *auditlog.Logger
	Limiter       *ratelimit.LoginLimiter
	GoogleEnabled bool
}

type loginFormData struct {
	viewdata.BaseVM
	Error         string
	LoginID       string
	ReturnURL     string
	GoogleEnabled bool
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	googleEnabled bool,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:         userstore.New(db),
		Log:           logger,
		SessionMgr:    sessionMgr,
		ErrLog:        errLog,
		AuditLog:      audit,
		Limiter:       ratelimit.NewLoginLimiter(),
		GoogleEnabled: googleEnabled,
	}
}

// ServeLogin handles GET /login.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if _, signed := auth.CurrentUser(r); signed {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	templates.Render(w, r, "login", loginFormData{
		BaseVM:        viewdata.NewBaseVM(r, "Sign In", "/"),
		ReturnURL:     query.Get(r, "return"),
		GoogleEnabled: h.GoogleEnabled,
	})
}

// HandleLoginPost handles POST /login: verifies the student ID (or
// email) and password and creates the session.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse login form failed", err, "Invalid form data.", "/login")
		return
	}

	loginID := strings.TrimSpace(r.FormValue("login_id"))
	password := r.FormValue("password")
	if loginID == "" || password == "" {
		h.renderFormWithError(w, r, "Please enter your student ID and password.", loginID)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if allowed, limitType := h.Limiter.Check(r, loginID); !allowed {
		h.AuditLog.LoginFailedRateLimit(ctx, r, loginID, limitType)
		h.renderFormWithError(w, r, "Too many sign-in attempts. Please wait a few minutes and try again.", loginID)
		return
	}

	u, err := h.lookupUser(ctx, loginID)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		h.AuditLog.LoginFailedUserNotFound(ctx, r, loginID)
		h.renderFormWithError(w, r, "No account found for that student ID.", loginID)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "login user lookup failed", err, "A server error occurred.", "/login")
		return
	}

	if u.PasswordHash == "" || !authutil.CheckPassword(password, u.PasswordHash) {
		h.AuditLog.LoginFailedWrongPassword(ctx, r, u.ID, loginID)
		h.renderFormWithError(w, r, "Incorrect student ID or password.", loginID)
		return
	}

	h.Limiter.ResetAccount(loginID)

	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			h.Log.Warn("session cookie invalid, using fresh session",
				zap.Error(err),
				zap.String("user_id", u.ID.Hex()))
		} else {
			h.Log.Error("session store error during login, using fresh session",
				zap.Error(err),
				zap.String("user_id", u.ID.Hex()))
		}
	}

	if err := h.SessionMgr.SignIn(w, r, sess, u.ID.Hex()); err != nil {
		h.Log.Error("save session failed", zap.Error(err), zap.String("login_id", loginID))
		h.renderFormWithError(w, r, "Unable to create session. Please try again.", loginID)
		return
	}

	h.AuditLog.LoginSuccess(r.Context(), r, u.ID, u.Email)

	ret := strings.TrimSpace(r.FormValue("return"))
	dest := urlutil.SafeReturn(ret, "", "/dashboard")
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// HandleLogout handles POST /logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID := ""
	if u, signed := auth.CurrentUser(r); signed && u != nil {
		userID = u.ID
	}

	if err := h.SessionMgr.SignOut(w, r); err != nil {
		h.Log.Warn("sign out failed", zap.Error(err))
	}

	if userID != "" {
		h.AuditLog.Logout(r.Context(), r, userID)
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// lookupUser resolves the typed identifier to an account. Student IDs
// are the primary login identifier; anything with an "@" is treated as
// an email.
func (h *Handler) lookupUser(ctx context.Context, loginID string) (models.User, error) {
	if strings.Contains(loginID, "@") {
		return h.Users.GetByEmail(ctx, normalize.Email(loginID))
	}
	return h.Users.GetByStudentID(ctx, normalize.StudentID(loginID))
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, msg, loginID string) {
	ret := strings.TrimSpace(r.FormValue("return"))
	if ret == "" {
		ret = query.Get(r, "return")
	}

	templates.Render(w, r, "login", loginFormData{
		BaseVM:        viewdata.NewBaseVM(r, "Sign In", "/"),
		Error:         msg,
		LoginID:       loginID,
		ReturnURL:     ret,
		GoogleEnabled: h.GoogleEnabled,
	})
}
