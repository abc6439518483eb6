// internal/app/features/register/handler.go
package register

import (
	"context"
	"errors"
	"net/http"
	"time"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	userstore "github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/app/system/authutil"
	"github.com/dalemusser/paytrack/internal/app/system/limits"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users      *userstore.Store
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		Users:      userstore.New(db),
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
	}
}

type formData struct {
	viewdata.BaseVM
	Error         string
	FullName      string
	StudentID     string
	Email         string
	Department    string
	YearLevel     string
	PasswordRules string
}

// ServeForm handles GET /register.
func (h *Handler) ServeForm(w http.ResponseWriter, r *http.Request) {
	if _, signed := auth.CurrentUser(r); signed {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	templates.Render(w, r, "register", formData{
		BaseVM:        viewdata.NewBaseVM(r, "Register", "/"),
		PasswordRules: authutil.PasswordRules(),
	})
}

// HandleSubmit handles POST /register: creates a student account and
// signs the new user in.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse register form failed", err, "Invalid form data.", "/register")
		return
	}

	form := formData{
		BaseVM:        viewdata.NewBaseVM(r, "Register", "/"),
		FullName:      normalize.Name(r.FormValue("full_name")),
		StudentID:     normalize.StudentID(r.FormValue("student_id")),
		Email:         normalize.Email(r.FormValue("email")),
		Department:    normalize.Name(r.FormValue("department")),
		YearLevel:     normalize.Name(r.FormValue("year_level")),
		PasswordRules: authutil.PasswordRules(),
	}
	password := r.FormValue("password")
	confirm := r.FormValue("confirm_password")

	if form.FullName == "" || form.StudentID == "" || form.Email == "" {
		form.Error = "Please fill in your name, student ID, and email."
		templates.Render(w, r, "register", form)
		return
	}
	if password != confirm {
		form.Error = "Passwords do not match."
		templates.Render(w, r, "register", form)
		return
	}
	if err := authutil.ValidatePassword(password); err != nil {
		switch {
		case errors.Is(err, authutil.ErrPasswordCommon):
			form.Error = "That password is too common. Please choose another."
		case errors.Is(err, authutil.ErrPasswordTooLong):
			form.Error = "That password is too long."
		default:
			form.Error = "Password must be at least 6 characters."
		}
		templates.Render(w, r, "register", form)
		return
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash password failed", err, "A server error occurred.", "/register")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	now := time.Now().UTC()
	u, err := h.Users.Create(ctx, models.User{
		StudentID:    form.StudentID,
		FullName:     form.FullName,
		FullNameCI:   text.Fold(form.FullName),
		Email:        form.Email,
		PasswordHash: hash,
		Role:         models.RoleStudent,
		Department:   form.Department,
		YearLevel:    form.YearLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	switch {
	case errors.Is(err, userstore.ErrDuplicateEmail):
		form.Error = "An account with that email already exists."
		templates.Render(w, r, "register", form)
		return
	case errors.Is(err, userstore.ErrDuplicateStudentID):
		form.Error = "An account with that student ID already exists."
		templates.Render(w, r, "register", form)
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "create user failed", err, "Unable to create your account.", "/register")
		return
	}

	h.AuditLog.UserRegistered(ctx, r, u.ID, form.StudentID)

	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		h.Log.Warn("session error after registration, using fresh session", zap.Error(err))
	}
	if err := h.SessionMgr.SignIn(w, r, sess, u.ID.Hex()); err != nil {
		h.Log.Error("sign in after registration failed", zap.Error(err), zap.String("user_id", u.ID.Hex()))
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
