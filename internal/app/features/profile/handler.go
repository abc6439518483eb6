// internal/app/features/profile/handler.go
package profile

import (
	"context"
	"errors"
	"net/http"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	userstore "github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/authutil"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/limits"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/uploads"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Users    *userstore.Store
	Storage  storage.Store
	ErrLog   *uierrors.ErrorLogger
	AuditLog *auditlog.Logger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, store storage.Store, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:    userstore.New(db),
		Storage:  store,
		ErrLog:   errLog,
		AuditLog: audit,
		Log:      logger,
	}
}

type viewVM struct {
	viewdata.BaseVM
	FullName     string
	StudentID    string
	Email        string
	AccountRole  string
	Department   string
	YearLevel    string
	ProfileImage string
	Success      string
}

type editVM struct {
	viewdata.BaseVM
	Error      string
	FullName   string
	Email      string
	Department string
	YearLevel  string
}

type passwordVM struct {
	viewdata.BaseVM
	Error         string
	PasswordRules string
}

// ServeView handles GET /profile.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/profile")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, res.UserID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load profile failed", err, "Unable to load your profile.", "/dashboard")
		return
	}

	vm := viewVM{
		BaseVM:       viewdata.NewBaseVM(r, "My Profile", "/dashboard"),
		FullName:     u.FullName,
		StudentID:    u.StudentID,
		Email:        u.Email,
		AccountRole:  string(u.Role),
		Department:   u.Department,
		YearLevel:    u.YearLevel,
		ProfileImage: u.ProfileImage,
	}

	switch r.URL.Query().Get("success") {
	case "updated":
		vm.Success = "Profile updated successfully"
	case "password":
		vm.Success = "Password changed successfully"
	}

	templates.Render(w, r, "profile_view", vm)
}

// ServeEdit handles GET /profile/edit.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/profile/edit")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.Users.GetByID(ctx, res.UserID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load profile for edit failed", err, "Unable to load your profile.", "/profile")
		return
	}

	templates.Render(w, r, "profile_edit", editVM{
		BaseVM:     viewdata.NewBaseVM(r, "Edit Profile", "/profile"),
		FullName:   u.FullName,
		Email:      u.Email,
		Department: u.Department,
		YearLevel:  u.YearLevel,
	})
}

// HandleEdit handles POST /profile/edit. The form is multipart so an
// optional profile image can ride along.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login")
	if !res.OK {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxProfileImageSize+limits.MaxFormSize)
	if err := r.ParseMultipartForm(limits.MaxProfileImageSize); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse profile form failed", err, "The upload is too large or the form is invalid.", "/profile/edit")
		return
	}

	form := editVM{
		BaseVM:     viewdata.NewBaseVM(r, "Edit Profile", "/profile"),
		FullName:   normalize.Name(r.FormValue("full_name")),
		Email:      normalize.Email(r.FormValue("email")),
		Department: normalize.Name(r.FormValue("department")),
		YearLevel:  normalize.Name(r.FormValue("year_level")),
	}

	if form.FullName == "" || form.Email == "" {
		form.Error = "Name and email are required."
		templates.Render(w, r, "profile_edit", form)
		return
	}

	upd := models.User{
		FullName:   form.FullName,
		Email:      form.Email,
		Department: form.Department,
		YearLevel:  form.YearLevel,
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	file, header, err := r.FormFile("profile_image")
	if err == nil {
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !uploads.AllowedImageTypes[contentType] {
			form.Error = "Profile image must be a JPEG, PNG, GIF, or WebP image."
			templates.Render(w, r, "profile_edit", form)
			return
		}

		info, upErr := uploads.Save(ctx, h.Storage, "profiles", header.Filename, file, header.Size, contentType)
		if upErr != nil {
			h.ErrLog.LogServerError(w, r, "store profile image failed", upErr, "Unable to store your profile image.", "/profile/edit")
			return
		}
		upd.ProfileImage = info.Path
	}

	if err := h.Users.UpdateProfile(ctx, res.UserID, upd); err != nil {
		if errors.Is(err, userstore.ErrDuplicateEmail) {
			form.Error = "That email is already in use by another account."
			templates.Render(w, r, "profile_edit", form)
			return
		}
		h.ErrLog.LogServerError(w, r, "update profile failed", err, "Unable to update your profile.", "/profile/edit")
		return
	}

	http.Redirect(w, r, "/profile?success=updated", http.StatusSeeOther)
}

// ServePassword handles GET /profile/password.
func (h *Handler) ServePassword(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/profile/password")
	if !res.OK {
		return
	}

	templates.Render(w, r, "profile_password", passwordVM{
		BaseVM:        viewdata.NewBaseVM(r, "Change Password", "/profile"),
		PasswordRules: authutil.PasswordRules(),
	})
}

// HandlePassword handles POST /profile/password.
func (h *Handler) HandlePassword(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login")
	if !res.OK {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse password form failed", err, "Invalid form data.", "/profile/password")
		return
	}

	form := passwordVM{
		BaseVM:        viewdata.NewBaseVM(r, "Change Password", "/profile"),
		PasswordRules: authutil.PasswordRules(),
	}

	current := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")
	confirm := r.FormValue("confirm_password")

	if newPassword != confirm {
		form.Error = "New passwords do not match."
		templates.Render(w, r, "profile_password", form)
		return
	}
	if err := authutil.ValidatePassword(newPassword); err != nil {
		form.Error = "New password does not meet the requirements. " + authutil.PasswordRules()
		templates.Render(w, r, "profile_password", form)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := h.Users.GetByID(ctx, res.UserID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load user for password change failed", err, "A server error occurred.", "/profile")
		return
	}

	if !authutil.CheckPassword(current, u.PasswordHash) {
		form.Error = "Current password is incorrect."
		templates.Render(w, r, "profile_password", form)
		return
	}

	hash, err := authutil.HashPassword(newPassword)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "hash new password failed", err, "A server error occurred.", "/profile")
		return
	}

	if err := h.Users.UpdatePassword(ctx, res.UserID, hash); err != nil {
		h.ErrLog.LogServerError(w, r, "update password failed", err, "Unable to change your password.", "/profile")
		return
	}

	h.AuditLog.PasswordChanged(ctx, r, res.UserID)

	http.Redirect(w, r, "/profile?success=password", http.StatusSeeOther)
}
