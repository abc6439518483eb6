// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/paytrack/internal/app/system/authz"
	"github.com/dalemusser/waffle/pantry/templates"
)

// pageData is the basic view model for error pages.
type pageData struct {
	Title       string
	IsLoggedIn  bool
	Role        string
	UserName    string
	UnreadCount int64
	Message     string
	BackURL     string
}

// Handler is the errors feature handler.
// No DB needed; it just renders templates.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden renders a friendly "access denied" page.
// GET /forbidden
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:   "Access denied",
		Message: "You don't have permission to view this page.",
		BackURL: "/",
	}
	if u := authz.UserCtx(r); u != nil {
		data.IsLoggedIn = true
		data.Role = u.Role
		data.UserName = u.Name
	}

	templates.Render(w, r, "error_forbidden", data)
}

// Unauthorized renders a friendly "sign in required" page.
// GET /unauthorized
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:   "Sign in required",
		Message: "Please sign in to continue.",
		BackURL: "/login",
	}
	if u := authz.UserCtx(r); u != nil {
		data.IsLoggedIn = true
		data.Role = u.Role
		data.UserName = u.Name
	}

	templates.Render(w, r, "error_forbidden", data)
}

// NotFound renders a friendly "page not found" page for unmatched routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:   "Page not found",
		Message: "The page you are looking for does not exist.",
		BackURL: "/",
	}
	if u := authz.UserCtx(r); u != nil {
		data.IsLoggedIn = true
		data.Role = u.Role
		data.UserName = u.Name
	}

	w.WriteHeader(http.StatusNotFound)
	templates.Render(w, r, "error_forbidden", data)
}
