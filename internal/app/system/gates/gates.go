// Package gates provides authorization gate functions for HTTP handlers.
// Gates check authentication and authorization, rendering appropriate error
// pages when checks fail.
//
// PayTrack uses three tiers of authorization:
//
//  1. Route-level middleware (auth.RequireSignedIn, auth.RequireRole)
//     applied in routes.go files for coarse-grained access control.
//
//  2. Handler-level gates (this package) for handlers that need role
//     checks without route-level middleware, or different requirements
//     than their route group. Gates render error pages and return the
//     user context.
//
//  3. Policy layer (internal/app/policy) for resource-specific checks
//     that require database lookups, such as whether a user is an
//     officer of a particular organization. Policies return (bool, error)
//     and callers handle error rendering.
//
// Don't use gates in handlers already behind role-specific middleware;
// use authz.UserCtx(r) there instead.
package gates

import (
	"net/http"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/app/system/authz"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Result contains the result of an authorization gate check.
type Result struct {
	Role   models.Role
	Name   string
	UserID primitive.ObjectID
	OK     bool
}

// RequireAuth ensures a user is authenticated. If not, it renders an
// unauthorized error and returns OK=false. The loginURL parameter
// specifies where to redirect for login.
func RequireAuth(w http.ResponseWriter, r *http.Request, loginURL string) Result {
	u := authz.UserCtx(r)
	if u == nil {
		uierrors.RenderUnauthorized(w, r, loginURL)
		return Result{OK: false}
	}
	return fromUser(u)
}

// RequireAdmin ensures the user is authenticated and has the admin role.
func RequireAdmin(w http.ResponseWriter, r *http.Request, forbiddenMsg, fallbackURL string) Result {
	return RequireAnyRole(w, r, forbiddenMsg, fallbackURL, models.RoleAdmin)
}

// RequireStaff ensures the user is authenticated and holds a role that can
// manage organizations at the account level (admin, adviser, or officer).
func RequireStaff(w http.ResponseWriter, r *http.Request, forbiddenMsg, fallbackURL string) Result {
	return RequireAnyRole(w, r, forbiddenMsg, fallbackURL,
		models.RoleAdmin, models.RoleAdviser, models.RoleOfficer)
}

// RequireAnyRole ensures the user is authenticated and has one of the
// specified roles. Renders unauthorized or forbidden pages on failure.
func RequireAnyRole(w http.ResponseWriter, r *http.Request, forbiddenMsg, fallbackURL string, allowedRoles ...models.Role) Result {
	u := authz.UserCtx(r)
	if u == nil {
		uierrors.RenderUnauthorized(w, r, "/login")
		return Result{OK: false}
	}

	for _, allowed := range allowedRoles {
		if u.Role == string(allowed) {
			return fromUser(u)
		}
	}

	uierrors.RenderForbidden(w, r, forbiddenMsg, fallbackURL)
	return Result{OK: false}
}

func fromUser(u *auth.SessionUser) Result {
	uid, err := primitive.ObjectIDFromHex(u.ID)
	if err != nil {
		return Result{Role: models.Role(u.Role), Name: u.Name, OK: true}
	}
	return Result{Role: models.Role(u.Role), Name: u.Name, UserID: uid, OK: true}
}
