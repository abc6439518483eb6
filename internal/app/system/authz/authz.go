// internal/app/system/authz/authz.go
package authz

import (
	"net/http"

	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/domain/models"
)

// UserCtx returns the signed-in user from the request context, or nil.
func UserCtx(r *http.Request) *auth.SessionUser {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return nil
	}
	return u
}

// HasAnyRole reports whether the context user holds one of the given roles.
func HasAnyRole(r *http.Request, roles ...models.Role) bool {
	u := UserCtx(r)
	if u == nil {
		return false
	}
	for _, role := range roles {
		if u.Role == string(role) {
			return true
		}
	}
	return false
}

func IsAdmin(r *http.Request) bool   { return HasAnyRole(r, models.RoleAdmin) }
func IsAdviser(r *http.Request) bool { return HasAnyRole(r, models.RoleAdviser) }
func IsOfficer(r *http.Request) bool { return HasAnyRole(r, models.RoleOfficer) }
func IsStudent(r *http.Request) bool { return HasAnyRole(r, models.RoleStudent) }

// IsStaff reports whether the user holds any role that can manage an
// organization at the account level. Org-scoped authority (officers of a
// particular organization) is decided by the policy package, not here.
func IsStaff(r *http.Request) bool {
	return HasAnyRole(r, models.RoleAdmin, models.RoleAdviser, models.RoleOfficer)
}
