// internal/app/features/organizations/routes.go
package organizations

import (
	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts all organization routes under the base path
// (typically "/organizations" from bootstrap).
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	// Any signed-in user can browse organizations and request to join.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeList)
		pr.Get("/{id}", h.ServeDetail)
		pr.Post("/{id}/join", h.HandleJoin)

		// Officer-gated in the handlers via orgpolicy: edits and member
		// management depend on the caller's relationship to the org,
		// which route middleware cannot see.
		pr.Get("/{id}/edit", h.ServeEdit)
		pr.Post("/{id}/edit", h.HandleEdit)
		pr.Post("/members/{membershipID}/approve", h.HandleApprove)
		pr.Post("/members/{membershipID}/reject", h.HandleReject)
		pr.Post("/members/{membershipID}/role", h.HandleSetRole)
		pr.Post("/members/{membershipID}/remove", h.HandleRemove)
	})

	// Admin-only create and delete.
	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(string(models.RoleAdmin)))

		pr.Get("/new", h.ServeNew)
		pr.Post("/", h.HandleCreate)
		pr.Post("/{id}/delete", h.HandleDelete)
	})

	return r
}
