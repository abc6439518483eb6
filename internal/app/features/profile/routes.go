// internal/app/features/profile/routes.go
package profile

import (
	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/", h.ServeView)
		pr.Get("/edit", h.ServeEdit)
		pr.Post("/edit", h.HandleEdit)
		pr.Get("/password", h.ServePassword)
		pr.Post("/password", h.HandlePassword)
	})

	return r
}
