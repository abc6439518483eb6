package dues

import (
	"github.com/go-chi/chi/v5"

	"github.com/dalemusser/paytrack/internal/app/system/auth"
)

// Routes builds the router for dues management. Officer checks happen
// in the handlers because authority depends on the organization in
// the URL.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/{orgID}", h.ServeList)
		pr.Get("/{orgID}/new", h.ServeNew)
		pr.Post("/{orgID}", h.HandleCreate)
		pr.Get("/{orgID}/{categoryID}/edit", h.ServeEdit)
		pr.Post("/{orgID}/{categoryID}/edit", h.HandleEdit)
		pr.Post("/{orgID}/{categoryID}/delete", h.HandleDelete)
	})

	return r
}
