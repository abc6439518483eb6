package payment

import (
	"github.com/go-chi/chi/v5"

	"github.com/dalemusser/paytrack/internal/app/system/auth"
)

// Routes builds the router for payment submission, editing, and
// verification. Ownership and finance-officer checks happen in the
// handlers because they depend on the payment being acted on.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/new", h.ServeNew)
		pr.Post("/", h.HandleSubmit)
		pr.Get("/{id}", h.ServeDetail)
		pr.Get("/{id}/edit", h.ServeEdit)
		pr.Post("/{id}/edit", h.HandleEdit)
		pr.Post("/{id}/approve", h.HandleApprove)
		pr.Post("/{id}/reject", h.HandleReject)
	})

	return r
}
