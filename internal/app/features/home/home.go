package home

import (
	"net/http"

	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// Handler holds dependencies needed to serve the home page.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{
		Log: logger,
	}
}

// ServeRoot handles GET /. Signed-in users go straight to their
// dashboard; everyone else gets the landing page.
func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	if _, signed := auth.CurrentUser(r); signed {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}

	data := struct {
		viewdata.BaseVM
	}{
		BaseVM: viewdata.NewBaseVM(r, "Welcome", "/"),
	}

	templates.Render(w, r, "home", data)
}
