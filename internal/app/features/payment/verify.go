package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	paysvc "github.com/dalemusser/paytrack/internal/app/payments"
	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/limits"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
)

// HandleApprove handles POST /payments/{id}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, paysvc.Decision{Approve: true})
}

// HandleReject handles POST /payments/{id}/reject. The optional
// reason form field is shown to the student.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse reject form failed", err, "The form could not be read.", "/transactions")
		return
	}
	h.decide(w, r, paysvc.Decision{Approve: false, Reason: r.FormValue("reason")})
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, d paysvc.Decision) {
	res := gates.RequireAuth(w, r, "/login?return=/transactions")
	if !res.OK {
		return
	}

	paymentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad payment id", err, "Invalid payment.", "/transactions")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, err := h.Payments.GetByID(ctx, paymentID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That payment does not exist.", "/transactions")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load payment failed", err, "Unable to load the payment.", "/transactions")
		return
	}

	finance, err := orgpolicy.IsFinanceOfficer(ctx, h.DB, r, p.OrgID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "finance check failed", err, "Unable to verify your permissions.", "/transactions")
		return
	}
	if !finance {
		uierrors.RenderForbidden(w, r, "Only the treasurer or president of this organization can verify payments.", "/payments/"+p.ID.Hex())
		return
	}

	verified, err := h.PaySvc.Verify(ctx, paymentID, res.UserID, d)
	switch {
	case errors.Is(err, paysvc.ErrNotPending):
		uierrors.RenderForbidden(w, r, "This payment was already decided by another officer.", "/payments/"+p.ID.Hex())
		return
	case errors.Is(err, paysvc.ErrNotFound):
		uierrors.RenderForbidden(w, r, "That payment does not exist.", "/transactions")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "verify payment failed", err, "Unable to record the decision.", "/payments/"+p.ID.Hex())
		return
	}

	h.AuditLog.PaymentVerified(ctx, r, verified.UserID, res.UserID, verified.OrgID, verified.ID, d.Approve, d.Reason)

	http.Redirect(w, r, "/payments/"+verified.ID.Hex()+"?success=verified", http.StatusSeeOther)
}
