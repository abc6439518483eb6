package payment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	paysvc "github.com/dalemusser/paytrack/internal/app/payments"
	"github.com/dalemusser/paytrack/internal/app/system/formutil"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/limits"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
)

type editFormData struct {
	formutil.Base
	PaymentID       string
	OrgName         string
	CategoryName    string
	Amount          string
	Method          string
	ReferenceNumber string
	Notes           string
	ProofPath       string
}

// ServeEdit handles GET /payments/{id}/edit. Only the owner of a
// still-pending payment gets the form.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/transactions")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.loadEditable(ctx, w, r, res.UserID)
	if !ok {
		return
	}

	data := editFormData{
		PaymentID:       p.ID.Hex(),
		Amount:          strconv.FormatFloat(p.Amount, 'f', 2, 64),
		Method:          string(p.Method),
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
		ProofPath:       p.ProofPath,
	}
	formutil.SetBase(&data.Base, r, "Edit Payment", "/payments/"+p.ID.Hex())
	if org, err := h.Orgs.GetByID(ctx, p.OrgID); err == nil {
		data.OrgName = org.DisplayName()
	}
	if cat, err := h.Categories.GetByID(ctx, p.CategoryID); err == nil {
		data.CategoryName = cat.Name
	}

	templates.Render(w, r, "payment_edit", data)
}

// HandleEdit handles POST /payments/{id}/edit.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/transactions")
	if !res.OK {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxProofUploadSize+limits.MaxFormSize)
	if err := r.ParseMultipartForm(limits.MaxProofUploadSize); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse payment edit form failed", err, "The form could not be read. Proof files are limited to 5 MB.", "/transactions")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	p, ok := h.loadEditable(ctx, w, r, res.UserID)
	if !ok {
		return
	}

	in := paysvc.EditInput{
		PaymentID:       p.ID,
		UserID:          res.UserID,
		Method:          models.PaymentMethod(normalize.QueryParam(r.FormValue("method"))),
		ReferenceNumber: normalize.QueryParam(r.FormValue("reference_number")),
		Notes:           r.FormValue("notes"),
	}
	in.Amount, _ = strconv.ParseFloat(normalize.QueryParam(r.FormValue("amount")), 64)

	fail := func(msg string) {
		data := editFormData{
			PaymentID:       p.ID.Hex(),
			Amount:          r.FormValue("amount"),
			Method:          r.FormValue("method"),
			ReferenceNumber: in.ReferenceNumber,
			Notes:           in.Notes,
			ProofPath:       p.ProofPath,
		}
		formutil.SetBase(&data.Base, r, "Edit Payment", "/payments/"+p.ID.Hex())
		data.SetError(msg)
		templates.Render(w, r, "payment_edit", data)
	}

	proofPath, ok := h.saveProof(ctx, w, r, fail)
	if !ok {
		return
	}
	in.ProofPath = proofPath

	err := h.PaySvc.Edit(ctx, in)
	switch {
	case errors.Is(err, paysvc.ErrInvalidAmount):
		fail("Amount must be a number greater than zero.")
		return
	case errors.Is(err, paysvc.ErrInvalidMethod):
		fail("Choose a valid payment method.")
		return
	case errors.Is(err, paysvc.ErrMissingRef):
		fail("A reference number is required for this payment method.")
		return
	case errors.Is(err, paysvc.ErrNotEditable):
		uierrors.RenderForbidden(w, r, "This payment was already decided and can no longer be edited.", "/payments/"+p.ID.Hex())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "edit payment failed", err, "Unable to update the payment.", "/payments/"+p.ID.Hex())
		return
	}

	h.AuditLog.PaymentUpdated(ctx, r, res.UserID, p.ID)

	http.Redirect(w, r, "/payments/"+p.ID.Hex()+"?success=updated", http.StatusSeeOther)
}

// loadEditable loads {id} and verifies the caller owns it and it is
// still pending. The pending check here is a fast path for the UI;
// the store's conditional write is what actually prevents the race.
func (h *Handler) loadEditable(ctx context.Context, w http.ResponseWriter, r *http.Request, userID primitive.ObjectID) (models.Payment, bool) {
	paymentID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad payment id", err, "Invalid payment.", "/transactions")
		return models.Payment{}, false
	}

	p, err := h.Payments.GetByID(ctx, paymentID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That payment does not exist.", "/transactions")
		return models.Payment{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load payment failed", err, "Unable to load the payment.", "/transactions")
		return models.Payment{}, false
	}
	if p.UserID != userID {
		uierrors.RenderForbidden(w, r, "Only the student who submitted a payment can edit it.", "/transactions")
		return models.Payment{}, false
	}
	if p.Status != models.PaymentPending {
		uierrors.RenderForbidden(w, r, "This payment was already decided and can no longer be edited.", "/payments/"+p.ID.Hex())
		return models.Payment{}, false
	}
	return p, true
}
