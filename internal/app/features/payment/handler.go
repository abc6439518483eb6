// Package payment handles the life of a single payment record: a
// student submits one against a category, may edit it while it is
// still pending, and a finance officer approves or rejects it.
package payment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	paysvc "github.com/dalemusser/paytrack/internal/app/payments"
	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	"github.com/dalemusser/paytrack/internal/app/store/categories"
	"github.com/dalemusser/paytrack/internal/app/store/organizations"
	"github.com/dalemusser/paytrack/internal/app/store/payments"
	"github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/formutil"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/limits"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/uploads"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/templates"
)

type Handler struct {
	DB         *mongo.Database
	Payments   *paymentstore.Store
	Categories *categorystore.Store
	Orgs       *organizationstore.Store
	Users      *userstore.Store
	PaySvc     *paysvc.Service
	Storage    storage.Store
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(
	db *mongo.Database,
	svc *paysvc.Service,
	store storage.Store,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:         db,
		Payments:   paymentstore.New(db),
		Categories: categorystore.New(db),
		Orgs:       organizationstore.New(db),
		Users:      userstore.New(db),
		PaySvc:     svc,
		Storage:    store,
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
	}
}

type categoryOption struct {
	ID       string
	Name     string
	Amount   string
	Selected bool
}

type submitFormData struct {
	formutil.Base
	OrgID           string
	OrgName         string
	Categories      []categoryOption
	Amount          string
	Method          string
	ReferenceNumber string
	Notes           string
}

// ServeNew handles GET /payments/new. The form is reached either with
// ?category=<id> from an organization page or ?org=<id>; both resolve
// to the organization whose categories populate the dropdown.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	orgID, selectedCat, ok := h.resolveTarget(ctx, w, r)
	if !ok {
		return
	}

	data, ok := h.buildForm(ctx, w, r, orgID, selectedCat)
	if !ok {
		return
	}
	templates.Render(w, r, "payment_new", data)
}

// resolveTarget turns the category/org query params into an org ID
// plus an optionally preselected category.
func (h *Handler) resolveTarget(ctx context.Context, w http.ResponseWriter, r *http.Request) (primitive.ObjectID, primitive.ObjectID, bool) {
	if catParam := query.Get(r, "category"); catParam != "" {
		catID, err := primitive.ObjectIDFromHex(catParam)
		if err != nil {
			h.ErrLog.LogBadRequest(w, r, "bad category id", err, "Invalid payment category.", "/organizations")
			return primitive.NilObjectID, primitive.NilObjectID, false
		}
		cat, err := h.Categories.GetByID(ctx, catID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			uierrors.RenderForbidden(w, r, "That payment category does not exist.", "/organizations")
			return primitive.NilObjectID, primitive.NilObjectID, false
		}
		if err != nil {
			h.ErrLog.LogServerError(w, r, "load category failed", err, "Unable to load the payment category.", "/organizations")
			return primitive.NilObjectID, primitive.NilObjectID, false
		}
		return cat.OrgID, cat.ID, true
	}

	orgParam := query.Get(r, "org")
	if orgParam == "" {
		http.Redirect(w, r, "/organizations", http.StatusSeeOther)
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	orgID, err := primitive.ObjectIDFromHex(orgParam)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad organization id", err, "Invalid organization.", "/organizations")
		return primitive.NilObjectID, primitive.NilObjectID, false
	}
	return orgID, primitive.NilObjectID, true
}

func (h *Handler) buildForm(ctx context.Context, w http.ResponseWriter, r *http.Request, orgID, selectedCat primitive.ObjectID) (submitFormData, bool) {
	org, err := h.Orgs.GetByID(ctx, orgID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That organization does not exist.", "/organizations")
		return submitFormData{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load organization failed", err, "Unable to load the organization.", "/organizations")
		return submitFormData{}, false
	}

	cats, err := h.Categories.ListByOrg(ctx, org.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list categories failed", err, "Unable to load payment categories.", "/organizations/"+org.ID.Hex())
		return submitFormData{}, false
	}
	if len(cats) == 0 {
		uierrors.RenderForbidden(w, r, "This organization has no payment categories to pay yet.", "/organizations/"+org.ID.Hex())
		return submitFormData{}, false
	}

	data := submitFormData{
		OrgID:   org.ID.Hex(),
		OrgName: org.DisplayName(),
		Method:  string(models.MethodCash),
	}
	formutil.SetBase(&data.Base, r, "Submit Payment", "/organizations/"+org.ID.Hex())
	for _, c := range cats {
		opt := categoryOption{
			ID:     c.ID.Hex(),
			Name:   c.Name,
			Amount: models.FormatAmount(c.Amount),
		}
		if c.ID == selectedCat {
			opt.Selected = true
			data.Amount = strconv.FormatFloat(c.Amount, 'f', 2, 64)
		}
		data.Categories = append(data.Categories, opt)
	}
	return data, true
}

// HandleSubmit handles POST /payments.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
	if !res.OK {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxProofUploadSize+limits.MaxFormSize)
	if err := r.ParseMultipartForm(limits.MaxProofUploadSize); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse payment form failed", err, "The form could not be read. Proof files are limited to 5 MB.", "/organizations")
		return
	}

	orgID, err := primitive.ObjectIDFromHex(r.FormValue("org_id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad organization id", err, "Invalid organization.", "/organizations")
		return
	}
	catID, err := primitive.ObjectIDFromHex(r.FormValue("category_id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad category id", err, "Choose a payment category.", "/payments/new?org="+orgID.Hex())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	in := paysvc.SubmitInput{
		UserID:          res.UserID,
		UserName:        res.Name,
		OrgID:           orgID,
		CategoryID:      catID,
		Method:          models.PaymentMethod(normalize.QueryParam(r.FormValue("method"))),
		ReferenceNumber: normalize.QueryParam(r.FormValue("reference_number")),
		Notes:           r.FormValue("notes"),
	}
	in.Amount, _ = strconv.ParseFloat(normalize.QueryParam(r.FormValue("amount")), 64)

	fail := func(msg string) {
		data, ok := h.buildForm(ctx, w, r, orgID, catID)
		if !ok {
			return
		}
		data.Amount = r.FormValue("amount")
		data.Method = r.FormValue("method")
		data.ReferenceNumber = in.ReferenceNumber
		data.Notes = in.Notes
		data.SetError(msg)
		templates.Render(w, r, "payment_new", data)
	}

	proofPath, ok := h.saveProof(ctx, w, r, fail)
	if !ok {
		return
	}
	in.ProofPath = proofPath

	p, err := h.PaySvc.Submit(ctx, in)
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
	case errors.Is(err, paysvc.ErrInvalidCategory):
		fail("That payment category does not belong to this organization.")
		return
	case errors.Is(err, paysvc.ErrNotAMember):
		uierrors.RenderForbidden(w, r, "You must be an approved member of this organization to submit payments.", "/organizations/"+orgID.Hex())
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "submit payment failed", err, "Unable to record the payment.", "/organizations/"+orgID.Hex())
		return
	}

	h.AuditLog.PaymentSubmitted(ctx, r, res.UserID, orgID, p.ID, models.FormatAmount(p.Amount))

	http.Redirect(w, r, "/payments/"+p.ID.Hex()+"?success=submitted", http.StatusSeeOther)
}

// saveProof stores an optional proof-of-payment image or PDF. Returns
// ok=false only after an error response has been written.
func (h *Handler) saveProof(ctx context.Context, w http.ResponseWriter, r *http.Request, fail func(string)) (string, bool) {
	file, header, err := r.FormFile("proof")
	if errors.Is(err, http.ErrMissingFile) {
		return "", true
	}
	if err != nil {
		fail("The proof file could not be read.")
		return "", false
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !uploads.AllowedProofTypes[contentType] {
		fail("Proof must be a JPEG, PNG, WebP, or PDF file.")
		return "", false
	}
	if header.Size > limits.MaxProofUploadSize {
		fail("Proof files are limited to 5 MB.")
		return "", false
	}

	info, err := uploads.Save(ctx, h.Storage, "proofs", header.Filename, file, header.Size, contentType)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "save proof failed", err, "Unable to store the proof file.", "/organizations")
		return "", false
	}
	return info.Path, true
}

type detailVM struct {
	viewdata.BaseVM
	ID              string
	OrgID           string
	OrgName         string
	CategoryName    string
	PayerName       string
	PayerStudentID  string
	Amount          string
	Method          string
	ReferenceNumber string
	Status          string
	Notes           string
	ProofPath       string
	PaymentDate     string
	VerifiedByName  string
	VerifiedAt      string

	IsOwner   bool
	CanEdit   bool
	CanVerify bool
	Success   string
}

// ServeDetail handles GET /payments/{id}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/transactions")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	p, ok := h.loadViewable(ctx, w, r)
	if !ok {
		return
	}

	vm := detailVM{
		BaseVM:          viewdata.NewBaseVM(r, "Payment", "/transactions"),
		ID:              p.ID.Hex(),
		OrgID:           p.OrgID.Hex(),
		Amount:          models.FormatAmount(p.Amount),
		Method:          string(p.Method),
		ReferenceNumber: p.ReferenceNumber,
		Status:          string(p.Status),
		Notes:           p.Notes,
		ProofPath:       p.ProofPath,
		PaymentDate:     p.PaymentDate.Format("Jan 2, 2006 3:04 PM"),
		IsOwner:         p.UserID == res.UserID,
	}
	vm.CanEdit = vm.IsOwner && p.Status == models.PaymentPending

	switch query.Get(r, "success") {
	case "submitted":
		vm.Success = "Payment submitted. An officer will verify it."
	case "updated":
		vm.Success = "Payment updated."
	case "verified":
		vm.Success = "Payment decision recorded."
	}

	if org, err := h.Orgs.GetByID(ctx, p.OrgID); err == nil {
		vm.OrgName = org.DisplayName()
	}
	if cat, err := h.Categories.GetByID(ctx, p.CategoryID); err == nil {
		vm.CategoryName = cat.Name
	}
	if payer, err := h.Users.GetByID(ctx, p.UserID); err == nil {
		vm.PayerName = payer.FullName
		vm.PayerStudentID = payer.StudentID
	}
	if p.VerifiedAt != nil {
		vm.VerifiedAt = p.VerifiedAt.Format("Jan 2, 2006 3:04 PM")
	}
	if p.VerifiedBy != nil {
		if verifier, err := h.Users.GetByID(ctx, *p.VerifiedBy); err == nil {
			vm.VerifiedByName = verifier.FullName
		}
	}

	if p.Status == models.PaymentPending {
		finance, err := orgpolicy.IsFinanceOfficer(ctx, h.DB, r, p.OrgID)
		if err != nil {
			h.ErrLog.LogServerError(w, r, "finance check failed", err, "Unable to verify your permissions.", "/transactions")
			return
		}
		vm.CanVerify = finance
	}

	templates.Render(w, r, "payment_detail", vm)
}

// loadViewable loads {id} and enforces the view policy: the owner, a
// finance officer of the owning org, or an admin.
func (h *Handler) loadViewable(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Payment, bool) {
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

	allowed, err := orgpolicy.CanViewPayment(ctx, h.DB, r, p)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "payment view check failed", err, "Unable to verify your permissions.", "/transactions")
		return models.Payment{}, false
	}
	if !allowed {
		uierrors.RenderForbidden(w, r, "You do not have access to this payment.", "/transactions")
		return models.Payment{}, false
	}
	return p, true
}
