// Package dues lets organization officers manage the payment
// categories their members owe: membership fees, event shirts,
// fines, and other collectibles.
package dues

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	"github.com/dalemusser/paytrack/internal/app/store/categories"
	"github.com/dalemusser/paytrack/internal/app/store/organizations"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/formutil"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/limits"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
)

type Handler struct {
	DB         *mongo.Database
	Orgs       *organizationstore.Store
	Categories *categorystore.Store
	ErrLog     *uierrors.ErrorLogger
	AuditLog   *auditlog.Logger
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Orgs:       organizationstore.New(db),
		Categories: categorystore.New(db),
		ErrLog:     errLog,
		AuditLog:   audit,
		Log:        logger,
	}
}

type categoryRow struct {
	ID          string
	Name        string
	Description string
	Amount      string
	DueDate     string
	Recurrence  string
}

type listVM struct {
	viewdata.BaseVM
	OrgID      string
	OrgName    string
	Categories []categoryRow
	Success    string
}

// requireOfficer loads the organization and verifies the caller may
// manage its dues. Returns ok=false after writing the response.
func (h *Handler) requireOfficer(w http.ResponseWriter, r *http.Request) (gates.Result, models.Organization, bool) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
	if !res.OK {
		return res, models.Organization{}, false
	}

	orgID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "orgID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad organization id", err, "Invalid organization.", "/organizations")
		return res, models.Organization{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	org, err := h.Orgs.GetByID(ctx, orgID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That organization does not exist.", "/organizations")
		return res, models.Organization{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load organization failed", err, "Unable to load the organization.", "/organizations")
		return res, models.Organization{}, false
	}

	officer, err := orgpolicy.IsOrgOfficer(ctx, h.DB, r, org.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "officer check failed", err, "Unable to verify your permissions.", "/organizations")
		return res, models.Organization{}, false
	}
	if !officer {
		uierrors.RenderForbidden(w, r, "Only officers of this organization can manage its dues.", "/organizations/"+org.ID.Hex())
		return res, models.Organization{}, false
	}
	return res, org, true
}

// ServeList handles GET /dues/{orgID}.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	_, org, ok := h.requireOfficer(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	cats, err := h.Categories.ListByOrg(ctx, org.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list categories failed", err, "Unable to load payment categories.", "/organizations/"+org.ID.Hex())
		return
	}

	vm := listVM{
		BaseVM:  viewdata.NewBaseVM(r, "Dues · "+org.DisplayName(), "/organizations/"+org.ID.Hex()),
		OrgID:   org.ID.Hex(),
		OrgName: org.DisplayName(),
	}
	switch r.URL.Query().Get("success") {
	case "created":
		vm.Success = "Payment category created."
	case "updated":
		vm.Success = "Payment category updated."
	case "deleted":
		vm.Success = "Payment category deleted."
	}
	for _, c := range cats {
		vm.Categories = append(vm.Categories, toRow(c))
	}

	templates.Render(w, r, "dues_list", vm)
}

func toRow(c models.PaymentCategory) categoryRow {
	row := categoryRow{
		ID:          c.ID.Hex(),
		Name:        c.Name,
		Description: c.Description,
		Amount:      models.FormatAmount(c.Amount),
		Recurrence:  string(c.Recurrence),
	}
	if c.DueDate != nil {
		row.DueDate = c.DueDate.Format("Jan 2, 2006")
	}
	return row
}

type formData struct {
	formutil.Base
	IsEdit      bool
	OrgID       string
	CategoryID  string
	Name        string
	Description string
	Amount      string
	DueDate     string
	Recurrence  string
}

// ServeNew handles GET /dues/{orgID}/new.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	_, org, ok := h.requireOfficer(w, r)
	if !ok {
		return
	}

	data := formData{
		OrgID:      org.ID.Hex(),
		Recurrence: string(models.RecurrenceOneTime),
	}
	formutil.SetBase(&data.Base, r, "New Payment Category", "/dues/"+org.ID.Hex())
	templates.Render(w, r, "dues_form", data)
}

// HandleCreate handles POST /dues/{orgID}.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	res, org, ok := h.requireOfficer(w, r)
	if !ok {
		return
	}

	data, cat, ok := h.parseForm(w, r, org, false)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	created, err := h.Categories.Create(ctx, cat)
	if errors.Is(err, categorystore.ErrDuplicateCategory) {
		data.SetError("A payment category with this name already exists.")
		templates.Render(w, r, "dues_form", data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create category failed", err, "Unable to create the payment category.", "/dues/"+org.ID.Hex())
		return
	}

	h.AuditLog.AdminAction(ctx, r, "category_created", res.UserID, &org.ID, map[string]string{
		"category_id": created.ID.Hex(),
		"name":        created.Name,
		"amount":      strconv.FormatFloat(created.Amount, 'f', 2, 64),
	})

	http.Redirect(w, r, "/dues/"+org.ID.Hex()+"?success=created", http.StatusSeeOther)
}

// ServeEdit handles GET /dues/{orgID}/{categoryID}/edit.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	_, org, ok := h.requireOfficer(w, r)
	if !ok {
		return
	}

	cat, ok := h.loadCategory(w, r, org)
	if !ok {
		return
	}

	data := formData{
		IsEdit:      true,
		OrgID:       org.ID.Hex(),
		CategoryID:  cat.ID.Hex(),
		Name:        cat.Name,
		Description: cat.Description,
		Amount:      strconv.FormatFloat(cat.Amount, 'f', 2, 64),
		Recurrence:  string(cat.Recurrence),
	}
	if cat.DueDate != nil {
		data.DueDate = cat.DueDate.Format("2006-01-02")
	}
	formutil.SetBase(&data.Base, r, "Edit Payment Category", "/dues/"+org.ID.Hex())
	templates.Render(w, r, "dues_form", data)
}

// HandleEdit handles POST /dues/{orgID}/{categoryID}/edit.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	res, org, ok := h.requireOfficer(w, r)
	if !ok {
		return
	}

	existing, ok := h.loadCategory(w, r, org)
	if !ok {
		return
	}

	data, cat, ok := h.parseForm(w, r, org, true)
	if !ok {
		return
	}
	data.CategoryID = existing.ID.Hex()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err := h.Categories.Update(ctx, existing.ID, cat)
	if errors.Is(err, categorystore.ErrDuplicateCategory) {
		data.SetError("A payment category with this name already exists.")
		templates.Render(w, r, "dues_form", data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "update category failed", err, "Unable to update the payment category.", "/dues/"+org.ID.Hex())
		return
	}

	h.AuditLog.AdminAction(ctx, r, "category_updated", res.UserID, &org.ID, map[string]string{
		"category_id": existing.ID.Hex(),
		"name":        cat.Name,
	})

	http.Redirect(w, r, "/dues/"+org.ID.Hex()+"?success=updated", http.StatusSeeOther)
}

// HandleDelete handles POST /dues/{orgID}/{categoryID}/delete.
// Deleting a category does not touch payments already recorded
// against it.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	res, org, ok := h.requireOfficer(w, r)
	if !ok {
		return
	}

	cat, ok := h.loadCategory(w, r, org)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Categories.Delete(ctx, cat.ID); err != nil {
		h.ErrLog.LogServerError(w, r, "delete category failed", err, "Unable to delete the payment category.", "/dues/"+org.ID.Hex())
		return
	}

	h.AuditLog.AdminAction(ctx, r, "category_deleted", res.UserID, &org.ID, map[string]string{
		"category_id": cat.ID.Hex(),
		"name":        cat.Name,
	})

	http.Redirect(w, r, "/dues/"+org.ID.Hex()+"?success=deleted", http.StatusSeeOther)
}

// loadCategory resolves {categoryID} and verifies it belongs to org.
func (h *Handler) loadCategory(w http.ResponseWriter, r *http.Request, org models.Organization) (models.PaymentCategory, bool) {
	catID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "categoryID"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad category id", err, "Invalid payment category.", "/dues/"+org.ID.Hex())
		return models.PaymentCategory{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	cat, err := h.Categories.GetByID(ctx, catID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That payment category does not exist.", "/dues/"+org.ID.Hex())
		return models.PaymentCategory{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load category failed", err, "Unable to load the payment category.", "/dues/"+org.ID.Hex())
		return models.PaymentCategory{}, false
	}
	if cat.OrgID != org.ID {
		uierrors.RenderForbidden(w, r, "That payment category belongs to a different organization.", "/dues/"+org.ID.Hex())
		return models.PaymentCategory{}, false
	}
	return cat, true
}

// parseForm validates the submitted category fields. On a validation
// failure it re-renders the form and returns ok=false.
func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request, org models.Organization, isEdit bool) (formData, models.PaymentCategory, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormSize)
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse category form failed", err, "The form could not be read.", "/dues/"+org.ID.Hex())
		return formData{}, models.PaymentCategory{}, false
	}

	data := formData{
		IsEdit:      isEdit,
		OrgID:       org.ID.Hex(),
		Name:        normalize.Name(r.FormValue("name")),
		Description: r.FormValue("description"),
		Amount:      normalize.QueryParam(r.FormValue("amount")),
		DueDate:     normalize.QueryParam(r.FormValue("due_date")),
		Recurrence:  normalize.QueryParam(r.FormValue("recurrence")),
	}
	title := "New Payment Category"
	if isEdit {
		title = "Edit Payment Category"
	}
	formutil.SetBase(&data.Base, r, title, "/dues/"+org.ID.Hex())

	fail := func(msg string) (formData, models.PaymentCategory, bool) {
		data.SetError(msg)
		templates.Render(w, r, "dues_form", data)
		return data, models.PaymentCategory{}, false
	}

	if data.Name == "" {
		return fail("Name is required.")
	}
	amount, err := strconv.ParseFloat(data.Amount, 64)
	if err != nil || amount <= 0 {
		return fail("Amount must be a number greater than zero.")
	}
	rec := models.Recurrence(data.Recurrence)
	if !rec.Valid() {
		return fail("Choose a valid recurrence.")
	}

	cat := models.PaymentCategory{
		OrgID:       org.ID,
		Name:        data.Name,
		Description: data.Description,
		Amount:      amount,
		Recurrence:  rec,
	}
	if data.DueDate != "" {
		due, err := time.Parse("2006-01-02", data.DueDate)
		if err != nil {
			return fail("Due date must be in YYYY-MM-DD format.")
		}
		cat.DueDate = &due
	}

	return data, cat, true
}
