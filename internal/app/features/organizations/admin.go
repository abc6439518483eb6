// internal/app/features/organizations/admin.go
//
// Admin-only organization management: create, edit, delete, logo
// upload, and officer assignment.
package organizations

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	organizationstore "github.com/dalemusser/paytrack/internal/app/store/organizations"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/limits"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/uploads"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type formVM struct {
	viewdata.BaseVM
	Error       string
	IsEdit      bool
	ID          string
	Name        string
	Acronym     string
	Description string
	Fee         string
	Status      string
	LogoPath    string

	// Officer assignment by student ID.
	AdviserStudentID   string
	PresidentStudentID string
	TreasurerStudentID string
}

// ServeNew handles GET /organizations/new.
func (h *Handler) ServeNew(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAdmin(w, r, "Only administrators can create organizations.", "/organizations")
	if !res.OK {
		return
	}

	templates.Render(w, r, "org_form", formVM{
		BaseVM: viewdata.NewBaseVM(r, "New Organization", "/organizations"),
		Status: string(models.OrgStatusActive),
	})
}

// HandleCreate handles POST /organizations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAdmin(w, r, "Only administrators can create organizations.", "/organizations")
	if !res.OK {
		return
	}

	form, logoPath, ok := h.parseOrgForm(w, r, false, primitive.NilObjectID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	fee, _ := strconv.ParseFloat(form.Fee, 64)
	now := time.Now().UTC()
	org := models.Organization{
		Name:          form.Name,
		NameCI:        text.Fold(form.Name),
		Acronym:       form.Acronym,
		Description:   form.Description,
		LogoPath:      logoPath,
		MembershipFee: fee,
		Status:        models.OrgStatus(form.Status),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var ok2 bool
	org.AdviserID, org.PresidentID, org.TreasurerID, ok2 = h.resolveOfficers(ctx, w, r, form)
	if !ok2 {
		return
	}

	created, err := h.Orgs.Create(ctx, org)
	if errors.Is(err, organizationstore.ErrDuplicateOrganization) {
		form.Error = "An organization with that name already exists."
		templates.Render(w, r, "org_form", form)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create organization failed", err, "Unable to create the organization.", "/organizations")
		return
	}

	h.AuditLog.AdminAction(ctx, r, "org_created", res.UserID, &created.ID, map[string]string{
		"name": created.Name,
	})

	http.Redirect(w, r, "/organizations?success=created", http.StatusSeeOther)
}

// ServeEdit handles GET /organizations/{id}/edit.
func (h *Handler) ServeEdit(w http.ResponseWriter, r *http.Request) {
	orgID, org, ok := h.requireEditableOrg(w, r)
	if !ok {
		return
	}

	form := formVM{
		BaseVM:      viewdata.NewBaseVM(r, "Edit "+org.DisplayName(), "/organizations/"+orgID.Hex()),
		IsEdit:      true,
		ID:          orgID.Hex(),
		Name:        org.Name,
		Acronym:     org.Acronym,
		Description: org.Description,
		Fee:         strconv.FormatFloat(org.MembershipFee, 'f', 2, 64),
		Status:      string(org.Status),
		LogoPath:    org.LogoPath,
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	h.fillOfficerStudentIDs(ctx, org, &form)

	templates.Render(w, r, "org_form", form)
}

// HandleEdit handles POST /organizations/{id}/edit.
func (h *Handler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	orgID, org, ok := h.requireEditableOrg(w, r)
	if !ok {
		return
	}
	res := gates.RequireAuth(w, r, "/login")
	if !res.OK {
		return
	}

	form, logoPath, ok := h.parseOrgForm(w, r, true, orgID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	fee, _ := strconv.ParseFloat(form.Fee, 64)
	upd := models.Organization{
		Name:          form.Name,
		NameCI:        text.Fold(form.Name),
		Acronym:       form.Acronym,
		Description:   form.Description,
		MembershipFee: fee,
		Status:        models.OrgStatus(form.Status),
	}
	if logoPath != "" {
		upd.LogoPath = logoPath
	} else {
		upd.LogoPath = org.LogoPath
	}

	if exists, err := h.Orgs.NameExistsForOther(ctx, upd.NameCI, orgID); err != nil {
		h.ErrLog.LogServerError(w, r, "organization name check failed", err, "Unable to update the organization.", "/organizations")
		return
	} else if exists {
		form.Error = "Another organization already uses that name."
		templates.Render(w, r, "org_form", form)
		return
	}

	adviser, president, treasurer, ok2 := h.resolveOfficers(ctx, w, r, form)
	if !ok2 {
		return
	}

	if err := h.Orgs.Update(ctx, orgID, upd); err != nil {
		h.ErrLog.LogServerError(w, r, "update organization failed", err, "Unable to update the organization.", "/organizations")
		return
	}
	if err := h.Orgs.SetOfficers(ctx, orgID, adviser, president, treasurer); err != nil {
		h.ErrLog.LogServerError(w, r, "set officers failed", err, "Unable to update the officers.", "/organizations")
		return
	}

	h.AuditLog.AdminAction(ctx, r, "org_updated", res.UserID, &orgID, map[string]string{
		"name": upd.Name,
	})

	http.Redirect(w, r, "/organizations/"+orgID.Hex()+"?success=updated", http.StatusSeeOther)
}

// HandleDelete handles POST /organizations/{id}/delete. Admin only.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAdmin(w, r, "Only administrators can delete organizations.", "/organizations")
	if !res.OK {
		return
	}

	orgID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad organization id", err, "Invalid organization.", "/organizations")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if _, err := h.Orgs.Delete(ctx, orgID); err != nil {
		h.ErrLog.LogServerError(w, r, "delete organization failed", err, "Unable to delete the organization.", "/organizations")
		return
	}

	h.AuditLog.AdminAction(ctx, r, "org_deleted", res.UserID, &orgID, nil)

	http.Redirect(w, r, "/organizations?success=deleted", http.StatusSeeOther)
}

// requireEditableOrg loads the target organization and enforces the
// officer-or-admin gate for edit operations.
func (h *Handler) requireEditableOrg(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, models.Organization, bool) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
	if !res.OK {
		return primitive.NilObjectID, models.Organization{}, false
	}

	orgID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad organization id", err, "Invalid organization.", "/organizations")
		return primitive.NilObjectID, models.Organization{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	org, err := h.Orgs.GetByID(ctx, orgID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That organization does not exist.", "/organizations")
		return primitive.NilObjectID, models.Organization{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load organization failed", err, "Unable to load the organization.", "/organizations")
		return primitive.NilObjectID, models.Organization{}, false
	}

	allowed, err := orgpolicy.IsOrgOfficer(ctx, h.DB, r, orgID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "officer check failed", err, "Unable to load the organization.", "/organizations")
		return primitive.NilObjectID, models.Organization{}, false
	}
	if !allowed {
		uierrors.RenderForbidden(w, r, "Only organization officers can edit this organization.", "/organizations/"+orgID.Hex())
		return primitive.NilObjectID, models.Organization{}, false
	}

	return orgID, org, true
}

// parseOrgForm reads the multipart organization form, uploading the
// optional logo. Returns ok=false when a response has been written.
func (h *Handler) parseOrgForm(w http.ResponseWriter, r *http.Request, isEdit bool, orgID primitive.ObjectID) (formVM, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxLogoUploadSize+limits.MaxFormSize)
	if err := r.ParseMultipartForm(limits.MaxLogoUploadSize); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse organization form failed", err, "The upload is too large or the form is invalid.", "/organizations")
		return formVM{}, "", false
	}

	title := "New Organization"
	if isEdit {
		title = "Edit Organization"
	}
	form := formVM{
		BaseVM:             viewdata.NewBaseVM(r, title, "/organizations"),
		IsEdit:             isEdit,
		Name:               normalize.Name(r.FormValue("name")),
		Acronym:            normalize.Name(r.FormValue("acronym")),
		Description:        r.FormValue("description"),
		Fee:                normalize.QueryParam(r.FormValue("membership_fee")),
		Status:             normalize.Status(r.FormValue("status")),
		AdviserStudentID:   normalize.StudentID(r.FormValue("adviser_student_id")),
		PresidentStudentID: normalize.StudentID(r.FormValue("president_student_id")),
		TreasurerStudentID: normalize.StudentID(r.FormValue("treasurer_student_id")),
	}
	if isEdit {
		form.ID = orgID.Hex()
	}

	if form.Name == "" {
		form.Error = "Organization name is required."
		templates.Render(w, r, "org_form", form)
		return formVM{}, "", false
	}
	if !models.OrgStatus(form.Status).Valid() {
		form.Status = string(models.OrgStatusActive)
	}
	if fee, err := strconv.ParseFloat(form.Fee, 64); err != nil || fee < 0 {
		form.Error = "Membership fee must be a non-negative amount."
		templates.Render(w, r, "org_form", form)
		return formVM{}, "", false
	}

	logoPath := ""
	file, header, err := r.FormFile("logo")
	if err == nil {
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if !uploads.AllowedImageTypes[contentType] {
			form.Error = "Logo must be a JPEG, PNG, GIF, or WebP image."
			templates.Render(w, r, "org_form", form)
			return formVM{}, "", false
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
		defer cancel()

		info, upErr := uploads.Save(ctx, h.Storage, "logos", header.Filename, file, header.Size, contentType)
		if upErr != nil {
			h.ErrLog.LogServerError(w, r, "store logo failed", upErr, "Unable to store the logo.", "/organizations")
			return formVM{}, "", false
		}
		logoPath = info.Path
	}

	return form, logoPath, true
}

// resolveOfficers maps the typed student IDs to user references. A blank
// field clears the slot. Returns ok=false when a response was written.
func (h *Handler) resolveOfficers(ctx context.Context, w http.ResponseWriter, r *http.Request, form formVM) (adviser, president, treasurer *primitive.ObjectID, ok bool) {
	lookup := func(studentID, label string) (*primitive.ObjectID, bool) {
		if studentID == "" {
			return nil, true
		}
		u, err := h.Users.GetByStudentID(ctx, studentID)
		if errors.Is(err, mongo.ErrNoDocuments) {
			form.Error = "No account found for " + label + " student ID " + studentID + "."
			templates.Render(w, r, "org_form", form)
			return nil, false
		}
		if err != nil {
			h.ErrLog.LogServerError(w, r, "officer lookup failed", err, "Unable to look up the "+label+".", "/organizations")
			return nil, false
		}
		id := u.ID
		return &id, true
	}

	if adviser, ok = lookup(form.AdviserStudentID, "adviser"); !ok {
		return nil, nil, nil, false
	}
	if president, ok = lookup(form.PresidentStudentID, "president"); !ok {
		return nil, nil, nil, false
	}
	if treasurer, ok = lookup(form.TreasurerStudentID, "treasurer"); !ok {
		return nil, nil, nil, false
	}
	return adviser, president, treasurer, true
}

// fillOfficerStudentIDs populates the form with the current officers'
// student IDs for display.
func (h *Handler) fillOfficerStudentIDs(ctx context.Context, org models.Organization, form *formVM) {
	set := func(ref *primitive.ObjectID, dst *string) {
		if ref == nil {
			return
		}
		u, err := h.Users.GetByID(ctx, *ref)
		if err != nil {
			return
		}
		*dst = u.StudentID
	}
	set(org.AdviserID, &form.AdviserStudentID)
	set(org.PresidentID, &form.PresidentStudentID)
	set(org.TreasurerID, &form.TreasurerStudentID)
}
