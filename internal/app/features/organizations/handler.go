// internal/app/features/organizations/handler.go
package organizations

import (
	"context"
	"errors"
	"html/template"
	"net/http"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	memberships "github.com/dalemusser/paytrack/internal/app/memberships"
	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	categorystore "github.com/dalemusser/paytrack/internal/app/store/categories"
	membershipstore "github.com/dalemusser/paytrack/internal/app/store/memberships"
	organizationstore "github.com/dalemusser/paytrack/internal/app/store/organizations"
	paymentstore "github.com/dalemusser/paytrack/internal/app/store/payments"
	userstore "github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/auditlog"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/htmlsanitize"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB          *mongo.Database
	Orgs        *organizationstore.Store
	Memberships *membershipstore.Store
	Categories  *categorystore.Store
	Payments    *paymentstore.Store
	Users       *userstore.Store
	MemberSvc   *memberships.Service
	Storage     storage.Store
	ErrLog      *uierrors.ErrorLogger
	AuditLog    *auditlog.Logger
	Log         *zap.Logger
}

func NewHandler(
	db *mongo.Database,
	memberSvc *memberships.Service,
	store storage.Store,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:          db,
		Orgs:        organizationstore.New(db),
		Memberships: membershipstore.New(db),
		Categories:  categorystore.New(db),
		Payments:    paymentstore.New(db),
		Users:       userstore.New(db),
		MemberSvc:   memberSvc,
		Storage:     store,
		ErrLog:      errLog,
		AuditLog:    audit,
		Log:         logger,
	}
}

type orgRow struct {
	ID         string
	Name       string
	Acronym    string
	LogoPath   string
	Fee        string
	MemberRole string // caller's role in the org, "" when not a member
	Pending    bool   // caller has a pending join request
}

type listVM struct {
	viewdata.BaseVM
	Mine    []orgRow
	Others  []orgRow
	Search  string
	IsAdmin bool
	Success string
	Error   string
}

// ServeList handles GET /organizations: the caller's organizations
// first, then the rest of the active ones.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	search := normalize.QueryParam(query.Get(r, "q"))

	orgs, err := h.Orgs.List(ctx, organizationstore.ListFilter{
		Status: models.OrgStatusActive,
		Search: search,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list organizations failed", err, "Unable to load organizations.", "/dashboard")
		return
	}

	mships, err := h.Memberships.ListByUser(ctx, res.UserID, "")
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list memberships failed", err, "Unable to load organizations.", "/dashboard")
		return
	}
	byOrg := make(map[primitive.ObjectID]models.Membership, len(mships))
	for _, m := range mships {
		byOrg[m.OrgID] = m
	}

	vm := listVM{
		BaseVM:  viewdata.NewBaseVM(r, "Organizations", "/dashboard"),
		Search:  search,
		IsAdmin: res.Role == models.RoleAdmin,
	}
	for _, org := range orgs {
		row := orgRow{
			ID:       org.ID.Hex(),
			Name:     org.Name,
			Acronym:  org.Acronym,
			LogoPath: org.LogoPath,
			Fee:      models.FormatAmount(org.MembershipFee),
		}
		if m, ok := byOrg[org.ID]; ok && m.Status != models.MemberStatusInactive {
			row.MemberRole = string(m.Role)
			row.Pending = m.Status == models.MemberStatusPending
			vm.Mine = append(vm.Mine, row)
			continue
		}
		vm.Others = append(vm.Others, row)
	}

	switch r.URL.Query().Get("success") {
	case "created":
		vm.Success = "Organization created successfully"
	case "updated":
		vm.Success = "Organization updated successfully"
	case "deleted":
		vm.Success = "Organization deleted"
	case "joined":
		vm.Success = "Join request sent. An officer will review it."
	}
	switch r.URL.Query().Get("error") {
	case "already_member":
		vm.Error = "You already belong to that organization or have a pending request."
	case "inactive":
		vm.Error = "That organization is not accepting members right now."
	}

	templates.Render(w, r, "org_list", vm)
}

type memberRow struct {
	MembershipID string
	UserID       string
	Name         string
	StudentID    string
	Role         string
	Status       string
	JoinedAt     string
}

type categoryRow struct {
	ID      string
	Name    string
	Amount  string
	DueDate string
}

type detailVM struct {
	viewdata.BaseVM
	ID          string
	Name        string
	Acronym     string
	Description template.HTML
	LogoPath    string
	Fee         string
	Status      string
	Adviser     string
	President   string
	Treasurer   string

	Categories []categoryRow

	IsMember   bool
	IsPending  bool
	IsOfficer  bool
	IsAdmin    bool
	CanJoin    bool
	Members    []memberRow
	PendingReq []memberRow

	Success string
	Error   string
}

// ServeDetail handles GET /organizations/{id}.
func (h *Handler) ServeDetail(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
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

	org, err := h.Orgs.GetByID(ctx, orgID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That organization does not exist.", "/organizations")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load organization failed", err, "Unable to load the organization.", "/organizations")
		return
	}

	isOfficer, err := orgpolicy.IsOrgOfficer(ctx, h.DB, r, orgID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "officer check failed", err, "Unable to load the organization.", "/organizations")
		return
	}

	vm := detailVM{
		BaseVM:      viewdata.NewBaseVM(r, org.DisplayName(), "/organizations"),
		ID:          org.ID.Hex(),
		Name:        org.Name,
		Acronym:     org.Acronym,
		Description: htmlsanitize.PrepareForDisplay(org.Description),
		LogoPath:    org.LogoPath,
		Fee:         models.FormatAmount(org.MembershipFee),
		Status:      string(org.Status),
		IsOfficer:   isOfficer,
		IsAdmin:     res.Role == models.RoleAdmin,
	}

	h.fillOfficerNames(ctx, org, &vm)

	if m, err := h.Memberships.Get(ctx, orgID, res.UserID); err == nil {
		vm.IsMember = m.Status == models.MemberStatusActive
		vm.IsPending = m.Status == models.MemberStatusPending
	}
	vm.CanJoin = !vm.IsMember && !vm.IsPending && org.Status == models.OrgStatusActive

	cats, err := h.Categories.ListByOrg(ctx, orgID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list categories failed", err, "Unable to load the organization.", "/organizations")
		return
	}
	for _, c := range cats {
		row := categoryRow{
			ID:     c.ID.Hex(),
			Name:   c.Name,
			Amount: models.FormatAmount(c.Amount),
		}
		if c.DueDate != nil {
			row.DueDate = c.DueDate.Format("Jan 2, 2006")
		}
		vm.Categories = append(vm.Categories, row)
	}

	if isOfficer {
		if err := h.fillMembers(ctx, orgID, &vm); err != nil {
			h.ErrLog.LogServerError(w, r, "list members failed", err, "Unable to load the organization.", "/organizations")
			return
		}
	}

	switch r.URL.Query().Get("success") {
	case "approved":
		vm.Success = "Membership approved"
	case "rejected":
		vm.Success = "Join request rejected"
	case "role":
		vm.Success = "Member role updated"
	case "removed":
		vm.Success = "Member removed"
	case "officers":
		vm.Success = "Officers updated"
	}

	templates.Render(w, r, "org_detail", vm)
}

func (h *Handler) fillOfficerNames(ctx context.Context, org models.Organization, vm *detailVM) {
	var ids []primitive.ObjectID
	for _, ref := range []*primitive.ObjectID{org.AdviserID, org.PresidentID, org.TreasurerID} {
		if ref != nil {
			ids = append(ids, *ref)
		}
	}
	if len(ids) == 0 {
		return
	}

	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		h.Log.Warn("load officer names failed", zap.Error(err), zap.String("org_id", org.ID.Hex()))
		return
	}
	names := make(map[primitive.ObjectID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.FullName
	}
	if org.AdviserID != nil {
		vm.Adviser = names[*org.AdviserID]
	}
	if org.PresidentID != nil {
		vm.President = names[*org.PresidentID]
	}
	if org.TreasurerID != nil {
		vm.Treasurer = names[*org.TreasurerID]
	}
}

func (h *Handler) fillMembers(ctx context.Context, orgID primitive.ObjectID, vm *detailVM) error {
	active, err := h.Memberships.ListByOrg(ctx, orgID, models.MemberStatusActive)
	if err != nil {
		return err
	}
	pending, err := h.Memberships.ListByOrg(ctx, orgID, models.MemberStatusPending)
	if err != nil {
		return err
	}

	ids := make([]primitive.ObjectID, 0, len(active)+len(pending))
	for _, m := range active {
		ids = append(ids, m.UserID)
	}
	for _, m := range pending {
		ids = append(ids, m.UserID)
	}
	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	toRow := func(m models.Membership) memberRow {
		u := byID[m.UserID]
		return memberRow{
			MembershipID: m.ID.Hex(),
			UserID:       m.UserID.Hex(),
			Name:         u.FullName,
			StudentID:    u.StudentID,
			Role:         string(m.Role),
			Status:       string(m.Status),
			JoinedAt:     m.JoinedAt.Format("Jan 2, 2006"),
		}
	}
	for _, m := range active {
		vm.Members = append(vm.Members, toRow(m))
	}
	for _, m := range pending {
		vm.PendingReq = append(vm.PendingReq, toRow(m))
	}
	return nil
}

// HandleJoin handles POST /organizations/{id}/join.
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
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

	m, err := h.MemberSvc.RequestJoin(ctx, orgID, res.UserID, res.Name)
	switch {
	case errors.Is(err, memberships.ErrAlreadyMember):
		http.Redirect(w, r, "/organizations?error=already_member", http.StatusSeeOther)
		return
	case errors.Is(err, memberships.ErrOrganizationInactive):
		http.Redirect(w, r, "/organizations?error=inactive", http.StatusSeeOther)
		return
	case errors.Is(err, memberships.ErrOrganizationGone):
		uierrors.RenderForbidden(w, r, "That organization does not exist.", "/organizations")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "join organization failed", err, "Unable to send your join request.", "/organizations")
		return
	}

	h.AuditLog.AdminAction(ctx, r, "membership_requested", res.UserID, &orgID, map[string]string{
		"membership_id": m.ID.Hex(),
	})

	http.Redirect(w, r, "/organizations?success=joined", http.StatusSeeOther)
}
