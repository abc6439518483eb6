// Package dashboard is the signed-in landing page. Students see
// their organizations, payment summary, and upcoming dues; officers
// additionally see the organizations they manage with pending
// verification counts.
package dashboard

import (
	"context"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	"github.com/dalemusser/paytrack/internal/app/store/categories"
	"github.com/dalemusser/paytrack/internal/app/store/memberships"
	"github.com/dalemusser/paytrack/internal/app/store/organizations"
	"github.com/dalemusser/paytrack/internal/app/store/payments"
	"github.com/dalemusser/paytrack/internal/app/store/queries/paymentqueries"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
)

// dueSoonWindow is how far ahead the upcoming-dues panel looks.
const dueSoonWindow = 30 * 24 * time.Hour

type Handler struct {
	DB          *mongo.Database
	Orgs        *organizationstore.Store
	Memberships *membershipstore.Store
	Categories  *categorystore.Store
	Payments    *paymentstore.Store
	PayQ        *paymentqueries.Queries
	ErrLog      *uierrors.ErrorLogger
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Orgs:        organizationstore.New(db),
		Memberships: membershipstore.New(db),
		Categories:  categorystore.New(db),
		Payments:    paymentstore.New(db),
		PayQ:        paymentqueries.New(db),
		ErrLog:      errLog,
		Log:         logger,
	}
}

type statusCard struct {
	Status string
	Count  int64
	Total  string
}

type orgCard struct {
	ID   string
	Name string
	Role string
}

type managedCard struct {
	ID           string
	Name         string
	Members      int64
	PendingCount int64
	Collected    string
}

type dueRow struct {
	CategoryID string
	Name       string
	OrgName    string
	Amount     string
	DueDate    string
}

type recentRow struct {
	ID          string
	OrgName     string
	Amount      string
	Status      string
	PaymentDate string
}

type trendPoint struct {
	Label string
	Total string
}

type dashboardVM struct {
	viewdata.BaseVM
	StatusCards []statusCard
	MyOrgs      []orgCard
	DueSoon     []dueRow
	Recent      []recentRow
	Trend       []trendPoint

	IsOfficer bool
	Managed   []managedCard
}

// ServeDashboard handles GET /dashboard.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/dashboard")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
	defer cancel()

	vm := dashboardVM{
		BaseVM: viewdata.NewBaseVM(r, "Dashboard", "/"),
	}

	memberOrgIDs, managedOrgIDs, err := h.fillMyOrgs(ctx, &vm, res.UserID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load memberships failed", err, "Unable to load your dashboard.", "/")
		return
	}

	scope := paymentqueries.Scope{UserID: &res.UserID}

	totals, err := h.PayQ.TotalsByStatus(ctx, scope)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "payment totals failed", err, "Unable to load your dashboard.", "/")
		return
	}
	for _, t := range totals {
		vm.StatusCards = append(vm.StatusCards, statusCard{
			Status: string(t.Status),
			Count:  t.Count,
			Total:  models.FormatAmount(t.Total),
		})
	}

	trend, err := h.PayQ.MonthlyTrend(ctx, scope, 6)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "payment trend failed", err, "Unable to load your dashboard.", "/")
		return
	}
	for _, p := range trend {
		vm.Trend = append(vm.Trend, trendPoint{Label: p.Label, Total: models.FormatAmount(p.Total)})
	}

	if err := h.fillDueSoon(ctx, &vm, memberOrgIDs); err != nil {
		h.ErrLog.LogServerError(w, r, "dues lookup failed", err, "Unable to load your dashboard.", "/")
		return
	}

	if err := h.fillRecent(ctx, &vm, res.UserID); err != nil {
		h.ErrLog.LogServerError(w, r, "recent payments failed", err, "Unable to load your dashboard.", "/")
		return
	}

	if res.Role == models.RoleAdmin {
		// Admins manage every active organization.
		orgs, err := h.Orgs.List(ctx, organizationstore.ListFilter{Status: models.OrgStatusActive})
		if err != nil {
			h.ErrLog.LogServerError(w, r, "list organizations failed", err, "Unable to load your dashboard.", "/")
			return
		}
		managedOrgIDs = managedOrgIDs[:0]
		for _, o := range orgs {
			managedOrgIDs = append(managedOrgIDs, o.ID)
		}
	}
	if len(managedOrgIDs) > 0 {
		vm.IsOfficer = true
		if err := h.fillManaged(ctx, &vm, managedOrgIDs); err != nil {
			h.ErrLog.LogServerError(w, r, "managed orgs failed", err, "Unable to load your dashboard.", "/")
			return
		}
	}

	templates.Render(w, r, "dashboard", vm)
}

// fillMyOrgs lists the caller's active memberships and returns the
// org IDs split into all member orgs and the ones managed with an
// officer-level role.
func (h *Handler) fillMyOrgs(ctx context.Context, vm *dashboardVM, userID primitive.ObjectID) (member, managed []primitive.ObjectID, err error) {
	ms, err := h.Memberships.ListByUser(ctx, userID, models.MemberStatusActive)
	if err != nil {
		return nil, nil, err
	}
	if len(ms) == 0 {
		return nil, nil, nil
	}

	orgIDs := make([]primitive.ObjectID, 0, len(ms))
	for _, m := range ms {
		orgIDs = append(orgIDs, m.OrgID)
	}
	orgs, err := h.Orgs.GetByIDs(ctx, orgIDs)
	if err != nil {
		return nil, nil, err
	}
	names := make(map[primitive.ObjectID]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.DisplayName()
	}

	for _, m := range ms {
		vm.MyOrgs = append(vm.MyOrgs, orgCard{
			ID:   m.OrgID.Hex(),
			Name: names[m.OrgID],
			Role: string(m.Role),
		})
		member = append(member, m.OrgID)
		if m.Role.IsOfficer() {
			managed = append(managed, m.OrgID)
		}
	}
	return member, managed, nil
}

func (h *Handler) fillDueSoon(ctx context.Context, vm *dashboardVM, orgIDs []primitive.ObjectID) error {
	cats, err := h.Categories.DueSoon(ctx, orgIDs, dueSoonWindow)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return nil
	}

	ids := make([]primitive.ObjectID, 0, len(cats))
	for _, c := range cats {
		ids = append(ids, c.OrgID)
	}
	orgs, err := h.Orgs.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	names := make(map[primitive.ObjectID]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.DisplayName()
	}

	for _, c := range cats {
		row := dueRow{
			CategoryID: c.ID.Hex(),
			Name:       c.Name,
			OrgName:    names[c.OrgID],
			Amount:     models.FormatAmount(c.Amount),
		}
		if c.DueDate != nil {
			row.DueDate = c.DueDate.Format("Jan 2, 2006")
		}
		vm.DueSoon = append(vm.DueSoon, row)
	}
	return nil
}

func (h *Handler) fillRecent(ctx context.Context, vm *dashboardVM, userID primitive.ObjectID) error {
	recent, err := h.Payments.List(ctx, paymentstore.ListFilter{
		UserID: &userID,
		Limit:  5,
	})
	if err != nil {
		return err
	}
	if len(recent) == 0 {
		return nil
	}

	ids := make([]primitive.ObjectID, 0, len(recent))
	for _, p := range recent {
		ids = append(ids, p.OrgID)
	}
	orgs, err := h.Orgs.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	names := make(map[primitive.ObjectID]string, len(orgs))
	for _, o := range orgs {
		names[o.ID] = o.DisplayName()
	}

	for _, p := range recent {
		vm.Recent = append(vm.Recent, recentRow{
			ID:          p.ID.Hex(),
			OrgName:     names[p.OrgID],
			Amount:      models.FormatAmount(p.Amount),
			Status:      string(p.Status),
			PaymentDate: p.PaymentDate.Format("Jan 2, 2006"),
		})
	}
	return nil
}

// fillManaged builds one card per managed organization with its
// active member count, pending verification count, and completed
// collection total.
func (h *Handler) fillManaged(ctx context.Context, vm *dashboardVM, orgIDs []primitive.ObjectID) error {
	orgs, err := h.Orgs.GetByIDs(ctx, orgIDs)
	if err != nil {
		return err
	}

	for _, o := range orgs {
		card := managedCard{
			ID:   o.ID.Hex(),
			Name: o.DisplayName(),
		}

		card.Members, err = h.Memberships.CountByOrg(ctx, o.ID, models.MemberStatusActive)
		if err != nil {
			return err
		}

		orgID := o.ID
		card.PendingCount, err = h.Payments.Count(ctx, paymentstore.ListFilter{
			OrgID:  &orgID,
			Status: models.PaymentPending,
		})
		if err != nil {
			return err
		}

		totals, err := h.PayQ.TotalsByStatus(ctx, paymentqueries.Scope{OrgID: &orgID})
		if err != nil {
			return err
		}
		for _, t := range totals {
			if t.Status == models.PaymentCompleted {
				card.Collected = models.FormatAmount(t.Total)
			}
		}

		vm.Managed = append(vm.Managed, card)
	}
	return nil
}
