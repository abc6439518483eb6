// Package reports renders collection summaries for organization
// officers: totals by payment status, a monthly collection trend,
// per-category breakdowns, top payers, membership counts, and the
// members who have not paid a given category yet.
package reports

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	"github.com/dalemusser/paytrack/internal/app/store/categories"
	"github.com/dalemusser/paytrack/internal/app/store/organizations"
	"github.com/dalemusser/paytrack/internal/app/store/queries/paymentqueries"
	"github.com/dalemusser/paytrack/internal/app/store/queries/reportqueries"
	"github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
)

const trendMonths = 6

type Handler struct {
	DB         *mongo.Database
	Orgs       *organizationstore.Store
	Categories *categorystore.Store
	Users      *userstore.Store
	PayQ       *paymentqueries.Queries
	ReportQ    *reportqueries.Queries
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Orgs:       organizationstore.New(db),
		Categories: categorystore.New(db),
		Users:      userstore.New(db),
		PayQ:       paymentqueries.New(db),
		ReportQ:    reportqueries.New(db),
		ErrLog:     errLog,
		Log:        logger,
	}
}

type statusCard struct {
	Status string
	Count  int64
	Total  string
}

type trendPoint struct {
	Label string
	Count int64
	Total string
}

type categoryBreak struct {
	ID    string
	Name  string
	Count int64
	Total string
}

type payerRow struct {
	Name      string
	StudentID string
	Count     int64
	Total     string
}

type unpaidRow struct {
	Name      string
	StudentID string
}

type reportVM struct {
	viewdata.BaseVM
	OrgID   string
	OrgName string

	// Echoed date-range filter (YYYY-MM-DD, blank means open-ended).
	From string
	To   string

	StatusCards []statusCard
	Trend       []trendPoint
	Categories  []categoryBreak
	TopPayers   []payerRow

	MembersActive   int64
	MembersPending  int64
	MembersInactive int64

	// Unpaid-members drill-down for one selected category.
	SelectedCategory     string
	SelectedCategoryName string
	Unpaid               []unpaidRow
	UnpaidCount          int
}

// ServeReport handles GET /reports?org=<id> with optional category,
// from, and to parameters. The date range (YYYY-MM-DD, inclusive)
// narrows the status totals, category breakdown, and top payers; the
// monthly trend keeps its own trailing window.
func (h *Handler) ServeReport(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/organizations")
	if !res.OK {
		return
	}

	orgParam := query.Get(r, "org")
	if orgParam == "" {
		http.Redirect(w, r, "/organizations", http.StatusSeeOther)
		return
	}
	orgID, err := primitive.ObjectIDFromHex(orgParam)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad organization id", err, "Invalid organization.", "/organizations")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Batch())
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

	officer, err := orgpolicy.IsOrgOfficer(ctx, h.DB, r, org.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "officer check failed", err, "Unable to verify your permissions.", "/organizations")
		return
	}
	if !officer {
		uierrors.RenderForbidden(w, r, "Only officers of this organization can view its reports.", "/organizations/"+org.ID.Hex())
		return
	}

	vm := reportVM{
		BaseVM:  viewdata.NewBaseVM(r, "Reports · "+org.DisplayName(), "/organizations/"+org.ID.Hex()),
		OrgID:   org.ID.Hex(),
		OrgName: org.DisplayName(),
		From:    normalize.QueryParam(query.Get(r, "from")),
		To:      normalize.QueryParam(query.Get(r, "to")),
	}
	scope := paymentqueries.Scope{OrgID: &org.ID}
	if vm.From != "" {
		if from, err := time.Parse("2006-01-02", vm.From); err == nil {
			scope.From = &from
		} else {
			vm.From = ""
		}
	}
	if vm.To != "" {
		if to, err := time.Parse("2006-01-02", vm.To); err == nil {
			// inclusive through the end of the day
			end := to.Add(24*time.Hour - time.Nanosecond)
			scope.To = &end
		} else {
			vm.To = ""
		}
	}

	totals, err := h.PayQ.TotalsByStatus(ctx, scope)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "status totals failed", err, "Unable to build the report.", "/organizations/"+org.ID.Hex())
		return
	}
	for _, t := range totals {
		vm.StatusCards = append(vm.StatusCards, statusCard{
			Status: string(t.Status),
			Count:  t.Count,
			Total:  models.FormatAmount(t.Total),
		})
	}

	trend, err := h.PayQ.MonthlyTrend(ctx, scope, trendMonths)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "monthly trend failed", err, "Unable to build the report.", "/organizations/"+org.ID.Hex())
		return
	}
	for _, p := range trend {
		vm.Trend = append(vm.Trend, trendPoint{
			Label: p.Label,
			Count: p.Count,
			Total: models.FormatAmount(p.Total),
		})
	}

	if err := h.fillCategories(ctx, &vm, org.ID, scope); err != nil {
		h.ErrLog.LogServerError(w, r, "category breakdown failed", err, "Unable to build the report.", "/organizations/"+org.ID.Hex())
		return
	}

	if err := h.fillTopPayers(ctx, &vm, scope); err != nil {
		h.ErrLog.LogServerError(w, r, "top payers failed", err, "Unable to build the report.", "/organizations/"+org.ID.Hex())
		return
	}

	counts, err := h.ReportQ.CountMemberships(ctx, org.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "membership counts failed", err, "Unable to build the report.", "/organizations/"+org.ID.Hex())
		return
	}
	vm.MembersActive = counts.Active
	vm.MembersPending = counts.Pending
	vm.MembersInactive = counts.Inactive

	if catParam := query.Get(r, "category"); catParam != "" {
		if err := h.fillUnpaid(ctx, &vm, org.ID, catParam); err != nil {
			h.ErrLog.LogServerError(w, r, "unpaid members failed", err, "Unable to build the report.", "/organizations/"+org.ID.Hex())
			return
		}
	}

	templates.Render(w, r, "report", vm)
}

// fillCategories joins the completed-payment distribution with
// category names. Every category of the org appears even with zero
// completed payments so officers see what is not being collected.
func (h *Handler) fillCategories(ctx context.Context, vm *reportVM, orgID primitive.ObjectID, scope paymentqueries.Scope) error {
	dist, err := h.PayQ.CategoryDistribution(ctx, scope)
	if err != nil {
		return err
	}
	byID := make(map[primitive.ObjectID]paymentqueries.CategorySlice, len(dist))
	for _, d := range dist {
		byID[d.CategoryID] = d
	}

	cats, err := h.Categories.ListByOrg(ctx, orgID)
	if err != nil {
		return err
	}
	for _, c := range cats {
		d := byID[c.ID]
		vm.Categories = append(vm.Categories, categoryBreak{
			ID:    c.ID.Hex(),
			Name:  c.Name,
			Count: d.Count,
			Total: models.FormatAmount(d.Total),
		})
		delete(byID, c.ID)
	}
	// Payments against since-deleted categories still count.
	for id, d := range byID {
		vm.Categories = append(vm.Categories, categoryBreak{
			ID:    id.Hex(),
			Name:  "(deleted category)",
			Count: d.Count,
			Total: models.FormatAmount(d.Total),
		})
	}
	return nil
}

func (h *Handler) fillTopPayers(ctx context.Context, vm *reportVM, scope paymentqueries.Scope) error {
	payers, err := h.PayQ.TopPayers(ctx, scope, 10)
	if err != nil {
		return err
	}
	ids := make([]primitive.ObjectID, 0, len(payers))
	for _, p := range payers {
		ids = append(ids, p.UserID)
	}
	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	names := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		names[u.ID] = u
	}
	for _, p := range payers {
		u := names[p.UserID]
		vm.TopPayers = append(vm.TopPayers, payerRow{
			Name:      u.FullName,
			StudentID: u.StudentID,
			Count:     p.Count,
			Total:     models.FormatAmount(p.Total),
		})
	}
	return nil
}

// fillUnpaid lists active members without a completed or pending
// payment for the selected category.
func (h *Handler) fillUnpaid(ctx context.Context, vm *reportVM, orgID primitive.ObjectID, catParam string) error {
	catID, err := primitive.ObjectIDFromHex(catParam)
	if err != nil {
		return nil // ignore a malformed drill-down param
	}
	cat, err := h.Categories.GetByID(ctx, catID)
	if err != nil || cat.OrgID != orgID {
		return nil
	}
	vm.SelectedCategory = cat.ID.Hex()
	vm.SelectedCategoryName = cat.Name

	ids, err := h.ReportQ.UnpaidMembers(ctx, orgID, cat.ID)
	if err != nil {
		return err
	}
	vm.UnpaidCount = len(ids)
	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, u := range users {
		vm.Unpaid = append(vm.Unpaid, unpaidRow{Name: u.FullName, StudentID: u.StudentID})
	}
	return nil
}
