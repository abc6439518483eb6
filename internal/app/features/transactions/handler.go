// Package transactions lists payment history: a student's own
// payments across organizations, and for officers, every payment of
// an organization with status and method filters.
package transactions

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	"github.com/dalemusser/paytrack/internal/app/policy/orgpolicy"
	"github.com/dalemusser/paytrack/internal/app/store/categories"
	"github.com/dalemusser/paytrack/internal/app/store/organizations"
	"github.com/dalemusser/paytrack/internal/app/store/payments"
	"github.com/dalemusser/paytrack/internal/app/store/users"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/normalize"
	"github.com/dalemusser/paytrack/internal/app/system/paging"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
)

type Handler struct {
	DB         *mongo.Database
	Payments   *paymentstore.Store
	Categories *categorystore.Store
	Orgs       *organizationstore.Store
	Users      *userstore.Store
	ErrLog     *uierrors.ErrorLogger
	Log        *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		DB:         db,
		Payments:   paymentstore.New(db),
		Categories: categorystore.New(db),
		Orgs:       organizationstore.New(db),
		Users:      userstore.New(db),
		ErrLog:     errLog,
		Log:        logger,
	}
}

type paymentRow struct {
	ID           string
	PayerName    string
	OrgName      string
	CategoryName string
	Amount       string
	Method       string
	Status       string
	PaymentDate  string
}

type listVM struct {
	viewdata.BaseVM
	OrgView bool
	OrgID   string
	OrgName string

	Status string
	Method string
	From   string
	To     string

	Rows     []paymentRow
	Total    string
	HasPrev  bool
	HasNext  bool
	PrevSkip int64
	NextSkip int64
}

// ServeList handles GET /transactions. Without parameters it shows
// the caller's own payments. With ?org=<id> it shows the whole
// organization's payments, which requires an officer role there.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/transactions")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	filter := paymentstore.ListFilter{
		Limit: paging.LimitPlusOne(),
	}

	vm := listVM{
		Status: normalize.QueryParam(query.Get(r, "status")),
		Method: normalize.QueryParam(query.Get(r, "method")),
		From:   normalize.QueryParam(query.Get(r, "from")),
		To:     normalize.QueryParam(query.Get(r, "to")),
	}
	if s := models.PaymentStatus(vm.Status); s.Valid() {
		filter.Status = s
	} else {
		vm.Status = ""
	}
	if m := models.PaymentMethod(vm.Method); m.Valid() {
		filter.Method = m
	} else {
		vm.Method = ""
	}
	if vm.From != "" {
		if from, err := time.Parse("2006-01-02", vm.From); err == nil {
			filter.From = &from
		} else {
			vm.From = ""
		}
	}
	if vm.To != "" {
		if to, err := time.Parse("2006-01-02", vm.To); err == nil {
			// inclusive through the end of the day
			end := to.Add(24*time.Hour - time.Nanosecond)
			filter.To = &end
		} else {
			vm.To = ""
		}
	}

	skip, _ := strconv.ParseInt(query.Get(r, "skip"), 10, 64)
	if skip < 0 {
		skip = 0
	}
	filter.Skip = skip

	if orgParam := query.Get(r, "org"); orgParam != "" {
		org, ok := h.requireOfficerForOrg(ctx, w, r, orgParam)
		if !ok {
			return
		}
		vm.OrgView = true
		vm.OrgID = org.ID.Hex()
		vm.OrgName = org.DisplayName()
		vm.BaseVM = viewdata.NewBaseVM(r, "Transactions · "+org.DisplayName(), "/organizations/"+org.ID.Hex())
		filter.OrgID = &org.ID
	} else {
		vm.BaseVM = viewdata.NewBaseVM(r, "My Payments", "/dashboard")
		filter.UserID = &res.UserID
	}

	rows, err := h.Payments.List(ctx, filter)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list payments failed", err, "Unable to load payments.", "/dashboard")
		return
	}
	if len(rows) > paging.PageSize {
		rows = rows[:paging.PageSize]
		vm.HasNext = true
		vm.NextSkip = skip + int64(paging.PageSize)
	}
	vm.HasPrev = skip > 0
	vm.PrevSkip = skip - int64(paging.PageSize)
	if vm.PrevSkip < 0 {
		vm.PrevSkip = 0
	}

	total, err := h.Payments.Count(ctx, paymentstore.ListFilter{
		UserID:     filter.UserID,
		OrgID:      filter.OrgID,
		CategoryID: filter.CategoryID,
		Status:     filter.Status,
		Method:     filter.Method,
		From:       filter.From,
		To:         filter.To,
	})
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count payments failed", err, "Unable to load payments.", "/dashboard")
		return
	}
	vm.Total = strconv.FormatInt(total, 10)

	vm.Rows, err = h.buildRows(ctx, rows, vm.OrgView)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "resolve payment rows failed", err, "Unable to load payments.", "/dashboard")
		return
	}

	templates.Render(w, r, "transactions_list", vm)
}

func (h *Handler) requireOfficerForOrg(ctx context.Context, w http.ResponseWriter, r *http.Request, orgParam string) (models.Organization, bool) {
	orgID, err := primitive.ObjectIDFromHex(orgParam)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad organization id", err, "Invalid organization.", "/transactions")
		return models.Organization{}, false
	}

	org, err := h.Orgs.GetByID(ctx, orgID)
	if errors.Is(err, mongo.ErrNoDocuments) {
		uierrors.RenderForbidden(w, r, "That organization does not exist.", "/transactions")
		return models.Organization{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load organization failed", err, "Unable to load the organization.", "/transactions")
		return models.Organization{}, false
	}

	officer, err := orgpolicy.IsOrgOfficer(ctx, h.DB, r, org.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "officer check failed", err, "Unable to verify your permissions.", "/transactions")
		return models.Organization{}, false
	}
	if !officer {
		uierrors.RenderForbidden(w, r, "Only officers of this organization can view its transactions.", "/transactions")
		return models.Organization{}, false
	}
	return org, true
}

// buildRows resolves the payer, organization, and category names for
// a page of payments with one batched lookup per collection.
func (h *Handler) buildRows(ctx context.Context, payments []models.Payment, withPayer bool) ([]paymentRow, error) {
	userIDs := make([]primitive.ObjectID, 0, len(payments))
	orgIDs := make([]primitive.ObjectID, 0, len(payments))
	catIDs := make([]primitive.ObjectID, 0, len(payments))
	for _, p := range payments {
		userIDs = append(userIDs, p.UserID)
		orgIDs = append(orgIDs, p.OrgID)
		catIDs = append(catIDs, p.CategoryID)
	}

	userNames := map[primitive.ObjectID]string{}
	if withPayer {
		users, err := h.Users.GetByIDs(ctx, userIDs)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			userNames[u.ID] = u.FullName
		}
	}

	orgNames := map[primitive.ObjectID]string{}
	orgs, err := h.Orgs.GetByIDs(ctx, orgIDs)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		orgNames[o.ID] = o.DisplayName()
	}

	catNames := map[primitive.ObjectID]string{}
	cats, err := h.Categories.GetByIDs(ctx, catIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range cats {
		catNames[c.ID] = c.Name
	}

	rows := make([]paymentRow, 0, len(payments))
	for _, p := range payments {
		rows = append(rows, paymentRow{
			ID:           p.ID.Hex(),
			PayerName:    userNames[p.UserID],
			OrgName:      orgNames[p.OrgID],
			CategoryName: catNames[p.CategoryID],
			Amount:       models.FormatAmount(p.Amount),
			Method:       string(p.Method),
			Status:       string(p.Status),
			PaymentDate:  p.PaymentDate.Format("Jan 2, 2006 3:04 PM"),
		})
	}
	return rows, nil
}
