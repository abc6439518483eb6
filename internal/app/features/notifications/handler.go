// internal/app/features/notifications/handler.go
package notifications

import (
	"context"
	"net/http"
	"strconv"

	uierrors "github.com/dalemusser/paytrack/internal/app/features/errors"
	notificationstore "github.com/dalemusser/paytrack/internal/app/store/notifications"
	"github.com/dalemusser/paytrack/internal/app/system/gates"
	"github.com/dalemusser/paytrack/internal/app/system/paging"
	"github.com/dalemusser/paytrack/internal/app/system/timeouts"
	"github.com/dalemusser/paytrack/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	Store  *notificationstore.Store
	ErrLog *uierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *uierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  notificationstore.New(db),
		ErrLog: errLog,
		Log:    logger,
	}
}

type notificationRow struct {
	ID        string
	Title     string
	Message   string
	Type      string
	IsRead    bool
	CreatedAt string
}

type listVM struct {
	viewdata.BaseVM
	Items    []notificationRow
	HasMore  bool
	NextSkip int64
	PrevSkip int64
	HasPrev  bool
}

// ServeList handles GET /notifications.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login?return=/notifications")
	if !res.OK {
		return
	}

	skip, _ := strconv.ParseInt(query.Get(r, "skip"), 10, 64)
	if skip < 0 {
		skip = 0
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	items, err := h.Store.ListForUser(ctx, res.UserID, paging.PageSize+1, skip)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list notifications failed", err, "Unable to load notifications.", "/dashboard")
		return
	}

	hasMore := len(items) > paging.PageSize
	if hasMore {
		items = items[:paging.PageSize]
	}

	rows := make([]notificationRow, 0, len(items))
	for _, n := range items {
		rows = append(rows, notificationRow{
			ID:        n.ID.Hex(),
			Title:     n.Title,
			Message:   n.Message,
			Type:      string(n.Type),
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.Format("Jan 2, 2006 3:04 PM"),
		})
	}

	vm := listVM{
		BaseVM:   viewdata.NewBaseVM(r, "Notifications", "/dashboard"),
		Items:    rows,
		HasMore:  hasMore,
		NextSkip: skip + paging.PageSize,
		HasPrev:  skip > 0,
	}
	if vm.HasPrev {
		vm.PrevSkip = skip - paging.PageSize
		if vm.PrevSkip < 0 {
			vm.PrevSkip = 0
		}
	}

	templates.Render(w, r, "notifications_list", vm)
}

// HandleMarkRead handles POST /notifications/{id}/read.
func (h *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login")
	if !res.OK {
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad notification id", err, "Invalid notification.", "/notifications")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Store.MarkRead(ctx, id, res.UserID); err != nil {
		h.ErrLog.LogServerError(w, r, "mark notification read failed", err, "Unable to update notification.", "/notifications")
		return
	}

	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
}

// HandleMarkAllRead handles POST /notifications/read-all.
func (h *Handler) HandleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login")
	if !res.OK {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Store.MarkAllRead(ctx, res.UserID); err != nil {
		h.ErrLog.LogServerError(w, r, "mark all notifications read failed", err, "Unable to update notifications.", "/notifications")
		return
	}

	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
}

// HandleDelete handles POST /notifications/{id}/delete.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	res := gates.RequireAuth(w, r, "/login")
	if !res.OK {
		return
	}

	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad notification id", err, "Invalid notification.", "/notifications")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if _, err := h.Store.Delete(ctx, id, res.UserID); err != nil {
		h.ErrLog.LogServerError(w, r, "delete notification failed", err, "Unable to delete notification.", "/notifications")
		return
	}

	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
}
