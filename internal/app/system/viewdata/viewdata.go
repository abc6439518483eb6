// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"context"
	"net/http"

	"github.com/dalemusser/paytrack/internal/app/system/authz"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", "/default-back"),
//	    // page-specific fields...
//	}
type BaseVM struct {
	SiteName string

	// User context (from auth middleware)
	IsLoggedIn bool
	Role       string
	UserName   string

	// Unread notification count for the header badge.
	UnreadCount int64

	// Page context
	Title       string
	BackURL     string
	CurrentPath string

	// CSRF protection
	CSRFToken string
}

// UnreadCounter returns the number of unread notifications for a user.
// Set by bootstrap once the notification store exists, so this package
// doesn't depend on the store layer.
type UnreadCounter func(ctx context.Context, userID string) int64

var unreadCounter UnreadCounter

// SetUnreadCounter installs the counter used to populate the header badge.
// Call once at startup from bootstrap.
func SetUnreadCounter(c UnreadCounter) {
	unreadCounter = c
}

// NewBaseVM creates a fully populated BaseVM for a page.
// backDefault is the back-button target when the request carries no
// return URL.
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	vm := BaseVM{
		SiteName:    models.DefaultSiteName,
		Title:       title,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}

	if u := authz.UserCtx(r); u != nil {
		vm.IsLoggedIn = true
		vm.Role = u.Role
		vm.UserName = u.Name
		if unreadCounter != nil {
			vm.UnreadCount = unreadCounter(r.Context(), u.ID)
		}
	}

	return vm
}
