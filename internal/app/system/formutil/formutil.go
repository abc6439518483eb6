// Package formutil provides helpers for form re-rendering with validation errors.
//
// When a form submission fails validation, the form is re-rendered with the
// user's previously entered values echoed back, an error message, and the
// context data the form needs (dropdowns, etc.). Base carries the common
// fields and SetBase populates them from the request.
//
// Example usage:
//
//	type paymentFormData struct {
//		formutil.Base
//		Amount     string
//		Method     string
//		Categories []categoryOption
//	}
//
//	// In your handler:
//	data := paymentFormData{Amount: amount, Method: method}
//	formutil.SetBase(&data.Base, r, "Submit Payment", "/dues")
//	data.SetError("Amount must be greater than zero.")
//	templates.Render(w, r, "payment_new", data)
package formutil

import (
	"html/template"
	"net/http"

	"github.com/dalemusser/paytrack/internal/app/system/authz"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// Base contains common fields for form pages that can be embedded in form data structs.
type Base struct {
	Title       string
	IsLoggedIn  bool
	Role        string
	UserName    string
	UnreadCount int64
	BackURL     string
	CurrentPath string
	CSRFToken   string
	Error       template.HTML
}

// SetBase populates the common Base fields from the request context.
// backDefault is used for the back button when the request carries no
// return URL.
func SetBase(b *Base, r *http.Request, title, backDefault string) {
	b.Title = title
	b.BackURL = httpnav.ResolveBackURL(r, backDefault)
	b.CurrentPath = httpnav.CurrentPath(r)
	b.CSRFToken = csrf.Token(r)
	if u := authz.UserCtx(r); u != nil {
		b.IsLoggedIn = true
		b.Role = u.Role
		b.UserName = u.Name
	}
}

// SetError sets the error message on a Base struct.
func (b *Base) SetError(msg string) {
	b.Error = template.HTML(msg)
}
