package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/dalemusser/paytrack/internal/app/system/auth"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID        string
	Name      string
	Email     string
	StudentID string
	Role      string
}

// AdminUser returns a TestUser with the admin role.
func AdminUser() TestUser {
	return TestUser{
		ID:        primitive.NewObjectID().Hex(),
		Name:      "Test Admin",
		Email:     "admin@test.edu",
		StudentID: "0000-0001",
		Role:      string(models.RoleAdmin),
	}
}

// StudentUser returns a TestUser with the student role.
func StudentUser() TestUser {
	return TestUser{
		ID:        primitive.NewObjectID().Hex(),
		Name:      "Test Student",
		Email:     "student@test.edu",
		StudentID: "2023-0001",
		Role:      string(models.RoleStudent),
	}
}

// OfficerUser returns a TestUser with the officer role.
func OfficerUser() TestUser {
	return TestUser{
		ID:        primitive.NewObjectID().Hex(),
		Name:      "Test Officer",
		Email:     "officer@test.edu",
		StudentID: "2022-0001",
		Role:      string(models.RoleOfficer),
	}
}

// UserFor wraps a fixture-created user as a TestUser so handler tests
// and store fixtures agree on the ID.
func UserFor(u models.User) TestUser {
	return TestUser{
		ID:        u.ID.Hex(),
		Name:      u.FullName,
		Email:     u.Email,
		StudentID: u.StudentID,
		Role:      string(u.Role),
	}
}

// WithUser adds a user to the request context for testing authenticated
// handlers. This bypasses the session middleware and injects the user
// directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	sessionUser := &auth.SessionUser{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		StudentID: user.StudentID,
		Role:      user.Role,
	}
	return auth.WithTestUser(r, sessionUser)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), user)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

// NewRecorder creates a new ResponseRecorder.
func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

// AssertStatus checks the response status code.
func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d", r.Code, expected)
	}
}

// AssertRedirect checks for a redirect to the expected location.
func (r *ResponseRecorder) AssertRedirect(t interface{ Errorf(string, ...any) }, expectedLocation string) {
	if r.Code != http.StatusSeeOther && r.Code != http.StatusFound && r.Code != http.StatusMovedPermanently {
		t.Errorf("expected redirect status, got %d", r.Code)
	}
	location := r.Header().Get("Location")
	if location != expectedLocation {
		t.Errorf("redirect location: got %q, want %q", location, expectedLocation)
	}
}

// AssertContains checks if the response body contains the expected string.
func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}
