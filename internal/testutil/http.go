package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID               string
	Name             string
	Username         string
	Email            string
	Role             string
	OrganizationID   string
	OrganizationName string
}

// AdminUser returns a TestUser with admin role.
func AdminUser() TestUser {
	return TestUser{
		ID:       primitive.NewObjectID().Hex(),
		Name:     "Test Admin",
		Username: "admin",
		Email:    "admin@test.com",
		Role:     models.RoleAdmin,
	}
}

// CitizenUser returns a TestUser with citizen role.
func CitizenUser() TestUser {
	return TestUser{
		ID:       primitive.NewObjectID().Hex(),
		Name:     "Test Citizen",
		Username: "citizen",
		Email:    "citizen@test.com",
		Role:     models.RoleCitizen,
	}
}

// ModeratorUser returns a TestUser with moderator role and organization.
func ModeratorUser(orgID primitive.ObjectID) TestUser {
	return TestUser{
		ID:               primitive.NewObjectID().Hex(),
		Name:             "Test Moderator",
		Username:         "moderator",
		Email:            "moderator@test.com",
		Role:             models.RoleModerator,
		OrganizationID:   orgID.Hex(),
		OrganizationName: "Test Organization",
	}
}

// UserFor builds a TestUser from a stored account.
func UserFor(a models.Account) TestUser {
	u := TestUser{
		ID:       a.ID.Hex(),
		Name:     a.DisplayName(),
		Username: a.Username,
		Email:    a.Email,
		Role:     a.Role,
	}
	if a.OrganizationID != nil {
		u.OrganizationID = a.OrganizationID.Hex()
	}
	return u
}

// WithUser adds a user to the request context for testing authenticated handlers.
// This bypasses the session middleware and injects the user directly.
func WithUser(r *http.Request, user TestUser) *http.Request {
	sessionUser := &auth.SessionUser{
		ID:               user.ID,
		Name:             user.Name,
		LoginID:          user.Username,
		Email:            user.Email,
		Role:             user.Role,
		OrganizationID:   user.OrganizationID,
		OrganizationName: user.OrganizationName,
	}
	return auth.WithTestUser(r, sessionUser)
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	return WithUser(req, user)
}

// NewFormRequest creates a url-encoded POST request.
func NewFormRequest(target string, form url.Values) *http.Request {
	var body io.Reader = strings.NewReader(form.Encode())
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// NewAuthenticatedFormRequest creates a url-encoded POST request as user.
func NewAuthenticatedFormRequest(target string, form url.Values, user TestUser) *http.Request {
	return WithUser(NewFormRequest(target, form), user)
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

// AssertNotContains checks that the response body does not contain s.
func (r *ResponseRecorder) AssertNotContains(t interface{ Errorf(string, ...any) }, s string) {
	if strings.Contains(r.Body.String(), s) {
		t.Errorf("response body unexpectedly contains %q", s)
	}
}
