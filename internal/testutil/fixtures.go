package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain-text password of every fixture account.
const TestPassword = "correct-horse-battery"

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, _ := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert into %s: %v", coll, err)
	}
}

// CreateRegion creates a region.
func (f *Fixtures) CreateRegion(ctx context.Context, name string) models.Region {
	f.t.Helper()
	now := time.Now().UTC()
	r := models.Region{ID: primitive.NewObjectID(), Name: name, NameCI: text.Fold(name), CreatedAt: now, UpdatedAt: now}
	f.insert(ctx, "regions", r)
	return r
}

// CreateDistrict creates a district in regionID.
func (f *Fixtures) CreateDistrict(ctx context.Context, name string, regionID primitive.ObjectID) models.District {
	f.t.Helper()
	now := time.Now().UTC()
	d := models.District{ID: primitive.NewObjectID(), RegionID: regionID, Name: name, NameCI: text.Fold(name), CreatedAt: now, UpdatedAt: now}
	f.insert(ctx, "districts", d)
	return d
}

// CreateOrganization creates a test organization with the given name.
// districtID may be nil.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string, districtID *primitive.ObjectID) models.Organization {
	f.t.Helper()
	now := time.Now().UTC()
	org := models.Organization{
		ID:         primitive.NewObjectID(),
		Name:       name,
		NameCI:     text.Fold(name),
		Address:    "1 Test Street",
		Phone:      "+998 71 000 00 00",
		Email:      "org@test.com",
		DistrictID: districtID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.insert(ctx, "organizations", org)
	return org
}

// CreateAccount creates an active account with TestPassword.
func (f *Fixtures) CreateAccount(ctx context.Context, username, role string, orgID *primitive.ObjectID) models.Account {
	f.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	a := models.Account{
		ID:             primitive.NewObjectID(),
		Username:       username,
		UsernameCI:     text.Fold(username),
		Email:          username + "@test.com",
		PasswordHash:   string(hash),
		FirstName:      "Test",
		LastName:       username,
		Role:           role,
		OrganizationID: orgID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	f.insert(ctx, "accounts", a)
	return a
}

// CreateCitizen creates an active citizen account.
func (f *Fixtures) CreateCitizen(ctx context.Context, username string) models.Account {
	f.t.Helper()
	return f.CreateAccount(ctx, username, models.RoleCitizen, nil)
}

// CreateAdmin creates an active admin account.
func (f *Fixtures) CreateAdmin(ctx context.Context, username string) models.Account {
	f.t.Helper()
	return f.CreateAccount(ctx, username, models.RoleAdmin, nil)
}

// CreateModerator creates an active moderator of orgID.
func (f *Fixtures) CreateModerator(ctx context.Context, username string, orgID primitive.ObjectID) models.Account {
	f.t.Helper()
	return f.CreateAccount(ctx, username, models.RoleModerator, &orgID)
}

// CreateInactiveCitizen creates a citizen that has not verified its email.
func (f *Fixtures) CreateInactiveCitizen(ctx context.Context, username string) models.Account {
	f.t.Helper()
	a := f.CreateCitizen(ctx, username)
	if _, err := f.db.Collection("accounts").UpdateByID(ctx, a.ID,
		map[string]any{"$set": map[string]any{"is_active": false}}); err != nil {
		f.t.Fatalf("deactivate account: %v", err)
	}
	a.IsActive = false
	return a
}

// ComplaintOption customizes CreateComplaint.
type ComplaintOption func(*models.Complaint)

// WithStatus sets the complaint status.
func WithStatus(s models.ComplaintStatus) ComplaintOption {
	return func(c *models.Complaint) { c.Status = s }
}

// WithPriority sets the complaint priority.
func WithPriority(p models.Priority) ComplaintOption {
	return func(c *models.Complaint) { c.Priority = p }
}

// WithOrganization assigns the complaint to orgID.
func WithOrganization(orgID primitive.ObjectID) ComplaintOption {
	return func(c *models.Complaint) { c.AssignedOrganizationID = &orgID }
}

// WithLocation pins the complaint on the map.
func WithLocation(lat, lng float64) ComplaintOption {
	return func(c *models.Complaint) { c.Location = models.NewPoint(lat, lng) }
}

// WithGeo sets region and district.
func WithGeo(regionID, districtID primitive.ObjectID) ComplaintOption {
	return func(c *models.Complaint) {
		c.RegionID = &regionID
		c.DistrictID = &districtID
	}
}

// WithCreatedAt overrides the creation time.
func WithCreatedAt(t time.Time) ComplaintOption {
	return func(c *models.Complaint) { c.CreatedAt = t; c.UpdatedAt = t }
}

// WithAnswer sets the answer text.
func WithAnswer(s string) ComplaintOption {
	return func(c *models.Complaint) { c.AnswerText = s }
}

// CreateComplaint creates a new, medium-priority complaint owned by ownerID.
func (f *Fixtures) CreateComplaint(ctx context.Context, title string, ownerID primitive.ObjectID, opts ...ComplaintOption) models.Complaint {
	f.t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	c := models.Complaint{
		ID:          primitive.NewObjectID(),
		Title:       title,
		Description: "Description of " + title,
		Status:      models.StatusNew,
		Priority:    models.DefaultPriority,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, o := range opts {
		o(&c)
	}
	if c.Status == models.StatusClosed && c.ClosedAt == nil {
		closed := c.UpdatedAt
		c.ClosedAt = &closed
	}
	f.insert(ctx, "complaints", c)
	return c
}

// CreateComplaintImage attaches an image record to complaintID.
func (f *Fixtures) CreateComplaintImage(ctx context.Context, complaintID primitive.ObjectID, path string) models.ComplaintImage {
	f.t.Helper()
	img := models.ComplaintImage{
		ID:          primitive.NewObjectID(),
		ComplaintID: complaintID,
		Path:        path,
		ContentType: "image/png",
		Size:        64,
		CreatedAt:   time.Now().UTC(),
	}
	f.insert(ctx, "complaint_images", img)
	return img
}
