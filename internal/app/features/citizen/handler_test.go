package citizen_test

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/features/citizen"
	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/imagestore"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/ekomurojaat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type env struct {
	h     *citizen.Handler
	db    *mongo.Database
	fx    *testutil.Fixtures
	media string
}

func newTestEnv(t *testing.T) env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.BootTemplates(t)
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-32b", "test-session", "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	dir := t.TempDir()
	media, err := imagestore.NewLocal(dir, "/media", 1<<20)
	if err != nil {
		t.Fatalf("imagestore.NewLocal failed: %v", err)
	}
	h := citizen.NewHandler(db, sm, uierrors.NewErrorLogger(logger), media, nil, 2, logger)
	return env{h: h, db: db, fx: testutil.NewFixtures(t, db), media: dir}
}

func call(fn func()) {
	defer func() {
		// Template rendering may panic in tests - that's expected
		_ = recover()
	}()
	fn()
}

func countComplaints(t *testing.T, db *mongo.Database, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := db.Collection("complaints").CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("images", name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleCreate_Defaults(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "owner")

	form := url.Values{"title": {"Garbage on the street"}, "description": {"<b>Not</b> collected for a week"}}
	req := testutil.NewAuthenticatedFormRequest("/user/complaint/create/", form, testutil.UserFor(owner))
	rec := httptest.NewRecorder()
	e.h.HandleCreate(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	var c models.Complaint
	if err := e.db.Collection("complaints").FindOne(ctx, bson.M{"owner_id": owner.ID}).Decode(&c); err != nil {
		t.Fatalf("find complaint: %v", err)
	}
	if want := fmt.Sprintf("/user/complaint/%s/", c.ID.Hex()); rec.Header().Get("Location") != want {
		t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), want)
	}
	if c.Status != models.StatusNew || c.Priority != models.PriorityMedium {
		t.Errorf("status/priority = %s/%s, want new/medium", c.Status, c.Priority)
	}
	if c.AssignedOrganizationID != nil || c.Location != nil {
		t.Error("new complaint should have no organization and no location")
	}
	if c.Description != "Not collected for a week" {
		t.Errorf("description not sanitized: %q", c.Description)
	}
}

func TestHandleCreate_WithLocationAndDistrictOnly(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "geo")
	region := e.fx.CreateRegion(ctx, "Toshkent")
	district := e.fx.CreateDistrict(ctx, "Yunusobod", region.ID)

	form := url.Values{
		"title":       {"Smoke"},
		"description": {"Factory smoke"},
		"district":    {district.ID.Hex()},
		"lat":         {"41.36"},
		"lng":         {"69.29"},
	}
	rec := httptest.NewRecorder()
	e.h.HandleCreate(rec, testutil.NewAuthenticatedFormRequest("/user/complaint/create/", form, testutil.UserFor(owner)))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	var c models.Complaint
	if err := e.db.Collection("complaints").FindOne(ctx, bson.M{"owner_id": owner.ID}).Decode(&c); err != nil {
		t.Fatalf("find complaint: %v", err)
	}
	if c.RegionID == nil || *c.RegionID != region.ID {
		t.Error("region should be derived from the district")
	}
	if c.Location == nil || c.Location.Lat() != 41.36 || c.Location.Lng() != 69.29 {
		t.Errorf("location = %+v", c.Location)
	}
}

func TestHandleCreate_RejectsInvalidInput(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "invalid")
	regionA := e.fx.CreateRegion(ctx, "Andijon")
	regionB := e.fx.CreateRegion(ctx, "Namangan")
	districtB := e.fx.CreateDistrict(ctx, "Chust", regionB.ID)

	cases := map[string]url.Values{
		"missing title":  {"description": {"text"}},
		"wrong district": {"title": {"t"}, "description": {"d"}, "region": {regionA.ID.Hex()}, "district": {districtB.ID.Hex()}},
		"lat only":       {"title": {"t"}, "description": {"d"}, "lat": {"41"}},
		"lat range":      {"title": {"t"}, "description": {"d"}, "lat": {"120"}, "lng": {"69"}},
		"unknown region": {"title": {"t"}, "description": {"d"}, "region": {primitive.NewObjectID().Hex()}},
	}
	for name, form := range cases {
		rec := httptest.NewRecorder()
		call(func() {
			e.h.HandleCreate(rec, testutil.NewAuthenticatedFormRequest("/user/complaint/create/", form, testutil.UserFor(owner)))
		})
		if rec.Code == http.StatusSeeOther {
			t.Errorf("%s: should not redirect", name)
		}
	}
	if n := countComplaints(t, e.db, bson.M{"owner_id": owner.ID}); n != 0 {
		t.Errorf("created %d complaints from invalid input", n)
	}
}

func TestHandleCreate_SavesImagesAndSkipsBadOnes(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "photos")

	req := multipartRequest(t, "/user/complaint/create/",
		map[string]string{"title": "Dump", "description": "Illegal dump"},
		map[string][]byte{"a.png": pngHeader, "notes.txt": []byte("plain text, not an image")})
	req = testutil.WithUser(req, testutil.UserFor(owner))
	rec := httptest.NewRecorder()
	e.h.HandleCreate(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}

	var img models.ComplaintImage
	if err := e.db.Collection("complaint_images").FindOne(ctx, bson.M{}).Decode(&img); err != nil {
		t.Fatalf("find image: %v", err)
	}
	n, err := e.db.Collection("complaint_images").CountDocuments(ctx, bson.M{})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("stored %d images, want 1", n)
	}
	if img.ContentType != "image/png" {
		t.Errorf("content type = %q", img.ContentType)
	}
	if _, err := os.Stat(filepath.Join(e.media, filepath.FromSlash(img.Path))); err != nil {
		t.Errorf("image file missing: %v", err)
	}
}

func TestHandleDelete_NewUnassigned(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "deleter")
	c := e.fx.CreateComplaint(ctx, "Leak", owner.ID)

	req := testutil.NewAuthenticatedFormRequest("/", url.Values{}, testutil.UserFor(owner))
	req = testutil.WithChiURLParam(req, "id", c.ID.Hex())
	rec := httptest.NewRecorder()
	e.h.HandleDelete(rec, req)

	if loc := rec.Header().Get("Location"); loc != "/user/complaints/" {
		t.Errorf("Location = %q, want /user/complaints/", loc)
	}
	if n := countComplaints(t, e.db, bson.M{"_id": c.ID}); n != 0 {
		t.Error("complaint not deleted")
	}
}

func TestHandleDelete_Refusals(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "refused")
	org := e.fx.CreateOrganization(ctx, "Suv ta'minoti", nil)

	assigned := e.fx.CreateComplaint(ctx, "Assigned", owner.ID, testutil.WithOrganization(org.ID))
	started := e.fx.CreateComplaint(ctx, "Started", owner.ID, testutil.WithStatus(models.StatusInProgress))

	tests := []struct {
		c    models.Complaint
		want string
	}{
		{assigned, fmt.Sprintf("/user/complaint/%s/", assigned.ID.Hex())},
		{started, "/user/complaints/"},
	}
	for _, tt := range tests {
		req := testutil.NewAuthenticatedFormRequest("/", url.Values{}, testutil.UserFor(owner))
		req = testutil.WithChiURLParam(req, "id", tt.c.ID.Hex())
		rec := httptest.NewRecorder()
		e.h.HandleDelete(rec, req)

		if loc := rec.Header().Get("Location"); loc != tt.want {
			t.Errorf("%s: Location = %q, want %q", tt.c.Title, loc, tt.want)
		}
		if n := countComplaints(t, e.db, bson.M{"_id": tt.c.ID}); n != 1 {
			t.Errorf("%s: complaint should still exist", tt.c.Title)
		}
	}
}

func TestOtherCitizensComplaintIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "realowner")
	other := e.fx.CreateCitizen(ctx, "snoop")
	c := e.fx.CreateComplaint(ctx, "Private", owner.ID)

	view := testutil.WithChiURLParam(testutil.NewAuthenticatedRequest("GET", "/", testutil.UserFor(other)), "id", c.ID.Hex())
	rec := httptest.NewRecorder()
	call(func() { e.h.ServeView(rec, view) })
	if rec.Code != http.StatusNotFound {
		t.Errorf("view status = %d, want 404", rec.Code)
	}

	del := testutil.WithChiURLParam(testutil.NewAuthenticatedFormRequest("/", url.Values{}, testutil.UserFor(other)), "id", c.ID.Hex())
	rec = httptest.NewRecorder()
	call(func() { e.h.HandleDelete(rec, del) })
	if rec.Code != http.StatusNotFound {
		t.Errorf("delete status = %d, want 404", rec.Code)
	}
	if n := countComplaints(t, e.db, bson.M{"_id": c.ID}); n != 1 {
		t.Error("another citizen deleted the complaint")
	}
}

func TestServeDashboard_CountsAndRates(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "tally")
	other := e.fx.CreateCitizen(ctx, "stranger")

	e.fx.CreateComplaint(ctx, "Smoke", owner.ID, testutil.WithLocation(41.3, 69.2), testutil.WithPriority(models.PriorityHigh))
	e.fx.CreateComplaint(ctx, "Litter", owner.ID, testutil.WithLocation(39.6, 66.9), testutil.WithPriority(models.PriorityHigh),
		testutil.WithStatus(models.StatusClosed), testutil.WithAnswer("cleaned"))
	e.fx.CreateComplaint(ctx, "Noise", owner.ID, testutil.WithStatus(models.StatusInProgress))
	e.fx.CreateComplaint(ctx, "Not mine", other.ID, testutil.WithPriority(models.PriorityLow))

	rec := testutil.NewRecorder()
	e.h.ServeDashboard(rec, testutil.NewAuthenticatedRequest("GET", "/user/dashboard/", testutil.UserFor(owner)))

	rec.AssertStatus(t, http.StatusOK)
	for _, want := range []string{
		`<span class="num">3</span> total`,
		`<span class="num">2</span> open`,
		`<span class="num">1</span> resolved`,
		`<span class="num">0</span> rejected`,
		`<span class="num">33.3%</span> success rate`,
		`<span class="num">2</span> high priority`,
		`<span class="num">1</span> medium priority`,
		`<span class="num">0</span> low priority`,
		"Noise",
	} {
		rec.AssertContains(t, want)
	}
	rec.AssertNotContains(t, "Not mine")
}

func TestServeDashboard_Renders(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "dash")
	e.fx.CreateComplaint(ctx, "One", owner.ID)
	e.fx.CreateComplaint(ctx, "Two", owner.ID, testutil.WithStatus(models.StatusClosed), testutil.WithAnswer("done"))

	for _, serve := range []http.HandlerFunc{e.h.ServeDashboard, e.h.ServeList, e.h.ServeProfile} {
		rec := httptest.NewRecorder()
		call(func() { serve(rec, testutil.NewAuthenticatedRequest("GET", "/", testutil.UserFor(owner))) })
		if rec.Code >= 500 {
			t.Errorf("status = %d", rec.Code)
		}
	}
}
