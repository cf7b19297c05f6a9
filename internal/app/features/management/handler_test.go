package management_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	"github.com/dalemusser/ekomurojaat/internal/app/features/management"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/imagestore"
	"github.com/dalemusser/ekomurojaat/internal/app/system/indexes"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/ekomurojaat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type env struct {
	h     *management.Handler
	db    *mongo.Database
	fx    *testutil.Fixtures
	admin models.Account
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
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	accountstore.BcryptCost = bcrypt.MinCost

	dir := t.TempDir()
	fx := testutil.NewFixtures(t, db)
	media, err := imagestore.NewLocal(dir, "/media", 1<<20)
	if err != nil {
		t.Fatalf("imagestore.NewLocal failed: %v", err)
	}
	h := management.NewHandler(db, sm, uierrors.NewErrorLogger(logger), media, nil, logger)
	return env{h: h, db: db, fx: fx, admin: fx.CreateAdmin(ctx, "boss"), media: dir}
}

func call(fn func()) {
	defer func() {
		// Template rendering may panic in tests - that's expected
		_ = recover()
	}()
	fn()
}

func (e env) post(target string, form url.Values, params ...string) *http.Request {
	req := testutil.NewAuthenticatedFormRequest(target, form, testutil.UserFor(e.admin))
	for i := 0; i+1 < len(params); i += 2 {
		req = testutil.WithChiURLParam(req, params[i], params[i+1])
	}
	return req
}

func (e env) get(target string, params ...string) *http.Request {
	req := testutil.NewAuthenticatedRequest("GET", target, testutil.UserFor(e.admin))
	for i := 0; i+1 < len(params); i += 2 {
		req = testutil.WithChiURLParam(req, params[i], params[i+1])
	}
	return req
}

func loadComplaint(t *testing.T, db *mongo.Database, id primitive.ObjectID) models.Complaint {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	var c models.Complaint
	if err := db.Collection("complaints").FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		t.Fatalf("load complaint: %v", err)
	}
	return c
}

func count(t *testing.T, db *mongo.Database, coll string, filter bson.M) int64 {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	n, err := db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		t.Fatalf("count %s: %v", coll, err)
	}
	return n
}

func TestHandleComplaintUpdate_AssignsAndCloses(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "citizen")
	org := e.fx.CreateOrganization(ctx, "Obodonlashtirish", nil)
	c := e.fx.CreateComplaint(ctx, "Broken lamp", owner.ID)

	form := url.Values{
		"status":       {"closed"},
		"priority":     {"high"},
		"organization": {org.ID.Hex()},
		"answer_text":  {"Lamp <i>replaced</i>."},
	}
	rec := httptest.NewRecorder()
	e.h.HandleComplaintUpdate(rec, e.post("/", form, "id", c.ID.Hex()))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if want := fmt.Sprintf("/dashboard/management/complaint/%s/", c.ID.Hex()); rec.Header().Get("Location") != want {
		t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), want)
	}
	got := loadComplaint(t, e.db, c.ID)
	if got.Status != models.StatusClosed || got.Priority != models.PriorityHigh {
		t.Errorf("status/priority = %s/%s, want closed/high", got.Status, got.Priority)
	}
	if got.AssignedOrganizationID == nil || *got.AssignedOrganizationID != org.ID {
		t.Error("organization not assigned")
	}
	if got.ClosedAt == nil {
		t.Error("closed_at not set")
	}
	if got.AnswerText != "Lamp replaced." {
		t.Errorf("answer = %q", got.AnswerText)
	}
}

func TestHandleComplaintUpdate_Rejected(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "citizen")
	fresh := e.fx.CreateComplaint(ctx, "Fresh", owner.ID)
	closed := e.fx.CreateComplaint(ctx, "Done", owner.ID, testutil.WithStatus(models.StatusClosed), testutil.WithAnswer("ok"))

	tests := []struct {
		name string
		c    models.Complaint
		form url.Values
	}{
		{"close without answer", fresh, url.Values{"status": {"closed"}, "priority": {"medium"}}},
		{"reopen closed", closed, url.Values{"status": {"new"}, "priority": {"medium"}, "answer_text": {"ok"}}},
		{"unknown priority", fresh, url.Values{"status": {"in_progress"}, "priority": {"urgent"}}},
		{"unknown organization", fresh, url.Values{"status": {"in_progress"}, "priority": {"low"}, "organization": {primitive.NewObjectID().Hex()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			call(func() { e.h.HandleComplaintUpdate(rec, e.post("/", tt.form, "id", tt.c.ID.Hex())) })
			if rec.Code == http.StatusSeeOther {
				t.Fatal("update should have been rejected")
			}
			got := loadComplaint(t, e.db, tt.c.ID)
			if got.Status != tt.c.Status || got.Priority != tt.c.Priority || got.AssignedOrganizationID != nil {
				t.Errorf("complaint changed: %+v", got)
			}
		})
	}
}

func TestServeComplaint_StampsViewedOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "citizen")
	c := e.fx.CreateComplaint(ctx, "Noise", owner.ID)

	rec := httptest.NewRecorder()
	call(func() { e.h.ServeComplaint(rec, e.get("/", "id", c.ID.Hex())) })
	first := loadComplaint(t, e.db, c.ID).ViewedAt
	if first == nil {
		t.Fatal("viewed_at not set")
	}

	rec = httptest.NewRecorder()
	call(func() { e.h.ServeComplaint(rec, e.get("/", "id", c.ID.Hex())) })
	if second := loadComplaint(t, e.db, c.ID).ViewedAt; second == nil || !second.Equal(*first) {
		t.Errorf("viewed_at moved: %v -> %v", first, second)
	}
}

func TestServeComplaint_UnknownIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	for _, id := range []string{"nope", primitive.NewObjectID().Hex()} {
		rec := httptest.NewRecorder()
		call(func() { e.h.ServeComplaint(rec, e.get("/", "id", id)) })
		if rec.Code != http.StatusNotFound {
			t.Errorf("id %q: status = %d, want 404", id, rec.Code)
		}
	}
}

func TestHandlePriority_AssignsAndKeepsFilter(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "citizen")
	c := e.fx.CreateComplaint(ctx, "Dust", owner.ID, testutil.WithPriority(""))

	back := "/dashboard/management/priority/?priority=unset&page=2"
	form := url.Values{"complaint_id": {c.ID.Hex()}, "priority": {"high"}, "return": {back}}
	rec := httptest.NewRecorder()
	e.h.HandlePriority(rec, e.post("/dashboard/management/priority/", form))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusSeeOther)
	}
	if loc := rec.Header().Get("Location"); loc != back {
		t.Errorf("Location = %q, want %q", loc, back)
	}
	if got := loadComplaint(t, e.db, c.ID); got.Priority != models.PriorityHigh || got.Status != models.StatusNew {
		t.Errorf("priority/status = %s/%s, want high/new", got.Priority, got.Status)
	}
}

func TestHandlePriority_BadInput(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "citizen")
	c := e.fx.CreateComplaint(ctx, "Dust", owner.ID)

	tests := []url.Values{
		{"complaint_id": {c.ID.Hex()}, "priority": {"urgent"}},
		{"complaint_id": {"bad"}, "priority": {"low"}},
		{"complaint_id": {primitive.NewObjectID().Hex()}, "priority": {"low"}},
		{"complaint_id": {c.ID.Hex()}, "priority": {"low"}, "return": {"https://evil.example/"}},
	}
	for i, form := range tests {
		rec := httptest.NewRecorder()
		e.h.HandlePriority(rec, e.post("/dashboard/management/priority/", form))
		if loc := rec.Header().Get("Location"); loc != "/dashboard/management/priority/" {
			t.Errorf("case %d: Location = %q", i, loc)
		}
	}
	// Only the last case carries a valid assignment.
	if got := loadComplaint(t, e.db, c.ID); got.Priority != models.PriorityLow {
		t.Errorf("priority = %s, want low", got.Priority)
	}
}

func TestOrganizationCreateUpdateDuplicate(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	region := e.fx.CreateRegion(ctx, "Samarqand")
	district := e.fx.CreateDistrict(ctx, "Urgut", region.ID)

	form := url.Values{
		"name":     {"  Suv   ta'minoti "},
		"phone":    {"+998 66 123-45-67"},
		"email":    {"Info@Suv.uz"},
		"district": {district.ID.Hex()},
	}
	rec := httptest.NewRecorder()
	e.h.HandleOrganizationCreate(rec, e.post("/", form))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create status = %d", rec.Code)
	}
	var org models.Organization
	if err := e.db.Collection("organizations").FindOne(ctx, bson.M{}).Decode(&org); err != nil {
		t.Fatalf("find organization: %v", err)
	}
	if org.Name != "Suv ta'minoti" || org.Email != "info@suv.uz" || org.Phone != "+998661234567" {
		t.Errorf("organization not normalized: %+v", org)
	}
	if org.DistrictID == nil || *org.DistrictID != district.ID {
		t.Error("district not linked")
	}

	dup := url.Values{"name": {"SUV TA'MINOTI"}}
	rec = httptest.NewRecorder()
	call(func() { e.h.HandleOrganizationCreate(rec, e.post("/", dup)) })
	if n := count(t, e.db, "organizations", bson.M{}); n != 1 {
		t.Errorf("organizations = %d, want 1", n)
	}

	upd := url.Values{"name": {"Suv ta'minoti MChJ"}}
	rec = httptest.NewRecorder()
	e.h.HandleOrganizationUpdate(rec, e.post("/", upd, "id", org.ID.Hex()))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("update status = %d", rec.Code)
	}
	var updated models.Organization
	if err := e.db.Collection("organizations").FindOne(ctx, bson.M{"_id": org.ID}).Decode(&updated); err != nil {
		t.Fatalf("find organization: %v", err)
	}
	if updated.Name != "Suv ta'minoti MChJ" || updated.DistrictID != nil {
		t.Errorf("update not applied: %+v", updated)
	}
}

func TestHandleOrganizationCreate_Invalid(t *testing.T) {
	e := newTestEnv(t)
	for _, form := range []url.Values{
		{"name": {""}},
		{"name": {"Org"}, "email": {"not-an-email"}},
		{"name": {"Org"}, "district": {primitive.NewObjectID().Hex()}},
	} {
		rec := httptest.NewRecorder()
		call(func() { e.h.HandleOrganizationCreate(rec, e.post("/", form)) })
		if rec.Code == http.StatusSeeOther {
			t.Errorf("%v: should be rejected", form)
		}
	}
	if n := count(t, e.db, "organizations", bson.M{}); n != 0 {
		t.Errorf("organizations = %d, want 0", n)
	}
}

func TestHandleOrganizationDelete_DetachesModeratorsAndComplaints(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	org := e.fx.CreateOrganization(ctx, "Ekologiya", nil)
	mod := e.fx.CreateModerator(ctx, "mod", org.ID)
	owner := e.fx.CreateCitizen(ctx, "citizen")
	c := e.fx.CreateComplaint(ctx, "Smoke", owner.ID, testutil.WithOrganization(org.ID))

	rec := httptest.NewRecorder()
	e.h.HandleOrganizationDelete(rec, e.post("/", url.Values{}, "id", org.ID.Hex()))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	if n := count(t, e.db, "organizations", bson.M{"_id": org.ID}); n != 0 {
		t.Error("organization not deleted")
	}
	if n := count(t, e.db, "accounts", bson.M{"_id": mod.ID, "organization_id": bson.M{"$exists": true}}); n != 0 {
		t.Error("moderator still linked")
	}
	if got := loadComplaint(t, e.db, c.ID); got.AssignedOrganizationID != nil {
		t.Error("complaint still assigned")
	}
}

func TestHandleUserCreate(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	org := e.fx.CreateOrganization(ctx, "Ekologiya", nil)

	base := func(extra url.Values) url.Values {
		v := url.Values{
			"username": {"newmod"},
			"email":    {"mod@test.com"},
			"password": {"long-enough-pw"},
			"confirm":  {"long-enough-pw"},
			"role":     {"moderator"},
		}
		for k, vals := range extra {
			v[k] = vals
		}
		return v
	}

	rejected := []url.Values{
		base(nil), // moderator without organization
		base(url.Values{"organization": {primitive.NewObjectID().Hex()}}),
		base(url.Values{"organization": {org.ID.Hex()}, "confirm": {"different"}}),
		base(url.Values{"organization": {org.ID.Hex()}, "role": {"superuser"}}),
		base(url.Values{"organization": {org.ID.Hex()}, "username": {"boss"}}),
	}
	for i, form := range rejected {
		rec := httptest.NewRecorder()
		call(func() { e.h.HandleUserCreate(rec, e.post("/", form)) })
		if rec.Code == http.StatusSeeOther {
			t.Errorf("case %d: should be rejected", i)
		}
	}
	if n := count(t, e.db, "accounts", bson.M{"username_ci": "newmod"}); n != 0 {
		t.Fatalf("rejected forms created %d accounts", n)
	}

	rec := httptest.NewRecorder()
	e.h.HandleUserCreate(rec, e.post("/", base(url.Values{"organization": {org.ID.Hex()}})))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	a, err := accountstore.New(e.db).Authenticate(ctx, "newmod", "long-enough-pw")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !a.IsActive || a.Role != models.RoleModerator || a.OrganizationID == nil || *a.OrganizationID != org.ID {
		t.Errorf("account = %+v", a)
	}
}

func TestHandleUserUpdate(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	org := e.fx.CreateOrganization(ctx, "Ekologiya", nil)
	mod := e.fx.CreateModerator(ctx, "mod", org.ID)

	// Demoting a moderator drops the organization; an empty password keeps the old one.
	form := url.Values{"username": {"mod"}, "role": {"citizen"}, "organization": {org.ID.Hex()}, "is_active": {"1"}}
	rec := httptest.NewRecorder()
	e.h.HandleUserUpdate(rec, e.post("/", form, "id", mod.ID.Hex()))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}
	a, err := accountstore.New(e.db).Authenticate(ctx, "mod", testutil.TestPassword)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if a.Role != models.RoleCitizen || a.OrganizationID != nil {
		t.Errorf("account = %+v", a)
	}
}

func TestHandleUserUpdate_CannotDemoteSelf(t *testing.T) {
	e := newTestEnv(t)
	form := url.Values{"username": {"boss"}, "role": {"citizen"}, "is_active": {"1"}}
	rec := httptest.NewRecorder()
	call(func() { e.h.HandleUserUpdate(rec, e.post("/", form, "id", e.admin.ID.Hex())) })
	if rec.Code == http.StatusSeeOther {
		t.Fatal("self-demotion should be rejected")
	}
	if n := count(t, e.db, "accounts", bson.M{"_id": e.admin.ID, "role": models.RoleAdmin}); n != 1 {
		t.Error("admin role changed")
	}
}

func TestHandleUserDelete(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner := e.fx.CreateCitizen(ctx, "leaving")
	c := e.fx.CreateComplaint(ctx, "Old", owner.ID)

	rel := "2026/10/photo.png"
	full := filepath.Join(e.media, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
	e.fx.CreateComplaintImage(ctx, c.ID, rel)

	rec := httptest.NewRecorder()
	e.h.HandleUserDelete(rec, e.post("/", url.Values{}, "id", owner.ID.Hex()))
	if loc := rec.Header().Get("Location"); loc != "/dashboard/management/users/" {
		t.Errorf("Location = %q", loc)
	}
	if n := count(t, e.db, "accounts", bson.M{"_id": owner.ID}); n != 0 {
		t.Error("account not deleted")
	}
	if n := count(t, e.db, "complaints", bson.M{"owner_id": owner.ID}); n != 0 {
		t.Error("complaints not deleted")
	}
	if n := count(t, e.db, "complaint_images", bson.M{"complaint_id": c.ID}); n != 0 {
		t.Error("image records not deleted")
	}
	if _, err := os.Stat(full); !os.IsNotExist(err) {
		t.Errorf("image file still present: %v", err)
	}
}

func TestHandleUserDelete_Self(t *testing.T) {
	e := newTestEnv(t)
	rec := httptest.NewRecorder()
	e.h.HandleUserDelete(rec, e.post("/", url.Values{}, "id", e.admin.ID.Hex()))
	if loc := rec.Header().Get("Location"); loc != "/dashboard/management/users/" {
		t.Errorf("Location = %q", loc)
	}
	if n := count(t, e.db, "accounts", bson.M{"_id": e.admin.ID}); n != 1 {
		t.Error("admin deleted their own account")
	}
}

func TestRegionAndDistrictLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	rec := httptest.NewRecorder()
	e.h.HandleRegionCreate(rec, e.post("/", url.Values{"name": {"Navoiy"}}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create region status = %d", rec.Code)
	}
	var region models.Region
	if err := e.db.Collection("regions").FindOne(ctx, bson.M{"name": "Navoiy"}).Decode(&region); err != nil {
		t.Fatalf("find region: %v", err)
	}

	rec = httptest.NewRecorder()
	call(func() { e.h.HandleRegionCreate(rec, e.post("/", url.Values{"name": {"navoiy"}})) })
	if n := count(t, e.db, "regions", bson.M{}); n != 1 {
		t.Errorf("regions = %d, want 1", n)
	}

	rec = httptest.NewRecorder()
	e.h.HandleDistrictCreate(rec, e.post("/", url.Values{"district_name": {"Karmana"}}, "id", region.ID.Hex()))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create district status = %d", rec.Code)
	}
	var district models.District
	if err := e.db.Collection("districts").FindOne(ctx, bson.M{"region_id": region.ID}).Decode(&district); err != nil {
		t.Fatalf("find district: %v", err)
	}

	rec = httptest.NewRecorder()
	e.h.HandleDistrictRename(rec, e.post("/", url.Values{"name": {"Karmana tumani"}}, "id", region.ID.Hex(), "did", district.ID.Hex()))
	if n := count(t, e.db, "districts", bson.M{"name": "Karmana tumani"}); n != 1 {
		t.Error("district not renamed")
	}

	owner := e.fx.CreateCitizen(ctx, "citizen")
	org := e.fx.CreateOrganization(ctx, "Karmana suv", &district.ID)
	c := e.fx.CreateComplaint(ctx, "Leak", owner.ID, testutil.WithGeo(region.ID, district.ID))

	rec = httptest.NewRecorder()
	e.h.HandleRegionDelete(rec, e.post("/", url.Values{}, "id", region.ID.Hex()))
	if loc := rec.Header().Get("Location"); loc != "/dashboard/management/regions/" {
		t.Errorf("Location = %q", loc)
	}
	if n := count(t, e.db, "districts", bson.M{}); n != 0 {
		t.Error("districts not deleted with region")
	}
	got := loadComplaint(t, e.db, c.ID)
	if got.RegionID != nil || got.DistrictID != nil {
		t.Error("complaint still references deleted geography")
	}
	if n := count(t, e.db, "organizations", bson.M{"_id": org.ID, "district_id": bson.M{"$exists": true}}); n != 0 {
		t.Error("organization still linked to deleted district")
	}
}

func TestDistrictOfAnotherRegionIsNotFound(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	a := e.fx.CreateRegion(ctx, "A")
	b := e.fx.CreateRegion(ctx, "B")
	d := e.fx.CreateDistrict(ctx, "In B", b.ID)

	rec := httptest.NewRecorder()
	call(func() { e.h.HandleDistrictDelete(rec, e.post("/", url.Values{}, "id", a.ID.Hex(), "did", d.ID.Hex())) })
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if n := count(t, e.db, "districts", bson.M{"_id": d.ID}); n != 1 {
		t.Error("district deleted through the wrong region")
	}
}

func TestPagesRender(t *testing.T) {
	e := newTestEnv(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	region := e.fx.CreateRegion(ctx, "Buxoro")
	district := e.fx.CreateDistrict(ctx, "Kogon", region.ID)
	org := e.fx.CreateOrganization(ctx, "Buxoro suv", &district.ID)
	owner := e.fx.CreateCitizen(ctx, "citizen")
	c := e.fx.CreateComplaint(ctx, "Flood", owner.ID, testutil.WithGeo(region.ID, district.ID), testutil.WithOrganization(org.ID))

	pages := []struct {
		name  string
		serve http.HandlerFunc
		req   *http.Request
	}{
		{"dashboard", e.h.ServeDashboard, e.get("/")},
		{"complaints", e.h.ServeComplaints, e.get("/?status=new&priority=unset&region=" + region.ID.Hex())},
		{"complaint update", e.h.ServeComplaintUpdate, e.get("/", "id", c.ID.Hex())},
		{"priority", e.h.ServePriority, e.get("/?priority=medium")},
		{"organizations", e.h.ServeOrganizations, e.get("/")},
		{"organization form", e.h.ServeOrganizationCreate, e.get("/")},
		{"organization edit", e.h.ServeOrganizationUpdate, e.get("/", "id", org.ID.Hex())},
		{"organization delete", e.h.ServeOrganizationDelete, e.get("/", "id", org.ID.Hex())},
		{"users", e.h.ServeUsers, e.get("/?q=cit&role=citizen")},
		{"user form", e.h.ServeUserCreate, e.get("/")},
		{"user edit", e.h.ServeUserUpdate, e.get("/", "id", owner.ID.Hex())},
		{"user delete", e.h.ServeUserDelete, e.get("/", "id", owner.ID.Hex())},
		{"regions", e.h.ServeRegions, e.get("/")},
		{"region", e.h.ServeRegion, e.get("/", "id", region.ID.Hex())},
	}
	for _, p := range pages {
		rec := httptest.NewRecorder()
		call(func() { p.serve(rec, p.req) })
		if rec.Code >= 400 {
			t.Errorf("%s: status = %d", p.name, rec.Code)
		}
	}
}
