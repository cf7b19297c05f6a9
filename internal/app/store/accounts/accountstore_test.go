package accountstore_test

import (
	"errors"
	"testing"
	"time"

	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/indexes"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/ekomurojaat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	accountstore.BcryptCost = bcrypt.MinCost
}

func TestStore_Create(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a, err := store.Create(ctx, models.Account{
		Username:  "  Ali ",
		Email:     "Ali@Example.COM",
		FirstName: "Ali",
		LastName:  "Valiyev",
		Phone:     "+998 (90) 123-45-67",
	}, "secret-pass")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if a.Username != "Ali" || a.UsernameCI != "ali" {
		t.Errorf("username not normalized: %q / %q", a.Username, a.UsernameCI)
	}
	if a.Email != "ali@example.com" {
		t.Errorf("email = %q", a.Email)
	}
	if a.Phone != "+998901234567" {
		t.Errorf("phone = %q", a.Phone)
	}
	if a.Role != models.RoleCitizen {
		t.Errorf("role = %q, want citizen", a.Role)
	}
	if a.IsActive {
		t.Error("new account should be inactive unless requested")
	}
	if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("secret-pass")) != nil {
		t.Error("password hash does not match")
	}
}

func TestStore_Create_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := store.Create(ctx, models.Account{Username: "x", Role: "superuser"}, "pw"); err == nil {
		t.Error("expected error for unknown role")
	}
	if _, err := store.Create(ctx, models.Account{Username: "m", Role: models.RoleModerator}, "pw"); err == nil {
		t.Error("expected error for moderator without organization")
	}

	org := primitive.NewObjectID()
	a, err := store.Create(ctx, models.Account{Username: "c", Role: models.RoleCitizen, OrganizationID: &org}, "pw")
	if err != nil {
		t.Fatal(err)
	}
	if a.OrganizationID != nil {
		t.Error("citizen should not keep an organization")
	}
}

func TestStore_Create_DuplicateUsername(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	store := accountstore.New(db)

	if _, err := store.Create(ctx, models.Account{Username: "Dilnoza"}, "pw"); err != nil {
		t.Fatal(err)
	}
	_, err := store.Create(ctx, models.Account{Username: "dilnoza"}, "pw")
	if !errors.Is(err, accountstore.ErrDuplicateUsername) {
		t.Errorf("expected ErrDuplicateUsername, got %v", err)
	}
}

func TestStore_Authenticate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	active := fx.CreateCitizen(ctx, "bobur")
	fx.CreateInactiveCitizen(ctx, "pending")

	a, err := store.Authenticate(ctx, "BOBUR", testutil.TestPassword)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if a.ID != active.ID {
		t.Errorf("got account %s, want %s", a.ID.Hex(), active.ID.Hex())
	}

	if _, err := store.Authenticate(ctx, "bobur", "wrong"); !errors.Is(err, accountstore.ErrBadCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := store.Authenticate(ctx, "nobody", testutil.TestPassword); !errors.Is(err, accountstore.ErrBadCredentials) {
		t.Errorf("unknown user: got %v", err)
	}
	if _, err := store.Authenticate(ctx, "pending", testutil.TestPassword); !errors.Is(err, accountstore.ErrInactive) {
		t.Errorf("inactive user: got %v", err)
	}
}

func TestStore_Activate_OnlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := fx.CreateInactiveCitizen(ctx, "new")

	if err := store.Activate(ctx, a.ID); err != nil {
		t.Fatalf("first Activate: %v", err)
	}
	if err := store.Activate(ctx, a.ID); !errors.Is(err, accountstore.ErrAlreadyActive) {
		t.Errorf("second Activate: got %v, want ErrAlreadyActive", err)
	}
	if err := store.Activate(ctx, primitive.NewObjectID()); err != mongo.ErrNoDocuments {
		t.Errorf("missing account: got %v", err)
	}

	got, _ := store.GetByID(ctx, a.ID)
	if !got.IsActive {
		t.Error("account should be active")
	}
}

func TestStore_Update_RoleChangeDropsOrganization(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Suv ta'minoti", nil)
	mod := fx.CreateModerator(ctx, "moder", org.ID)

	err := store.Update(ctx, mod.ID, accountstore.Update{
		Username: "moder",
		Email:    "moder@test.com",
		Role:     models.RoleCitizen,
		IsActive: true,
		Password: "brand-new-pass",
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := store.GetByID(ctx, mod.ID)
	if got.Role != models.RoleCitizen || got.OrganizationID != nil {
		t.Errorf("unexpected account after update: role=%s org=%v", got.Role, got.OrganizationID)
	}
	if _, err := store.Authenticate(ctx, "moder", "brand-new-pass"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	err = store.Update(ctx, mod.ID, accountstore.Update{Username: "moder", Role: models.RoleModerator, IsActive: true})
	if err == nil {
		t.Error("expected error for moderator without organization")
	}
}

func TestStore_Delete_Cascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := fx.CreateCitizen(ctx, "owner")
	other := fx.CreateCitizen(ctx, "other")
	c1 := fx.CreateComplaint(ctx, "Trash", owner.ID)
	fx.CreateComplaint(ctx, "Smoke", owner.ID, testutil.WithStatus(models.StatusClosed))
	keep := fx.CreateComplaint(ctx, "Noise", other.ID)
	fx.CreateComplaintImage(ctx, c1.ID, "complaint_images/2026/01/a.png")
	fx.CreateComplaintImage(ctx, keep.ID, "complaint_images/2026/01/b.png")
	if _, err := db.Collection("email_verifications").InsertOne(ctx, bson.M{
		"_id": primitive.NewObjectID(), "account_id": owner.ID, "expires_at": time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	res, err := store.Delete(ctx, owner.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if res.Accounts != 1 || res.Complaints != 2 {
		t.Errorf("Delete result = %+v", res)
	}
	if len(res.ImagePaths) != 1 || res.ImagePaths[0] != "complaint_images/2026/01/a.png" {
		t.Errorf("ImagePaths = %v", res.ImagePaths)
	}

	if n, _ := db.Collection("complaints").CountDocuments(ctx, bson.M{}); n != 1 {
		t.Errorf("complaints left = %d, want 1", n)
	}
	if n, _ := db.Collection("complaint_images").CountDocuments(ctx, bson.M{}); n != 1 {
		t.Errorf("images left = %d, want 1", n)
	}
	if n, _ := db.Collection("email_verifications").CountDocuments(ctx, bson.M{}); n != 0 {
		t.Errorf("verifications left = %d, want 0", n)
	}
}

func TestStore_CountByRole(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	store := accountstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Org", nil)
	fx.CreateCitizen(ctx, "c1")
	fx.CreateCitizen(ctx, "c2")
	fx.CreateAdmin(ctx, "a1")
	fx.CreateModerator(ctx, "m1", org.ID)

	counts, err := store.CountByRole(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[models.RoleCitizen] != 2 || counts[models.RoleAdmin] != 1 || counts[models.RoleModerator] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestFetcher_FetchUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	org := fx.CreateOrganization(ctx, "Ekologiya", nil)
	mod := fx.CreateModerator(ctx, "moder", org.ID)
	inactive := fx.CreateInactiveCitizen(ctx, "sleepy")

	f := accountstore.NewFetcher(db)

	su := f.FetchUser(ctx, mod.ID.Hex())
	if su == nil {
		t.Fatal("expected session user for moderator")
	}
	if su.Role != models.RoleModerator || su.OrganizationID != org.ID.Hex() || su.OrganizationName != "Ekologiya" {
		t.Errorf("unexpected session user %+v", su)
	}
	if su.LoginID != "moder" {
		t.Errorf("LoginID = %q", su.LoginID)
	}

	if f.FetchUser(ctx, inactive.ID.Hex()) != nil {
		t.Error("inactive account must not load")
	}
	if f.FetchUser(ctx, "not-an-id") != nil {
		t.Error("bad id must not load")
	}
	if f.FetchUser(ctx, primitive.NewObjectID().Hex()) != nil {
		t.Error("missing account must not load")
	}
}
