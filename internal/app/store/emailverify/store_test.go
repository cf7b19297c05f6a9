package emailverify_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/store/emailverify"
	"github.com/dalemusser/ekomurojaat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNew_DefaultExpiry(t *testing.T) {
	db := testutil.SetupTestDB(t)

	if s := emailverify.New(db, 0); s.Expiry() != emailverify.DefaultExpiry {
		t.Errorf("expected default expiry %v, got %v", emailverify.DefaultExpiry, s.Expiry())
	}
	if s := emailverify.New(db, -time.Minute); s.Expiry() != emailverify.DefaultExpiry {
		t.Errorf("negative expiry: got %v", s.Expiry())
	}
	if s := emailverify.New(db, 30*time.Minute); s.Expiry() != 30*time.Minute {
		t.Errorf("custom expiry: got %v", s.Expiry())
	}
}

func TestStore_Create_CodeFormat(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailverify.New(db, emailverify.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	result, err := store.Create(ctx, primitive.NewObjectID(), "test@example.com", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if len(result.Code) != emailverify.CodeLength {
		t.Fatalf("expected code length %d, got %q", emailverify.CodeLength, result.Code)
	}
	for _, c := range result.Code {
		if c < '0' || c > '9' {
			t.Fatalf("expected numeric code, got %q", result.Code)
		}
	}
	if result.Code[0] == '0' {
		t.Errorf("expected code in 100000..999999, got %q", result.Code)
	}
}

func TestStore_Create_StoresOnlyHash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailverify.New(db, emailverify.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	result, err := store.Create(ctx, accountID, "test@example.com", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var raw bson.M
	if err := db.Collection("email_verifications").FindOne(ctx, bson.M{"account_id": accountID}).Decode(&raw); err != nil {
		t.Fatalf("find: %v", err)
	}
	if raw["code_hash"] == result.Code {
		t.Error("code stored in plain text")
	}
	if _, ok := raw["code"]; ok {
		t.Error("unexpected plain code field")
	}
}

func TestStore_VerifyCode_SingleUse(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailverify.New(db, emailverify.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	result, err := store.Create(ctx, accountID, "test@example.com", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	v, err := store.VerifyCode(ctx, accountID, result.Code)
	if err != nil {
		t.Fatalf("VerifyCode failed: %v", err)
	}
	if v.AccountID != accountID || v.Email != "test@example.com" {
		t.Errorf("unexpected verification %+v", v)
	}

	if _, err := store.VerifyCode(ctx, accountID, result.Code); !errors.Is(err, emailverify.ErrNotFound) {
		t.Errorf("second use: expected ErrNotFound, got %v", err)
	}
}

func TestStore_VerifyCode_WrongCode(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailverify.New(db, emailverify.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	result, err := store.Create(ctx, accountID, "test@example.com", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	wrong := "000000"
	if result.Code == wrong {
		wrong = "000001"
	}
	if _, err := store.VerifyCode(ctx, accountID, wrong); !errors.Is(err, emailverify.ErrInvalidCode) {
		t.Errorf("expected ErrInvalidCode, got %v", err)
	}
	// The right code still works afterwards.
	if _, err := store.VerifyCode(ctx, accountID, result.Code); err != nil {
		t.Errorf("expected success after one wrong attempt, got %v", err)
	}
}

func TestStore_VerifyCode_TooManyAttempts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailverify.New(db, emailverify.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	result, err := store.Create(ctx, accountID, "test@example.com", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	wrong := "000000"
	for i := 0; i < emailverify.MaxVerifyAttempts; i++ {
		if _, err := store.VerifyCode(ctx, accountID, wrong); !errors.Is(err, emailverify.ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i+1, err)
		}
	}
	if _, err := store.VerifyCode(ctx, accountID, result.Code); !errors.Is(err, emailverify.ErrTooManyAttempts) {
		t.Errorf("expected ErrTooManyAttempts, got %v", err)
	}
}

func TestStore_VerifyCode_Expired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailverify.New(db, time.Minute)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC()
	store.SetClock(func() time.Time { return base })

	accountID := primitive.NewObjectID()
	result, err := store.Create(ctx, accountID, "test@example.com", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	store.SetClock(func() time.Time { return base.Add(2 * time.Minute) })
	if _, err := store.VerifyCode(ctx, accountID, result.Code); !errors.Is(err, emailverify.ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired code, got %v", err)
	}
}

func TestStore_Create_ResendLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailverify.New(db, emailverify.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC()
	store.SetClock(func() time.Time { return base })

	accountID := primitive.NewObjectID()
	_, err := store.Create(ctx, accountID, "test@example.com", false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 1; i <= emailverify.MaxResends; i++ {
		res, err := store.Create(ctx, accountID, "test@example.com", true)
		if err != nil {
			t.Fatalf("resend %d: %v", i, err)
		}
		if res.ResendCount != i {
			t.Errorf("resend %d: count = %d", i, res.ResendCount)
		}
	}
	if _, err := store.Create(ctx, accountID, "test@example.com", true); !errors.Is(err, emailverify.ErrTooManyResends) {
		t.Errorf("expected ErrTooManyResends, got %v", err)
	}

	// A new window resets the limit.
	store.SetClock(func() time.Time { return base.Add(emailverify.ResendWindow + time.Second) })
	res, err := store.Create(ctx, accountID, "test@example.com", true)
	if err != nil {
		t.Fatalf("resend after window: %v", err)
	}
	if res.ResendCount != 0 {
		t.Errorf("expected count reset, got %d", res.ResendCount)
	}
}

func TestStore_DeleteByAccount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := emailverify.New(db, emailverify.DefaultExpiry)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	accountID := primitive.NewObjectID()
	if _, err := store.Create(ctx, accountID, "test@example.com", false); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.DeleteByAccount(ctx, accountID); err != nil {
		t.Fatalf("DeleteByAccount: %v", err)
	}
	if _, err := store.Pending(ctx, accountID); !errors.Is(err, emailverify.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
