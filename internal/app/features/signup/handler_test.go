package signup_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	"github.com/dalemusser/ekomurojaat/internal/app/features/signup"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/indexes"
	"github.com/dalemusser/ekomurojaat/internal/app/system/mailer"
	"github.com/dalemusser/ekomurojaat/internal/app/system/ratelimit"
	"github.com/dalemusser/ekomurojaat/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	accountstore.BcryptCost = bcrypt.MinCost
}

const sessionName = "test-session"

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, e mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return m.err
}

var codeRe = regexp.MustCompile(`verification code is: (\d{6})`)

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no email sent")
	}
	match := codeRe.FindStringSubmatch(m.sent[len(m.sent)-1].TextBody)
	if match == nil {
		t.Fatalf("no code in email body: %q", m.sent[len(m.sent)-1].TextBody)
	}
	return match[1]
}

func unlimited() ratelimit.AuthLimits {
	return ratelimit.AuthLimits{Signup: ratelimit.Unlimited{}, Login: ratelimit.Unlimited{}, CheckCode: ratelimit.Unlimited{}}
}

func newTestHandler(t *testing.T, mail *fakeMailer, limits ratelimit.AuthLimits) (*signup.Handler, *mongo.Database) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.BootTemplates(t)
	logger := zap.NewNop()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only-32b", sessionName, "", 24*time.Hour, false, logger)
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	h := signup.NewHandler(db, sm, uierrors.NewErrorLogger(logger), mail, nil, limits, "https://eko.example", 10*time.Minute, logger)
	return h, db
}

func signupForm(username string) url.Values {
	return url.Values{
		"first_name": {"Aziz"},
		"last_name":  {"Karimov"},
		"phone":      {"+998 90 123 45 67"},
		"email":      {username + "@example.com"},
		"username":   {username},
		"password":   {"secret-pass-1"},
		"confirm":    {"secret-pass-1"},
	}
}

// sessionCookie returns the last session cookie written by the response.
func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			found = c
		}
	}
	if found == nil {
		t.Fatal("no session cookie set")
	}
	return found
}

func call(fn func()) {
	defer func() {
		// Template rendering may panic in tests - that's expected
		_ = recover()
	}()
	fn()
}

func doSignup(t *testing.T, h *signup.Handler, username string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleSignup(rec, testutil.NewFormRequest("/signup/", signupForm(username)))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/check-code/" {
		t.Fatalf("signup: status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	return sessionCookie(t, rec)
}

func findAccount(t *testing.T, db *mongo.Database, username string) (bool, bool) {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()
	var doc struct {
		IsActive bool `bson:"is_active"`
	}
	err := db.Collection("accounts").FindOne(ctx, bson.M{"username_ci": username}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, false
	}
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	return true, doc.IsActive
}

func TestHandleSignup_CreatesInactiveAccount(t *testing.T) {
	mail := &fakeMailer{}
	h, db := newTestHandler(t, mail, unlimited())

	doSignup(t, h, "aziz")

	exists, active := findAccount(t, db, "aziz")
	if !exists {
		t.Fatal("account not created")
	}
	if active {
		t.Error("new account should be inactive")
	}
	if len(mail.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(mail.sent))
	}
	if mail.sent[0].To != "aziz@example.com" {
		t.Errorf("To = %q", mail.sent[0].To)
	}
	_ = mail.lastCode(t)
}

func TestHandleSignup_PasswordMismatch(t *testing.T) {
	h, db := newTestHandler(t, &fakeMailer{}, unlimited())

	form := signupForm("mismatch")
	form.Set("confirm", "something-else")
	rec := httptest.NewRecorder()
	call(func() { h.HandleSignup(rec, testutil.NewFormRequest("/signup/", form)) })

	if exists, _ := findAccount(t, db, "mismatch"); exists {
		t.Error("account created despite mismatched confirmation")
	}
}

func TestHandleSignup_DuplicateUsername(t *testing.T) {
	h, db := newTestHandler(t, &fakeMailer{}, unlimited())
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}
	fx.CreateCitizen(ctx, "taken")

	rec := httptest.NewRecorder()
	call(func() { h.HandleSignup(rec, testutil.NewFormRequest("/signup/", signupForm("Taken"))) })

	n, err := db.Collection("accounts").CountDocuments(ctx, bson.M{"username_ci": "taken"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d accounts named taken, want 1", n)
	}
	if rec.Code == http.StatusSeeOther {
		t.Error("duplicate signup should not redirect")
	}
}

func TestHandleSignup_EmailFailureStillContinues(t *testing.T) {
	mail := &fakeMailer{err: errors.New("smtp down")}
	h, db := newTestHandler(t, mail, unlimited())

	doSignup(t, h, "nomail")

	if exists, _ := findAccount(t, db, "nomail"); !exists {
		t.Error("account should exist even when the email failed")
	}
}

func TestHandleSignup_RateLimited(t *testing.T) {
	limits := unlimited()
	limits.Signup = ratelimit.NewMemory(1, time.Minute)
	h, db := newTestHandler(t, &fakeMailer{}, limits)

	doSignup(t, h, "first")

	rec := httptest.NewRecorder()
	call(func() { h.HandleSignup(rec, testutil.NewFormRequest("/signup/", signupForm("second"))) })

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if exists, _ := findAccount(t, db, "second"); exists {
		t.Error("rate-limited signup created an account")
	}
}

func TestCheckCode_ActivatesExactlyOnce(t *testing.T) {
	mail := &fakeMailer{}
	h, db := newTestHandler(t, mail, unlimited())
	cookie := doSignup(t, h, "once")
	code := mail.lastCode(t)

	req := testutil.NewFormRequest("/check-code/", url.Values{"code": {code}})
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.HandleCheckCode(rec, req)

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login/" {
		t.Fatalf("check-code: status=%d location=%q", rec.Code, rec.Header().Get("Location"))
	}
	if _, active := findAccount(t, db, "once"); !active {
		t.Error("account should be active")
	}

	// The session no longer carries a pending account.
	again := testutil.NewFormRequest("/check-code/", url.Values{"code": {code}})
	again.AddCookie(sessionCookie(t, rec))
	rec2 := httptest.NewRecorder()
	h.HandleCheckCode(rec2, again)
	if loc := rec2.Header().Get("Location"); loc != "/signup/" {
		t.Errorf("second submission Location = %q, want /signup/", loc)
	}
}

func TestCheckCode_WrongCodeKeepsInactive(t *testing.T) {
	mail := &fakeMailer{}
	h, db := newTestHandler(t, mail, unlimited())
	cookie := doSignup(t, h, "wrong")

	req := testutil.NewFormRequest("/check-code/", url.Values{"code": {"000000"}})
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	call(func() { h.HandleCheckCode(rec, req) })

	if _, active := findAccount(t, db, "wrong"); active {
		t.Error("wrong code activated the account")
	}
}

func TestCheckCode_NoPendingAccount(t *testing.T) {
	h, _ := newTestHandler(t, &fakeMailer{}, unlimited())

	rec := httptest.NewRecorder()
	h.ServeCheckCode(rec, httptest.NewRequest("GET", "/check-code/", nil))

	if loc := rec.Header().Get("Location"); loc != "/signup/" {
		t.Errorf("Location = %q, want /signup/", loc)
	}
}

func TestHandleResend_SendsNewCode(t *testing.T) {
	mail := &fakeMailer{}
	h, db := newTestHandler(t, mail, unlimited())
	cookie := doSignup(t, h, "resend")
	first := mail.lastCode(t)

	req := testutil.NewFormRequest("/check-code/resend/", url.Values{})
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.HandleResend(rec, req)

	if loc := rec.Header().Get("Location"); loc != "/check-code/" {
		t.Fatalf("Location = %q, want /check-code/", loc)
	}
	if len(mail.sent) != 2 {
		t.Fatalf("sent %d emails, want 2", len(mail.sent))
	}
	second := mail.lastCode(t)

	// The newest code works; the cookie from the resend response still
	// carries the pending account.
	check := testutil.NewFormRequest("/check-code/", url.Values{"code": {second}})
	check.AddCookie(sessionCookie(t, rec))
	rec2 := httptest.NewRecorder()
	call(func() { h.HandleCheckCode(rec2, check) })
	if _, active := findAccount(t, db, "resend"); !active {
		t.Errorf("latest code did not activate (first=%s second=%s)", first, second)
	}
}
