// internal/app/features/signup/handler.go
package signup

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	"github.com/dalemusser/ekomurojaat/internal/app/store/emailverify"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/formutil"
	"github.com/dalemusser/ekomurojaat/internal/app/system/inputval"
	"github.com/dalemusser/ekomurojaat/internal/app/system/mailer"
	"github.com/dalemusser/ekomurojaat/internal/app/system/metrics"
	"github.com/dalemusser/ekomurojaat/internal/app/system/ratelimit"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/ekomurojaat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/gorilla/sessions"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const tooManyRequests = "Too many attempts. Please wait a few minutes and try again."

type Handler struct {
	DB          *mongo.Database
	Log         *zap.Logger
	SessionMgr  *auth.SessionManager
	ErrLog      *uierrors.ErrorLogger
	Mailer      mailer.Sender
	Accounts    *accountstore.Store
	EmailVerify *emailverify.Store
	AuditLog    *auditlog.Logger
	Limits      ratelimit.AuthLimits
	BaseURL     string // used for the link in the verification email
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	mail mailer.Sender,
	audit *auditlog.Logger,
	limits ratelimit.AuthLimits,
	baseURL string,
	codeExpiry time.Duration,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:          db,
		Log:         logger,
		SessionMgr:  sessionMgr,
		ErrLog:      errLog,
		Mailer:      mail,
		Accounts:    accountstore.New(db),
		EmailVerify: emailverify.New(db, codeExpiry),
		AuditLog:    audit,
		Limits:      limits,
		BaseURL:     strings.TrimRight(baseURL, "/"),
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type signupInput struct {
	FirstName string `form:"first_name" validate:"required,max=150" label:"First name"`
	LastName  string `form:"last_name" validate:"required,max=150" label:"Last name"`
	Phone     string `form:"phone" validate:"required,phone" label:"Phone"`
	Email     string `form:"email" validate:"required,email,max=254" label:"Email"`
	Username  string `form:"username" validate:"required,max=150,username" label:"Username"`
	Password  string `form:"password" validate:"required,min=8,max=128" label:"Password"`
	Confirm   string `form:"confirm" validate:"required,eqfield=Password" label:"Password confirmation"`
}

type signupFormData struct {
	formutil.Base
	FirstName string
	LastName  string
	Phone     string
	Email     string
	Username  string
}

type checkCodeData struct {
	formutil.Base
	Email     string
	ExpiresIn string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET/POST /signup/                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeSignup(w http.ResponseWriter, r *http.Request) {
	var data signupFormData
	formutil.SetBase(&data.Base, w, r, "Sign up", "/home/")
	templates.Render(w, r, "signup", data)
}

// HandleSignup creates an inactive account, issues a verification code and
// parks the account id in the session for /check-code/.
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/signup/")
		return
	}

	in := signupInput{
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
		Phone:     strings.TrimSpace(r.FormValue("phone")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		Username:  strings.TrimSpace(r.FormValue("username")),
		Password:  r.FormValue("password"),
		Confirm:   r.FormValue("confirm"),
	}
	data := signupFormData{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Email:     in.Email,
		Username:  in.Username,
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if !h.Limits.Signup.Allow(ctx, ratelimit.ClientIP(r)) {
		metrics.RateLimitExceeded.WithLabelValues("signup").Inc()
		h.AuditLog.RateLimited(r, "signup")
		formutil.SetBase(&data.Base, w, r, "Sign up", "/home/")
		data.SetError(tooManyRequests)
		w.WriteHeader(http.StatusTooManyRequests)
		templates.Render(w, r, "signup", data)
		return
	}

	if res := inputval.Validate(in); res.HasErrors() {
		formutil.SetBase(&data.Base, w, r, "Sign up", "/home/")
		data.SetFieldErrors(res.ByField())
		templates.Render(w, r, "signup", data)
		return
	}

	acct, err := h.Accounts.Create(ctx, models.Account{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Role:      models.RoleCitizen,
	}, in.Password)
	if errors.Is(err, accountstore.ErrDuplicateUsername) {
		formutil.SetBase(&data.Base, w, r, "Sign up", "/home/")
		data.SetFieldErrors(map[string]string{"username": "This username is already taken."})
		templates.Render(w, r, "signup", data)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create account failed", err, "Could not create your account.", "/signup/")
		return
	}
	h.AuditLog.Signup(r, acct.ID, acct.Username)

	if err := h.issueCode(ctx, r, acct, false); err != nil {
		h.ErrLog.LogServerError(w, r, "issue verification code failed", err, "Could not create a verification code.", "/signup/")
		return
	}

	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		h.Log.Warn("signup: session decode failed; using fresh session", zap.Error(err))
	}
	sess.Values[auth.PendingAccountKey] = acct.ID.Hex()
	sess.Values[auth.PendingEmailKey] = acct.Email
	if err := sess.Save(r, w); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Could not continue the signup.", "/signup/")
		return
	}

	http.Redirect(w, r, "/check-code/", http.StatusSeeOther)
}

// issueCode stores a fresh code and emails it. A failed send is logged and
// swallowed; the user can ask for a new code from the check-code page.
func (h *Handler) issueCode(ctx context.Context, r *http.Request, acct models.Account, resend bool) error {
	res, err := h.EmailVerify.Create(ctx, acct.ID, acct.Email, resend)
	if err != nil {
		return err
	}

	checkURL := ""
	if h.BaseURL != "" {
		checkURL = h.BaseURL + "/check-code/"
	}
	msg := mailer.BuildVerificationEmail(acct.Email, mailer.VerificationEmailData{
		SiteName:  viewdata.SiteName,
		Username:  acct.Username,
		Code:      res.Code,
		CheckURL:  checkURL,
		ExpiresIn: expiryText(h.EmailVerify.Expiry()),
	})

	err = h.Mailer.Send(ctx, msg)
	metrics.EmailsSent.WithLabelValues("verification", metrics.Result(err)).Inc()
	if err != nil {
		h.Log.Error("send verification email failed",
			zap.Error(err),
			zap.String("account_id", acct.ID.Hex()))
		h.AuditLog.VerificationEmailFailed(r, acct.ID, err)
		return nil
	}
	h.AuditLog.VerificationCodeSent(r, acct.ID, resend)
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET/POST /check-code/                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// pending returns the account waiting for its code, or ok=false when the
// session carries none.
func (h *Handler) pending(r *http.Request) (sess *sessions.Session, id primitive.ObjectID, email string, ok bool) {
	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		h.Log.Debug("check-code: session decode failed", zap.Error(err))
	}
	hex, _ := sess.Values[auth.PendingAccountKey].(string)
	id, err = primitive.ObjectIDFromHex(hex)
	if err != nil {
		return sess, primitive.NilObjectID, "", false
	}
	email, _ = sess.Values[auth.PendingEmailKey].(string)
	return sess, id, email, true
}

func (h *Handler) ServeCheckCode(w http.ResponseWriter, r *http.Request) {
	_, _, email, ok := h.pending(r)
	if !ok {
		http.Redirect(w, r, "/signup/", http.StatusSeeOther)
		return
	}
	h.renderCheckCode(w, r, email, "", http.StatusOK)
}

func (h *Handler) renderCheckCode(w http.ResponseWriter, r *http.Request, email, errMsg string, status int) {
	data := checkCodeData{Email: email, ExpiresIn: expiryText(h.EmailVerify.Expiry())}
	formutil.SetBase(&data.Base, w, r, "Confirm your email", "/signup/")
	if errMsg != "" {
		data.SetError(errMsg)
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	templates.Render(w, r, "check_code", data)
}

// HandleCheckCode activates the pending account when the submitted code
// matches. The pending keys are cleared on success, so a second submission
// lands back on /signup/.
func (h *Handler) HandleCheckCode(w http.ResponseWriter, r *http.Request) {
	sess, accountID, email, ok := h.pending(r)
	if !ok {
		http.Redirect(w, r, "/signup/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/check-code/")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if !h.Limits.CheckCode.Allow(ctx, ratelimit.ClientIP(r)) {
		metrics.RateLimitExceeded.WithLabelValues("check_code").Inc()
		h.AuditLog.RateLimited(r, "check_code")
		h.renderCheckCode(w, r, email, tooManyRequests, http.StatusTooManyRequests)
		return
	}

	code := strings.TrimSpace(r.FormValue("code"))
	if res := inputval.Validate(codeInput{Code: code}); res.HasErrors() {
		h.renderCheckCode(w, r, email, res.First(), http.StatusOK)
		return
	}

	if _, err := h.EmailVerify.VerifyCode(ctx, accountID, code); err != nil {
		reason, msg := "error", ""
		switch {
		case errors.Is(err, emailverify.ErrInvalidCode):
			reason, msg = "invalid", "The code is not correct."
		case errors.Is(err, emailverify.ErrTooManyAttempts):
			reason, msg = "too_many_attempts", "Too many wrong codes. Request a new code."
		case errors.Is(err, emailverify.ErrNotFound):
			reason, msg = "expired", "The code has expired. Request a new code."
		default:
			metrics.Verifications.WithLabelValues(reason).Inc()
			h.ErrLog.LogServerError(w, r, "verify code failed", err, "Could not check the code.", "/check-code/")
			return
		}
		metrics.Verifications.WithLabelValues(reason).Inc()
		h.AuditLog.VerificationFailed(r, accountID, reason)
		h.renderCheckCode(w, r, email, msg, http.StatusOK)
		return
	}

	err := h.Accounts.Activate(ctx, accountID)
	switch {
	case err == nil, errors.Is(err, accountstore.ErrAlreadyActive):
	case errors.Is(err, mongo.ErrNoDocuments):
		h.clearPending(w, r, sess)
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "That account no longer exists. Please sign up again.")
		http.Redirect(w, r, "/signup/", http.StatusSeeOther)
		return
	default:
		h.ErrLog.LogServerError(w, r, "activate account failed", err, "Could not activate your account.", "/check-code/")
		return
	}

	metrics.Verifications.WithLabelValues(metrics.ResultOK).Inc()
	h.AuditLog.AccountActivated(r, accountID)
	h.clearPending(w, r, sess)
	h.SessionMgr.AddFlash(w, r, auth.FlashSuccess, "Your email is confirmed. You can now sign in.")
	http.Redirect(w, r, "/login/", http.StatusSeeOther)
}

type codeInput struct {
	Code string `form:"code" validate:"required,numeric,len=6" label:"Code"`
}

func (h *Handler) clearPending(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	delete(sess.Values, auth.PendingAccountKey)
	delete(sess.Values, auth.PendingEmailKey)
	if err := sess.Save(r, w); err != nil {
		h.Log.Warn("check-code: save session", zap.Error(err))
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /check-code/resend/                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleResend(w http.ResponseWriter, r *http.Request) {
	sess, accountID, _, ok := h.pending(r)
	if !ok {
		http.Redirect(w, r, "/signup/", http.StatusSeeOther)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if !h.Limits.Signup.Allow(ctx, ratelimit.ClientIP(r)) {
		metrics.RateLimitExceeded.WithLabelValues("signup").Inc()
		h.AuditLog.RateLimited(r, "resend")
		h.SessionMgr.AddFlash(w, r, auth.FlashError, tooManyRequests)
		http.Redirect(w, r, "/check-code/", http.StatusSeeOther)
		return
	}

	acct, err := h.Accounts.GetByID(ctx, accountID)
	if errors.Is(err, mongo.ErrNoDocuments) || (err == nil && acct.IsActive) {
		h.clearPending(w, r, sess)
		http.Redirect(w, r, "/login/", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load pending account failed", err, "Could not send a new code.", "/check-code/")
		return
	}

	err = h.issueCode(ctx, r, *acct, true)
	if errors.Is(err, emailverify.ErrTooManyResends) {
		h.SessionMgr.AddFlash(w, r, auth.FlashError, "Too many new codes requested. Please wait before asking again.")
		http.Redirect(w, r, "/check-code/", http.StatusSeeOther)
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "resend code failed", err, "Could not send a new code.", "/check-code/")
		return
	}

	h.SessionMgr.AddFlash(w, r, auth.FlashInfo, "A new code was sent to "+acct.Email+".")
	http.Redirect(w, r, "/check-code/", http.StatusSeeOther)
}

// expiryText formats d as "10 minutes", "1 hour" and so on.
func expiryText(d time.Duration) string {
	minutes := int(d.Minutes())
	if minutes < 60 {
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	hours := minutes / 60
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
