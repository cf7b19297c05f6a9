// internal/app/features/login/handler.go
package login

// Terminology: Account Identifiers
//   - AccountID / accountID / account_id: The MongoDB ObjectID (_id) of the account
//   - Username: the human-readable string users type to sign in

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	"github.com/dalemusser/ekomurojaat/internal/app/policy/accesspolicy"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/metrics"
	"github.com/dalemusser/ekomurojaat/internal/app/system/ratelimit"
	"github.com/dalemusser/ekomurojaat/internal/app/system/timeouts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Handler struct {
	DB         *mongo.Database
	Log        *zap.Logger
	SessionMgr *auth.SessionManager
	ErrLog     *uierrors.ErrorLogger
	Accounts   *accountstore.Store
	AuditLog   *auditlog.Logger
	Limiter    ratelimit.Limiter
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type loginFormData struct {
	viewdata.BaseVM
	Error     string
	Username  string // what the user typed
	ReturnURL string
}

func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *uierrors.ErrorLogger,
	audit *auditlog.Logger,
	limiter ratelimit.Limiter,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		DB:         db,
		Log:        logger,
		SessionMgr: sessionMgr,
		ErrLog:     errLog,
		Accounts:   accountstore.New(db),
		AuditLog:   audit,
		Limiter:    limiter,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login/                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		http.Redirect(w, r, accesspolicy.LandingPath(u.Role), http.StatusSeeOther)
		return
	}

	templates.Render(w, r, "login", loginFormData{
		BaseVM:    viewdata.NewBaseVM(w, r, "Sign in", "/home/"),
		ReturnURL: query.Get(r, "return"),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login/                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.ErrLog.LogBadRequest(w, r, "parse form failed", err, "Invalid form data.", "/login/")
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	returnURL := r.FormValue("return")

	if username == "" || password == "" {
		h.renderFormWithError(w, r, "Please enter your username and password.", username, returnURL, http.StatusOK)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	ip := ratelimit.ClientIP(r)
	if !h.Limiter.Allow(ctx, ip) {
		metrics.RateLimitExceeded.WithLabelValues("login").Inc()
		h.AuditLog.RateLimited(r, "login")
		h.renderFormWithError(w, r, "Too many sign-in attempts. Please wait a minute and try again.", username, returnURL, http.StatusTooManyRequests)
		return
	}

	acct, err := h.Accounts.Authenticate(ctx, username, password)
	switch {
	case err == nil:
	case errors.Is(err, accountstore.ErrBadCredentials):
		h.AuditLog.LoginFailed(r, username, "bad_credentials")
		h.renderFormWithError(w, r, "Wrong login or password.", username, returnURL, http.StatusOK)
		return
	case errors.Is(err, accountstore.ErrInactive):
		// Correct password but the email was never confirmed: resume the
		// check-code step for this account.
		h.AuditLog.LoginFailed(r, username, "inactive")
		h.resumeVerification(w, r, acct.ID.Hex(), acct.Email)
		return
	default:
		h.ErrLog.LogServerError(w, r, "authenticate failed", err, "Sign-in is temporarily unavailable.", "/login/")
		return
	}

	h.Limiter.Reset(ctx, ip)
	if err := h.Accounts.TouchLogin(ctx, acct.ID, time.Now()); err != nil {
		h.Log.Warn("record last login failed", zap.Error(err), zap.String("account_id", acct.ID.Hex()))
	}

	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		if scErr, ok := err.(securecookie.Error); ok && scErr.IsDecode() {
			h.Log.Warn("session cookie invalid, using fresh session",
				zap.Error(err),
				zap.String("account_id", acct.ID.Hex()))
		} else {
			h.Log.Error("session store error during login, using fresh session",
				zap.Error(err),
				zap.String("account_id", acct.ID.Hex()))
		}
	}
	if err := h.SessionMgr.SignIn(w, r, sess, acct.ID.Hex()); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Could not sign you in.", "/login/")
		return
	}
	h.AuditLog.LoginSuccess(r, acct.ID, acct.Username)

	dest := urlutil.SafeReturn(returnURL, "", accesspolicy.LandingPath(acct.Role))
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

func (h *Handler) resumeVerification(w http.ResponseWriter, r *http.Request, accountID, email string) {
	sess, err := h.SessionMgr.GetSession(r)
	if err != nil {
		h.Log.Debug("login: session decode failed; using fresh session", zap.Error(err))
	}
	sess.Values[auth.PendingAccountKey] = accountID
	sess.Values[auth.PendingEmailKey] = email
	if err := sess.Save(r, w); err != nil {
		h.ErrLog.LogServerError(w, r, "save session failed", err, "Could not continue.", "/login/")
		return
	}
	h.SessionMgr.AddFlash(w, r, auth.FlashInfo, "Please confirm your email address first. You can ask for a new code below.")
	http.Redirect(w, r, "/check-code/", http.StatusSeeOther)
}

func (h *Handler) renderFormWithError(w http.ResponseWriter, r *http.Request, msg, username, returnURL string, status int) {
	data := loginFormData{
		BaseVM:    viewdata.NewBaseVM(w, r, "Sign in", "/home/"),
		Error:     msg,
		Username:  username,
		ReturnURL: returnURL,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	templates.Render(w, r, "login", data)
}
