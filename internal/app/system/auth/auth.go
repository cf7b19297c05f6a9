package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/ekomurojaat/internal/app/policy/accesspolicy"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session keys                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	isAuthKey = "is_authenticated"
	userIDKey = "user_id"

	// PendingAccountKey holds the id of an account that signed up but has not
	// confirmed its email code yet.
	PendingAccountKey = "pending_account_id"
	// PendingEmailKey holds where the code was sent, for display only.
	PendingEmailKey = "pending_email"

	flashKeyPrefix = "_flash_"
)

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

var flashKinds = []string{FlashSuccess, FlashError, FlashInfo}

// AccessDeniedMessage is shown when a signed-in account hits a page its role
// may not use.
const AccessDeniedMessage = "You do not have access to that page."

// DeniedRedirect is where role-denied requests land.
const DeniedRedirect = "/home/"

/*─────────────────────────────────────────────────────────────────────────────*
| Current user                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is the signed-in account as seen by handlers. It is rebuilt
// from the database on every request, so role changes and deactivation take
// effect immediately.
type SessionUser struct {
	ID               string
	Name             string
	LoginID          string
	Email            string
	Role             string
	OrganizationID   string
	OrganizationName string
}

// UserFetcher loads fresh account data for a user id. It returns nil when the
// account no longer exists or may not sign in.
type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) *SessionUser
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok && u != nil
}

// WithTestUser places u in the request context the way LoadSessionUser does.
// Handler tests use it to skip the cookie round trip.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| SessionManager                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionManager owns the cookie store and the middleware built on it.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	fetcher UserFetcher
	log     *zap.Logger
}

// NewSessionManager creates the cookie-backed session store.
//
// In production (secure=true) cookies are Secure with SameSite=None. In local
// dev over http://localhost, secure=false keeps SameSite=Lax so browsers
// accept the cookie.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = "ekomurojaat-session"
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
	}
	if maxAge > 0 {
		opts.MaxAge = int(maxAge.Seconds())
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.Bool("secure", secure),
		zap.String("domain", domain),
		zap.Duration("max_age", maxAge))

	return &SessionManager{store: store, name: name, log: logger}, nil
}

// SetUserFetcher installs the loader used by LoadSessionUser.
func (sm *SessionManager) SetUserFetcher(f UserFetcher) { sm.fetcher = f }

// Store exposes the underlying cookie store (logout needs its options).
func (sm *SessionManager) Store() *sessions.CookieStore { return sm.store }

// Name is the session cookie name.
func (sm *SessionManager) Name() string { return sm.name }

// GetSession returns the request's session. On a decode error gorilla still
// returns a fresh session, so callers may keep going after logging.
func (sm *SessionManager) GetSession(r *http.Request) (*sessions.Session, error) {
	return sm.store.Get(r, sm.name)
}

// SignIn marks the session as authenticated for userID and clears any
// half-finished signup state.
func (sm *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, sess *sessions.Session, userID string) error {
	delete(sess.Values, PendingAccountKey)
	delete(sess.Values, PendingEmailKey)
	sess.Values[isAuthKey] = true
	sess.Values[userIDKey] = userID
	return sess.Save(r, w)
}

// LoadSessionUser injects the user into context if they are logged in.
func (sm *SessionManager) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sm.GetSession(r)
		if err != nil || sm.fetcher == nil {
			next.ServeHTTP(w, r)
			return
		}
		if isAuth, _ := sess.Values[isAuthKey].(bool); !isAuth {
			next.ServeHTTP(w, r)
			return
		}
		uid, _ := sess.Values[userIDKey].(string)
		if u := sm.fetcher.FetchUser(r.Context(), uid); u != nil {
			r = withUser(r, u)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login/?return=...
//   - HTML: 303 redirect to /login/?return=...
//   - API:  401 Unauthorized with a plain error body.
func (sm *SessionManager) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		redirectToLogin(w, r)
	})
}

// RequireRole ensures the signed-in user has one of the allowed roles.
func (sm *SessionManager) RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}
	return sm.gate(func(u *SessionUser) bool {
		_, has := set[strings.ToLower(u.Role)]
		return has
	})
}

// Require checks the (role, operation) policy table before the handler runs.
func (sm *SessionManager) Require(op accesspolicy.Operation) func(http.Handler) http.Handler {
	return sm.gate(func(u *SessionUser) bool {
		return accesspolicy.Allowed(u.Role, op)
	})
}

// gate sends anonymous callers to login and wrong-role callers to the home
// page with an "access denied" notice. Nothing of the protected page is
// rendered on denial.
func (sm *SessionManager) gate(allow func(*SessionUser) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)
			if !ok {
				redirectToLogin(w, r)
				return
			}
			if allow(u) {
				next.ServeHTTP(w, r)
				return
			}

			sm.log.Info("access denied",
				zap.String("user_id", u.ID),
				zap.String("role", u.Role),
				zap.String("path", r.URL.Path))

			if r.Header.Get("HX-Request") == "true" {
				sm.AddFlash(w, r, FlashError, AccessDeniedMessage)
				w.Header().Set("HX-Redirect", DeniedRedirect)
				w.WriteHeader(http.StatusForbidden)
				return
			}
			if wantsHTML(r) {
				sm.AddFlash(w, r, FlashError, AccessDeniedMessage)
				http.Redirect(w, r, DeniedRedirect, http.StatusSeeOther)
				return
			}
			http.Error(w, "forbidden", http.StatusForbidden)
		})
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Flash notices                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Kind    string
	Message string
}

// AddFlash queues a notice. Failures are logged; a lost notice never fails
// the request.
func (sm *SessionManager) AddFlash(w http.ResponseWriter, r *http.Request, kind, msg string) {
	sess, err := sm.GetSession(r)
	if err != nil {
		sm.log.Debug("flash: session decode failed; using fresh session", zap.Error(err))
	}
	sess.AddFlash(msg, flashKeyPrefix+kind)
	if err := sess.Save(r, w); err != nil {
		sm.log.Warn("flash: save session", zap.Error(err))
	}
}

// PopFlashes returns and clears all queued notices. It must run before the
// response body is written.
func (sm *SessionManager) PopFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	sess, err := sm.GetSession(r)
	if err != nil {
		return nil
	}
	var out []Flash
	for _, kind := range flashKinds {
		for _, v := range sess.Flashes(flashKeyPrefix + kind) {
			if msg, ok := v.(string); ok {
				out = append(out, Flash{Kind: kind, Message: msg})
			}
		}
	}
	if len(out) > 0 {
		if err := sess.Save(r, w); err != nil {
			sm.log.Warn("flash: save session", zap.Error(err))
		}
	}
	return out
}

// helpers

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func redirectToLogin(w http.ResponseWriter, r *http.Request) {
	ret := url.QueryEscape(r.URL.RequestURI())
	dest := "/login/?return=" + ret

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	accept := r.Header.Get("Accept")
	return accept == "" || strings.Contains(accept, "text/html")
}
