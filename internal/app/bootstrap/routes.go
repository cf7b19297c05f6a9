// internal/app/bootstrap/routes.go
package bootstrap

import (
	"crypto/sha256"
	"net/http"
	"strings"

	citizenfeature "github.com/dalemusser/ekomurojaat/internal/app/features/citizen"
	errorsfeature "github.com/dalemusser/ekomurojaat/internal/app/features/errors"
	healthfeature "github.com/dalemusser/ekomurojaat/internal/app/features/health"
	homefeature "github.com/dalemusser/ekomurojaat/internal/app/features/home"
	loginfeature "github.com/dalemusser/ekomurojaat/internal/app/features/login"
	logoutfeature "github.com/dalemusser/ekomurojaat/internal/app/features/logout"
	managementfeature "github.com/dalemusser/ekomurojaat/internal/app/features/management"
	moderatorfeature "github.com/dalemusser/ekomurojaat/internal/app/features/moderator"
	signupfeature "github.com/dalemusser/ekomurojaat/internal/app/features/signup"
	accountstore "github.com/dalemusser/ekomurojaat/internal/app/store/accounts"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auditlog"
	"github.com/dalemusser/ekomurojaat/internal/app/system/auth"
	"github.com/dalemusser/ekomurojaat/internal/app/system/imagestore"
	"github.com/dalemusser/ekomurojaat/internal/app/system/mailer"
	"github.com/dalemusser/ekomurojaat/internal/app/system/metrics"
	"github.com/dalemusser/ekomurojaat/internal/app/system/ratelimit"
	"github.com/dalemusser/ekomurojaat/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// the Startup hook have completed. It boots the template engine, builds the
// shared services (sessions, audit log, mailer, rate limits, image store)
// and mounts every feature router.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Fresh account state on every request: role changes, deactivation and
	// deletion take effect immediately.
	sessionMgr.SetUserFetcher(accountstore.NewFetcher(deps.MongoDatabase))
	viewdata.Init(sessionMgr)

	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	audit := auditlog.New(logger)
	mediaPrefix := "/" + strings.Trim(appCfg.MediaURL, "/")
	media, err := imagestore.NewLocal(appCfg.MediaPath, mediaPrefix, appCfg.MaxImageBytes)
	if err != nil {
		return nil, err
	}
	limits := ratelimit.NewAuthLimits(deps.Redis, logger)
	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger)

	r := chi.NewRouter()
	if appCfg.MetricsEnabled {
		r.Use(metrics.Middleware)
		r.Handle("/metrics", metrics.Handler())
	}
	r.NotFound(errorsfeature.NotFoundHandler)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.Redis, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Complaint images
	r.Handle(mediaPrefix+"/*", fileserver.Handler(mediaPrefix, appCfg.MediaPath))

	r.Group(func(pages chi.Router) {
		if !secure {
			pages.Use(plaintextHTTP)
		}
		pages.Use(csrf.Protect(csrfKey(appCfg),
			csrf.Secure(secure),
			csrf.Path("/"),
			csrf.SameSite(csrf.SameSiteLaxMode),
			csrf.ErrorHandler(http.HandlerFunc(errorsfeature.CSRFFailure)),
		))

		// Loads the SessionUser into the context when signed in.
		pages.Use(sessionMgr.LoadSessionUser)

		// Public pages
		homeHandler := homefeature.NewHandler(deps.MongoDatabase, errLog, logger)
		pages.Mount("/geo", homefeature.GeoRoutes(homeHandler))

		// Authentication
		signupHandler := signupfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, mail, audit, limits,
			appCfg.BaseURL, appCfg.VerifyCodeExpiry, logger)
		pages.Mount("/signup", signupfeature.Routes(signupHandler))
		pages.Mount("/check-code", signupfeature.CheckCodeRoutes(signupHandler))

		loginHandler := loginfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, audit, limits.Login, logger)
		pages.Mount("/login", loginfeature.Routes(loginHandler))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, audit, logger)
		pages.Mount("/logout", logoutfeature.Routes(logoutHandler))

		// Role areas
		citizenHandler := citizenfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, media, audit, appCfg.MaxImages, logger)
		pages.Mount("/user", citizenfeature.Routes(citizenHandler, sessionMgr))

		moderatorHandler := moderatorfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, media, audit, logger)
		pages.Mount("/moderator", moderatorfeature.Routes(moderatorHandler, sessionMgr))

		managementHandler := managementfeature.NewHandler(deps.MongoDatabase, sessionMgr, errLog, media, audit, logger)
		pages.Mount("/dashboard/management", managementfeature.Routes(managementHandler, sessionMgr))

		pages.Mount("/", homefeature.Routes(homeHandler))
	})

	return r, nil
}

// csrfKey returns the configured CSRF key, or one derived from the session
// key so a single secret is enough in development.
func csrfKey(appCfg AppConfig) []byte {
	if appCfg.CSRFKey != "" {
		return []byte(appCfg.CSRFKey)
	}
	sum := sha256.Sum256([]byte("csrf:" + appCfg.SessionKey))
	return sum[:]
}

// plaintextHTTP tells gorilla/csrf the request arrived over plain HTTP, which
// relaxes its Referer check for local development.
func plaintextHTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
