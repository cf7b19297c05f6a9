// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const devSessionKey = "dev-only-change-me-please-0123456789ABCDEF"

// appConfigKeys defines the configuration keys for EkoMurojaat.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: EKOMUROJAAT_MONGO_URI, EKOMUROJAAT_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "ekomurojaat", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: devSessionKey, Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "ekomurojaat-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie lifetime (e.g., 24h, 30m)"},
	{Name: "csrf_key", Default: "", Desc: "32-byte CSRF key (blank derives one from session_key)"},

	// Complaint images
	{Name: "media_path", Default: "./uploads/complaints", Desc: "Directory for uploaded complaint images"},
	{Name: "media_url", Default: "/media", Desc: "URL prefix for serving complaint images"},
	{Name: "max_image_bytes", Default: 5 << 20, Desc: "Largest accepted image in bytes"},
	{Name: "max_images", Default: 5, Desc: "Images accepted with one complaint"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "", Desc: "SMTP server host (blank logs mail instead of sending)"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@ekomurojaat.uz", Desc: "From email address"},
	{Name: "mail_from_name", Default: "EkoMurojaat", Desc: "From display name"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links"},
	{Name: "verify_code_expiry", Default: "10m", Desc: "Verification code expiry (e.g., 10m, 1h, 90s)"},

	// Redis (rate limits)
	{Name: "redis_addr", Default: "", Desc: "Redis address for shared rate limits (blank uses in-memory limits)"},
	{Name: "redis_password", Default: "", Desc: "Redis password"},
	{Name: "redis_db", Default: 0, Desc: "Redis database number"},

	// Bootstrap data
	{Name: "geo_seed_file", Default: "", Desc: "YAML file with regions and districts to create on startup"},
	{Name: "admin_username", Default: "", Desc: "Username of the bootstrap administrator (created or promoted on startup)"},
	{Name: "admin_email", Default: "", Desc: "Email of the bootstrap administrator"},
	{Name: "admin_password", Default: "", Desc: "Password of the bootstrap administrator when it is created"},

	{Name: "metrics_enabled", Default: true, Desc: "Expose Prometheus metrics on /metrics"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// environment variables (WAFFLE_* for core, EKOMUROJAAT_* for app) and
// command-line flags, merged with precedence flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "EKOMUROJAAT", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),
		CSRFKey:          appValues.String("csrf_key"),

		MediaPath:     appValues.String("media_path"),
		MediaURL:      appValues.String("media_url"),
		MaxImageBytes: int64(appValues.Int("max_image_bytes")),
		MaxImages:     appValues.Int("max_images"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		BaseURL:          appValues.String("base_url"),
		VerifyCodeExpiry: appValues.Duration("verify_code_expiry", 10*time.Minute),

		RedisAddr:     appValues.String("redis_addr"),
		RedisPassword: appValues.String("redis_password"),
		RedisDB:       appValues.Int("redis_db"),

		GeoSeedFile:   appValues.String("geo_seed_file"),
		AdminUsername: appValues.String("admin_username"),
		AdminEmail:    appValues.String("admin_email"),
		AdminPassword: appValues.String("admin_password"),

		MetricsEnabled: appValues.Bool("metrics_enabled"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// Problems that would only surface on the first request (bad Mongo URI,
// weak production keys, unusable image limits) are caught here.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if coreCfg.Env == "prod" {
		if len(appCfg.SessionKey) < 32 || appCfg.SessionKey == devSessionKey {
			return fmt.Errorf("session_key must be a private value of at least 32 bytes in prod")
		}
		if appCfg.CSRFKey != "" && len(appCfg.CSRFKey) != 32 {
			return fmt.Errorf("csrf_key must be exactly 32 bytes")
		}
	}

	if appCfg.MaxImageBytes <= 0 {
		return fmt.Errorf("max_image_bytes must be positive, got %d", appCfg.MaxImageBytes)
	}
	if appCfg.MaxImages <= 0 {
		return fmt.Errorf("max_images must be positive, got %d", appCfg.MaxImages)
	}
	if appCfg.SessionMaxAge <= 0 {
		return fmt.Errorf("session_max_age must be positive")
	}

	// The bootstrap admin needs both halves; one without the other is a typo.
	if (appCfg.AdminUsername == "") != (appCfg.AdminPassword == "") {
		return fmt.Errorf("admin_username and admin_password must be set together")
	}

	return nil
}
