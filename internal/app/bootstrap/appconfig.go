// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers
// ports, TLS, logging and CORS; everything EkoMurojaat needs on top of that
// lives here and is passed to every lifecycle hook.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: ekomurojaat-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Session cookie lifetime
	CSRFKey       string        // 32-byte key for gorilla/csrf tokens

	// Complaint images
	MediaPath     string // Directory the images are written to
	MediaURL      string // URL prefix the images are served from
	MaxImageBytes int64  // Upper bound for a single image
	MaxImages     int    // Images accepted with one complaint

	// Email/SMTP configuration (blank host logs mail instead of sending it)
	MailSMTPHost string
	MailSMTPPort int
	MailSMTPUser string
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Base URL for links in verification emails
	BaseURL          string
	VerifyCodeExpiry time.Duration

	// Redis backs the rate limiters when set; in-memory limiters otherwise.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// One-time bootstrap data
	GeoSeedFile   string // YAML list of regions and their districts
	AdminUsername string // Created or promoted to admin on startup
	AdminEmail    string
	AdminPassword string

	MetricsEnabled bool
}
