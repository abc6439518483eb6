// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig handles framework-level settings (HTTP ports, TLS,
// logging level, request limits); AppConfig is everything specific to
// PayTrack. The struct is passed to most lifecycle hooks, so any
// configuration needed during startup, request handling, or shutdown
// lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: paytrack-session)
	SessionDomain string // Cookie domain (blank means current host)

	// CSRFKey authenticates the per-form tokens (32 bytes).
	CSRFKey string

	// File storage configuration for payment proofs, organization
	// logos, and profile images.
	StorageType      string // Storage backend: "local"
	StorageLocalPath string // Local storage path (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving stored files (e.g., "/files")

	// Base URL of the deployment, used to build the Google OAuth
	// callback URL.
	BaseURL string // e.g., "https://paytrack.example.edu" or "http://localhost:3000"

	// Google OAuth sign-in. A blank client ID disables the option.
	GoogleClientID     string
	GoogleClientSecret string

	// Audit logging: "all" (db+log), "db", "log", or "off".
	AuditLogAuth    string
	AuditLogPayment string
	AuditLogAdmin   string

	// AdminEmail names a registered user promoted to the admin role
	// at startup. Blank skips the promotion.
	AdminEmail string
}
