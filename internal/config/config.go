package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// SessionMode determines how browser session cookies are verified.
type SessionMode string

const (
	// SessionModeHMAC verifies the session cookie's own HMAC signature
	// locally — no external session service needed. Suitable for
	// self-hosting.
	SessionModeHMAC SessionMode = "hmac"
	// SessionModeDB looks the cookie value up against the relational
	// sessions table (spec.md §6's "reads sessions by cookie value").
	SessionModeDB SessionMode = "db"
	// SessionModeClerk verifies the session via Clerk, for deployments
	// that front the hub with Clerk-managed dashboard auth.
	SessionModeClerk SessionMode = "clerk"
)

// Config is the process-wide configuration, read once at startup.
type Config struct {
	// Server
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`

	// Session verification
	SessionMode    SessionMode `env:"SESSION_MODE" envDefault:"hmac"`
	SessionHMACKey string      `env:"SESSION_HMAC_KEY"`
	ClerkSecretKey string      `env:"CLERK_SECRET_KEY"`

	// Identity whitelist, applied by the HTTP front before a hub is created
	AllowedOrgs  []string `env:"ALLOWED_ORGS" envSeparator:","`
	AllowedUsers []string `env:"ALLOWED_USERS" envSeparator:","`
	AllowedTeams []string `env:"ALLOWED_TEAMS" envSeparator:","`

	// Hub timeouts
	HandshakeTimeout time.Duration `env:"HANDSHAKE_TIMEOUT" envDefault:"10s"`
	ProxyTimeout     time.Duration `env:"PROXY_TIMEOUT" envDefault:"30s"`
	HibernateAfter   time.Duration `env:"HIBERNATE_AFTER" envDefault:"10s"`

	// Durable local KV store
	HubStoreDir string `env:"HUB_STORE_DIR" envDefault:"./data/hubs"`

	// Rate limiting
	FrameRatePerSecond float64 `env:"FRAME_RATE_PER_SECOND" envDefault:"20"`
	FrameRateBurst     int     `env:"FRAME_RATE_BURST" envDefault:"40"`
	ConnRatePerSecond  float64 `env:"CONN_RATE_PER_SECOND" envDefault:"5"`
	ConnRateBurst      int     `env:"CONN_RATE_BURST" envDefault:"10"`

	// CORS (dashboard-facing RPC read endpoint)
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`
}

// RequiresClerk reports whether dashboard session verification needs a
// Clerk secret key.
func (c *Config) RequiresClerk() bool {
	return c.SessionMode == SessionModeClerk
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
