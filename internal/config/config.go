// Package config provides configuration management for saleorhook.
package config

import (
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration structure for saleorhook.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	App         AppConfig         `mapstructure:"app"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Webhooks    WebhooksConfig    `mapstructure:"webhooks"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Request timeouts. The webhook pipeline relies on these and imposes none of its own.
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Expose Prometheus metrics on /metrics
	Metrics bool `mapstructure:"metrics"`

	// Number of recent webhook deliveries kept in memory and served on
	// /api/deliveries. Zero disables the endpoint.
	DeliveryLog int `mapstructure:"delivery_log"`

	// Per client IP limit on the app installation endpoint
	RegisterRateLimit RateLimitRule `mapstructure:"register_rate_limit"`
}

// RateLimitRule allows Max requests per Window. Max of zero disables it.
type RateLimitRule struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

// DatabaseConfig holds database settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string `mapstructure:"path"`

	// Enable WAL mode (recommended)
	WALMode bool `mapstructure:"wal_mode"`

	// Busy timeout
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`

	// Maximum open connections
	MaxOpenConns int `mapstructure:"max_open_conns"`

	// Maximum idle connections
	MaxIdleConns int `mapstructure:"max_idle_conns"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `mapstructure:"level"`

	// Log format (json, console)
	Format string `mapstructure:"format"`

	// Include caller info
	Caller bool `mapstructure:"caller"`
}

// AppConfig describes the app as announced to the platform in its manifest.
type AppConfig struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Version     string   `mapstructure:"version"`
	BaseURL     string   `mapstructure:"base_url"`
	Permissions []string `mapstructure:"permissions"`
	Author      string   `mapstructure:"author"`
	About       string   `mapstructure:"about"`
}

// CredentialsConfig selects and configures the credential store backend.
type CredentialsConfig struct {
	// Backend is one of: sqlite, file, redis, static
	Backend string `mapstructure:"backend"`

	File  FileCredentialsConfig  `mapstructure:"file"`
	Redis RedisCredentialsConfig `mapstructure:"redis"`

	// Static entries, used by the static backend. Typically filled from env.
	Static []StaticCredential `mapstructure:"static"`
}

// FileCredentialsConfig configures the file backed store.
type FileCredentialsConfig struct {
	Path  string `mapstructure:"path"`
	Watch bool   `mapstructure:"watch"`
}

// RedisCredentialsConfig configures the Redis backed store.
type RedisCredentialsConfig struct {
	URL       string `mapstructure:"url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StaticCredential is one credential entry declared in config.
type StaticCredential struct {
	Domain string `mapstructure:"domain"`
	Token  string `mapstructure:"token"`
	APIURL string `mapstructure:"api_url"`
	AppID  string `mapstructure:"app_id"`
	JWKS   string `mapstructure:"jwks"`
}

// WebhooksConfig holds settings shared by every webhook endpoint.
type WebhooksConfig struct {
	// Header carrying the sender domain
	DomainHeader string `mapstructure:"domain_header"`

	// Header carrying the event type
	EventHeader string `mapstructure:"event_header"`

	// Header carrying the payload signature
	SignatureHeader string `mapstructure:"signature_header"`

	// Glob patterns of sender domains accepted. Empty accepts any domain with credentials.
	AllowedDomains []string `mapstructure:"allowed_domains"`

	// Refetch the sender's JWKS once when a JWS signature fails to verify
	RefreshJWKS bool `mapstructure:"refresh_jwks"`

	// Timeout for outbound requests to an instance (JWKS and app token checks)
	JWKSTimeout time.Duration `mapstructure:"jwks_timeout"`

	// Minimum time between JWKS refetches for one domain
	JWKSRefreshCooldown time.Duration `mapstructure:"jwks_refresh_cooldown"`

	// Check the app token against the instance's GraphQL API before an
	// install is stored
	VerifyAppToken bool `mapstructure:"verify_app_token"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return s.Host + ":" + strconv.Itoa(s.Port)
}

// PublicURL returns the base URL without a trailing slash.
func (a *AppConfig) PublicURL() string {
	return strings.TrimRight(a.BaseURL, "/")
}
