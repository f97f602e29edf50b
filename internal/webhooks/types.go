package webhooks

import (
	"context"
	"net/http"

	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/subscription"
)

// Context is the verified, typed event handed to a handler. It is built only
// after every check has passed and is never reused across requests.
type Context[T any] struct {
	Event     subscription.EventType
	AuthData  credentials.AuthData
	Payload   T
	BaseURL   string
	RequestID string
}

// HandlerFunc processes one verified event. A non-nil error yields a 500.
type HandlerFunc[T any] func(ctx context.Context, wc *Context[T]) error

// Settings are the pipeline options shared by every registration.
type Settings struct {
	DomainHeader    string // Header carrying the sender domain
	EventHeader     string // Header carrying the event type
	SignatureHeader string // Header carrying the signature

	// Glob patterns of accepted sender domains. Empty accepts any domain
	// that has credentials.
	AllowedDomains []string

	// Maximum request body size in bytes. Zero means the default.
	MaxBodySize int64

	// Fetches a fresh key set when a JWS signature fails. Nil disables refresh.
	JWKS JWKSFetcher

	// Checks install tokens against the instance. Nil stores unverified
	// tokens for new domains only.
	TokenVerifier AppTokenVerifier

	// Public base URL of this app, exposed to handlers and used in manifests.
	BaseURL string
}

// WebhookConfig describes one registration.
type WebhookConfig[T any] struct {
	Name        string
	Path        string
	EventType   subscription.EventType // Optional; must match Descriptor when set
	Descriptor  *subscription.Descriptor
	Credentials credentials.Store
	Handler     HandlerFunc[T]
	Disabled    bool // Announced as inactive in the manifest

	Settings
}

// Endpoint is the type-erased view of a registration used by the registry
// and the HTTP layer.
type Endpoint interface {
	http.Handler
	Name() string
	Path() string
	EventType() subscription.EventType
	Manifest(baseURL string) ManifestEntry
}

// NewSettings derives pipeline settings from configuration. A JWKS fetcher is
// attached when refresh is enabled.
func NewSettings(cfg *config.Config) Settings {
	s := Settings{
		DomainHeader:    cfg.Webhooks.DomainHeader,
		EventHeader:     cfg.Webhooks.EventHeader,
		SignatureHeader: cfg.Webhooks.SignatureHeader,
		AllowedDomains:  cfg.Webhooks.AllowedDomains,
		MaxBodySize:     cfg.Webhooks.MaxBodySize,
		BaseURL:         cfg.App.PublicURL(),
	}
	if cfg.Webhooks.RefreshJWKS {
		s.JWKS = NewCooldownFetcher(NewHTTPJWKSFetcher(cfg.Webhooks.JWKSTimeout), cfg.Webhooks.JWKSRefreshCooldown)
	}
	if cfg.Webhooks.VerifyAppToken {
		s.TokenVerifier = NewGraphQLTokenVerifier(cfg.Webhooks.JWKSTimeout)
	}
	return s
}
