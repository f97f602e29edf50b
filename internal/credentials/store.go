// Package credentials resolves a sender domain to the authentication material
// registered for it when the app was installed.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/database"
)

// ErrNotFound is returned when no credentials exist for a domain.
var ErrNotFound = errors.New("credentials not found")

// AuthData is the material stored for one platform installation.
type AuthData struct {
	// Domain of the platform instance, as sent in the domain header
	Domain string `json:"domain" yaml:"domain"`

	// Token is the app token. It doubles as the shared secret for HMAC signatures.
	Token string `json:"token" yaml:"token"`

	// APIURL is the instance's GraphQL endpoint
	APIURL string `json:"saleorApiUrl,omitempty" yaml:"saleorApiUrl,omitempty"`

	// AppID assigned by the platform at install time
	AppID string `json:"appId,omitempty" yaml:"appId,omitempty"`

	// JWKS is the platform's public key set, used for JWS signatures
	JWKS string `json:"jwks,omitempty" yaml:"jwks,omitempty"`
}

// Store looks up credentials by sender domain.
type Store interface {
	Get(ctx context.Context, domain string) (*AuthData, error)
}

// Writer is a Store that can also be modified.
type Writer interface {
	Store
	Set(ctx context.Context, data *AuthData) error
	Delete(ctx context.Context, domain string) error
	List(ctx context.Context) ([]*AuthData, error)
}

// Open builds the store selected by cfg. db is only used by the sqlite backend.
func Open(cfg *config.CredentialsConfig, db *database.DB) (Store, error) {
	switch cfg.Backend {
	case "sqlite":
		if db == nil {
			return nil, errors.New("sqlite credentials backend requires a database")
		}
		return NewSQLStore(db), nil
	case "file":
		return NewFileStore(cfg.File.Path, cfg.File.Watch)
	case "redis":
		return NewRedisStore(cfg.Redis.URL, cfg.Redis.KeyPrefix)
	case "static":
		return NewStaticStore(cfg.Static), nil
	default:
		return nil, fmt.Errorf("unknown credentials backend: %s", cfg.Backend)
	}
}

// Close releases resources held by s, if any.
func Close(s Store) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// normalizeDomain makes lookups insensitive to case and surrounding space.
func normalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

func validate(data *AuthData) error {
	if data == nil || normalizeDomain(data.Domain) == "" {
		return errors.New("domain is required")
	}
	if data.Token == "" && data.JWKS == "" {
		return errors.New("token or jwks is required")
	}
	return nil
}
