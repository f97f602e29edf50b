package webhooks

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/subscription"
)

// RegisterPath is where the platform posts the app token on installation.
const RegisterPath = "/api/register"

// ManifestEntry declares one webhook to the platform.
type ManifestEntry struct {
	Name        string                   `json:"name" yaml:"name"`
	AsyncEvents []subscription.EventType `json:"asyncEvents" yaml:"asyncEvents"`
	Query       string                   `json:"query" yaml:"query"`
	TargetURL   string                   `json:"targetUrl" yaml:"targetUrl"`
	IsActive    bool                     `json:"isActive" yaml:"isActive"`
}

// AppManifest is the document the platform reads when installing the app.
type AppManifest struct {
	ID             string          `json:"id" yaml:"id"`
	Name           string          `json:"name" yaml:"name"`
	Version        string          `json:"version" yaml:"version"`
	About          string          `json:"about,omitempty" yaml:"about,omitempty"`
	Author         string          `json:"author,omitempty" yaml:"author,omitempty"`
	AppURL         string          `json:"appUrl" yaml:"appUrl"`
	TokenTargetURL string          `json:"tokenTargetUrl" yaml:"tokenTargetUrl"`
	Permissions    []string        `json:"permissions" yaml:"permissions"`
	Webhooks       []ManifestEntry `json:"webhooks" yaml:"webhooks"`
}

// NewAppManifest assembles the manifest from app settings and the registry.
func NewAppManifest(app *config.AppConfig, reg *Registry) AppManifest {
	base := app.PublicURL()

	permissions := app.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	return AppManifest{
		ID:             app.ID,
		Name:           app.Name,
		Version:        app.Version,
		About:          app.About,
		Author:         app.Author,
		AppURL:         base,
		TokenTargetURL: base + RegisterPath,
		Permissions:    permissions,
		Webhooks:       reg.Manifest(base),
	}
}

// ManifestHandler serves the app manifest as JSON.
func ManifestHandler(app *config.AppConfig, reg *Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(NewAppManifest(app, reg)); err != nil {
			log.Error().Err(err).Msg("Failed to encode app manifest")
		}
	}
}
