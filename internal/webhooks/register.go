package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/credentials"
)

// APIURLHeader carries the instance's GraphQL endpoint on installation.
const APIURLHeader = "Saleor-Api-Url"

type registerRequest struct {
	AuthToken string `json:"auth_token"`
}

// RegisterHandler stores the app token the platform posts when the app is
// installed. It reuses the sender allow-list and, when a fetcher is set,
// saves the instance's key set alongside the token.
//
// With a verifier the token must be accepted by the GraphQL API at the
// Saleor-Api-Url header, whose host must be the sender domain. Without one,
// a domain that already has credentials cannot be installed again.
type RegisterHandler struct {
	store        credentials.Writer
	domainHeader string
	allowed      domainList
	jwks         JWKSFetcher
	verifier     AppTokenVerifier
}

// NewRegisterHandler validates settings and returns the handler.
func NewRegisterHandler(store credentials.Writer, s Settings) (*RegisterHandler, error) {
	if store == nil {
		return nil, &ConfigurationError{Reason: "register handler requires a writable credential store"}
	}

	allowed, err := compileDomainList(s.AllowedDomains)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	return &RegisterHandler{
		store:        store,
		domainHeader: orDefault(s.DomainHeader, config.DefaultDomainHeader),
		allowed:      allowed,
		jwks:         s.JWKS,
		verifier:     s.TokenVerifier,
	}, nil
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	domain := strings.ToLower(strings.TrimSpace(r.Header.Get(h.domainHeader)))
	if domain == "" {
		writeRegisterResult(w, http.StatusBadRequest, "missing domain header")
		return
	}

	if !h.allowed.allows(domain) {
		log.Warn().Str("domain", domain).Msg("Rejected installation from domain outside allow-list")
		writeRegisterResult(w, http.StatusForbidden, "domain not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, config.DefaultMaxBodySize))
	if err != nil {
		writeRegisterResult(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req registerRequest
	if err := json.Unmarshal(body, &req); err != nil || req.AuthToken == "" {
		writeRegisterResult(w, http.StatusBadRequest, "missing auth_token")
		return
	}

	data := &credentials.AuthData{
		Domain: domain,
		Token:  req.AuthToken,
		APIURL: strings.TrimSpace(r.Header.Get(APIURLHeader)),
	}

	if data.APIURL != "" {
		if err := matchAPIURL(domain, data.APIURL); err != nil {
			log.Warn().Err(err).Str("domain", domain).Msg("Rejected installation with foreign API URL")
			writeRegisterResult(w, http.StatusBadRequest, "api url does not match domain")
			return
		}
	}

	if status, message := h.authorize(ctx, data); status != http.StatusOK {
		writeRegisterResult(w, status, message)
		return
	}

	if h.jwks != nil {
		jwks, err := h.jwks.Fetch(ctx, domain)
		if err != nil {
			log.Warn().Err(err).Str("domain", domain).Msg("Failed to fetch JWKS during installation")
		} else {
			data.JWKS = jwks
		}
	}

	if err := h.store.Set(ctx, data); err != nil {
		log.Error().Err(err).Str("domain", domain).Msg("Failed to store app credentials")
		writeRegisterResult(w, http.StatusInternalServerError, "failed to store credentials")
		return
	}

	log.Info().
		Str("domain", domain).
		Str("api_url", data.APIURL).
		Str("app_id", data.AppID).
		Bool("verified", h.verifier != nil).
		Msg("App installed")
	writeRegisterResult(w, http.StatusOK, "")
}

// authorize decides whether data may be stored, filling in the app ID when
// the token is verified.
func (h *RegisterHandler) authorize(ctx context.Context, data *credentials.AuthData) (int, string) {
	if h.verifier != nil {
		if data.APIURL == "" {
			return http.StatusBadRequest, "missing " + APIURLHeader + " header"
		}

		appID, err := h.verifier.VerifyAppToken(ctx, data.APIURL, data.Token)
		if err != nil {
			event := log.Error()
			status, message := http.StatusBadGateway, "failed to verify app token"
			if errors.Is(err, ErrAppTokenRejected) {
				event = log.Warn()
				status, message = http.StatusForbidden, "app token rejected"
			}
			event.Err(err).Str("domain", data.Domain).Msg("App token verification failed")
			return status, message
		}
		data.AppID = appID
		return http.StatusOK, ""
	}

	_, err := h.store.Get(ctx, data.Domain)
	switch {
	case err == nil:
		log.Warn().Str("domain", data.Domain).Msg("Rejected unverified reinstall of existing domain")
		return http.StatusForbidden, "domain already installed"
	case !errors.Is(err, credentials.ErrNotFound):
		log.Error().Err(err).Str("domain", data.Domain).Msg("Failed to look up existing credentials")
		return http.StatusInternalServerError, "failed to look up credentials"
	}
	return http.StatusOK, ""
}

// matchAPIURL requires an http(s) URL whose host, with or without its port,
// is the sender domain.
func matchAPIURL(domain, apiURL string) error {
	u, err := url.Parse(apiURL)
	if err != nil {
		return fmt.Errorf("invalid api url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("api url scheme %q is not http(s)", u.Scheme)
	}

	host := strings.ToLower(u.Host)
	if host != domain && strings.ToLower(u.Hostname()) != domain {
		return fmt.Errorf("api url host %q is not %s", u.Host, domain)
	}
	return nil
}

func writeRegisterResult(w http.ResponseWriter, status int, message string) {
	resp := map[string]any{"success": status == http.StatusOK}
	if message != "" {
		resp["error"] = map[string]string{"message": message}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode register response")
	}
}
