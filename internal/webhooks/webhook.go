// Package webhooks receives platform webhooks: it authenticates the sender,
// binds the payload to a typed structure and dispatches it to a handler.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/metrics"
	"github.com/watzon/saleorhook/internal/requestctx"
	"github.com/watzon/saleorhook/internal/subscription"
)

// Webhook is one registered endpoint. It is immutable after NewWebhook and
// safe for concurrent use.
type Webhook[T any] struct {
	name        string
	path        string
	eventType   subscription.EventType
	descriptor  *subscription.Descriptor
	credentials credentials.Store
	handler     HandlerFunc[T]
	active      bool

	domainHeader    string
	eventHeader     string
	signatureHeader string
	allowed         domainList
	maxBodySize     int64
	jwks            JWKSFetcher
	baseURL         string
}

// NewWebhook validates cfg and returns the registration.
func NewWebhook[T any](cfg WebhookConfig[T]) (*Webhook[T], error) {
	fail := func(reason string) error {
		return &ConfigurationError{Webhook: cfg.Name, Reason: reason}
	}

	switch {
	case strings.TrimSpace(cfg.Name) == "":
		return nil, fail("name is required")
	case cfg.Path == "":
		return nil, fail("path is required")
	case !strings.HasPrefix(cfg.Path, "/"):
		return nil, fail("path must start with /")
	case cfg.Credentials == nil:
		return nil, fail("credential store is required")
	case cfg.Handler == nil:
		return nil, fail("handler is required")
	case cfg.Descriptor == nil:
		return nil, fail("subscription descriptor is required")
	case cfg.EventType != "" && cfg.EventType != cfg.Descriptor.EventType():
		return nil, fail(fmt.Sprintf("event type %s does not match descriptor event %s",
			cfg.EventType, cfg.Descriptor.EventType()))
	}

	w := &Webhook[T]{
		name:            cfg.Name,
		path:            cfg.Path,
		eventType:       cfg.Descriptor.EventType(),
		descriptor:      cfg.Descriptor,
		credentials:     cfg.Credentials,
		handler:         cfg.Handler,
		active:          !cfg.Disabled,
		domainHeader:    orDefault(cfg.DomainHeader, config.DefaultDomainHeader),
		eventHeader:     orDefault(cfg.EventHeader, config.DefaultEventHeader),
		signatureHeader: orDefault(cfg.SignatureHeader, config.DefaultSignatureHeader),
		maxBodySize:     cfg.MaxBodySize,
		jwks:            cfg.JWKS,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
	}
	if w.maxBodySize <= 0 {
		w.maxBodySize = config.DefaultMaxBodySize
	}

	allowed, err := compileDomainList(cfg.AllowedDomains)
	if err != nil {
		return nil, fail(err.Error())
	}
	w.allowed = allowed

	return w, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (w *Webhook[T]) Name() string                      { return w.name }
func (w *Webhook[T]) Path() string                      { return w.path }
func (w *Webhook[T]) EventType() subscription.EventType { return w.eventType }

// Descriptor returns the subscription the webhook was built with.
func (w *Webhook[T]) Descriptor() *subscription.Descriptor {
	return w.descriptor
}

// ServeHTTP runs the verification and dispatch pipeline for one delivery.
func (w *Webhook[T]) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestctx.RequestID(ctx)

	logger := log.With().
		Str("webhook", w.name).
		Str("request_id", requestID).
		Logger()

	err := w.process(rw, r, requestID, &logger)

	metrics.RecordWebhookDelivery(w.name, outcome(err))

	status := StatusCode(err)
	if err != nil {
		event := logger.Warn()
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		}
		event.Err(err).Int("status", status).Msg("Webhook delivery rejected")
	}

	rw.WriteHeader(status)
}

func (w *Webhook[T]) process(rw http.ResponseWriter, r *http.Request, requestID string, logger *zerolog.Logger) error {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, w.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, tooLarge.Limit)
		}
		return fmt.Errorf("%w: %v", ErrBodyRead, err)
	}

	domain := strings.TrimSpace(r.Header.Get(w.domainHeader))
	if domain == "" {
		return ErrMissingSender
	}
	*logger = logger.With().Str("domain", domain).Logger()

	if !w.allowed.allows(domain) {
		return fmt.Errorf("%w: %s is not in the allow-list", ErrUnknownSender, domain)
	}

	auth, err := w.credentials.Get(ctx, domain)
	if errors.Is(err, credentials.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrUnknownSender, domain)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialLookup, err)
	}

	// A wrong event is a 400 even when the signature is also bad. Only the
	// header is read here; the body stays unparsed until after verification.
	eventHeader := r.Header.Get(w.eventHeader)
	event, err := subscription.ParseEventType(eventHeader)
	if err != nil || event != w.eventType {
		return fmt.Errorf("%w: got %q, want %s", ErrEventTypeMismatch, eventHeader, w.eventType)
	}

	signature := r.Header.Get(w.signatureHeader)
	result := VerifySignature(auth, body, signature)
	if !result.Valid && w.jwks != nil && IsJWS(signature) {
		auth, result = w.refreshAndVerify(ctx, domain, auth, body, signature, result, logger)
	}
	if !result.Valid {
		return fmt.Errorf("%w: %s (%s)", ErrAuthentication, result.Error, result.Method)
	}

	payload, err := decodePayload[T](w.descriptor, body)
	if err != nil {
		return err
	}

	wc := &Context[T]{
		Event:     event,
		AuthData:  *auth,
		Payload:   payload,
		BaseURL:   w.baseURL,
		RequestID: requestID,
	}

	logger.Debug().Str("method", result.Method).Str("event", string(event)).Msg("Webhook verified, invoking handler")

	start := time.Now()
	err = w.handler(ctx, wc)
	metrics.ObserveHandlerDuration(w.name, time.Since(start))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHandler, err)
	}

	return nil
}

// refreshAndVerify refetches the sender's key set once and retries. A key set
// that verifies is written back when the store is writable.
func (w *Webhook[T]) refreshAndVerify(
	ctx context.Context,
	domain string,
	auth *credentials.AuthData,
	body []byte,
	signature string,
	first *VerificationResult,
	logger *zerolog.Logger,
) (*credentials.AuthData, *VerificationResult) {
	jwks, err := w.jwks.Fetch(ctx, strings.ToLower(domain))
	if errors.Is(err, ErrJWKSRefreshThrottled) {
		metrics.RecordJWKSRefresh("throttled")
		logger.Debug().Msg("JWKS refresh skipped, domain in cooldown")
		return auth, first
	}
	if err != nil {
		metrics.RecordJWKSRefresh("error")
		logger.Warn().Err(err).Msg("Failed to refresh JWKS")
		return auth, first
	}
	metrics.RecordJWKSRefresh("ok")

	fresh := *auth
	fresh.JWKS = jwks

	result := VerifySignature(&fresh, body, signature)
	if !result.Valid || jwks == auth.JWKS {
		return auth, result
	}

	if writer, ok := w.credentials.(credentials.Writer); ok {
		if err := writer.Set(ctx, &fresh); err != nil {
			logger.Warn().Err(err).Msg("Failed to persist refreshed JWKS")
		} else {
			logger.Info().Msg("Stored refreshed JWKS")
		}
	}

	return &fresh, result
}

// Manifest returns the entry announcing this webhook to the platform.
func (w *Webhook[T]) Manifest(baseURL string) ManifestEntry {
	if baseURL == "" {
		baseURL = w.baseURL
	}
	return ManifestEntry{
		Name:        w.name,
		AsyncEvents: []subscription.EventType{w.eventType},
		Query:       w.descriptor.Query(),
		TargetURL:   strings.TrimRight(baseURL, "/") + w.path,
		IsActive:    w.active,
	}
}
