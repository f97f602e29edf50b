package webhooks

import (
	"errors"
	"fmt"
	"net/http"
)

// Per-request failures. The pipeline wraps these with detail for logs; the
// response only ever carries the status code from StatusCode.
var (
	ErrMissingSender     = errors.New("missing sender domain")
	ErrUnknownSender     = errors.New("unknown sender domain")
	ErrAuthentication    = errors.New("signature verification failed")
	ErrEventTypeMismatch = errors.New("event type mismatch")
	ErrPayloadDecode     = errors.New("payload decode failed")
	ErrHandler           = errors.New("handler failed")
	ErrCredentialLookup  = errors.New("credential lookup failed")
	ErrBodyRead          = errors.New("reading request body failed")
	ErrBodyTooLarge      = errors.New("request body too large")
)

// ConfigurationError reports an invalid webhook registration. It is returned
// at start-up only.
type ConfigurationError struct {
	Webhook string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if e.Webhook == "" {
		return "webhook configuration: " + e.Reason
	}
	return fmt.Sprintf("webhook %q configuration: %s", e.Webhook, e.Reason)
}

// StatusCode maps a pipeline error to the response status. Sender and
// signature failures share 401 and are indistinguishable to the caller.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingSender),
		errors.Is(err, ErrUnknownSender),
		errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrEventTypeMismatch),
		errors.Is(err, ErrPayloadDecode),
		errors.Is(err, ErrBodyRead):
		return http.StatusBadRequest
	case errors.Is(err, ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// outcome is the metrics label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrMissingSender):
		return "missing_sender"
	case errors.Is(err, ErrUnknownSender):
		return "unknown_sender"
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrEventTypeMismatch):
		return "event_mismatch"
	case errors.Is(err, ErrPayloadDecode):
		return "decode"
	case errors.Is(err, ErrBodyRead), errors.Is(err, ErrBodyTooLarge):
		return "body"
	case errors.Is(err, ErrCredentialLookup):
		return "credential_lookup"
	default:
		return "handler"
	}
}
