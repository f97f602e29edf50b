package webhooks

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry is the ordered set of webhooks served by the process. Endpoints
// are added during start-up; lookups afterwards only read.
type Registry struct {
	mu        sync.RWMutex
	endpoints []Endpoint
	byName    map[string]Endpoint
	byPath    map[string]Endpoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Endpoint),
		byPath: make(map[string]Endpoint),
	}
}

// Add registers e. Names and paths must be unique.
func (r *Registry) Add(e Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[e.Name()]; exists {
		return &ConfigurationError{Webhook: e.Name(), Reason: "duplicate webhook name"}
	}
	if other, exists := r.byPath[e.Path()]; exists {
		return &ConfigurationError{Webhook: e.Name(), Reason: "path " + e.Path() + " already used by " + other.Name()}
	}

	r.endpoints = append(r.endpoints, e)
	r.byName[e.Name()] = e
	r.byPath[e.Path()] = e
	return nil
}

// Endpoints returns the registered webhooks in insertion order.
func (r *Registry) Endpoints() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Endpoint, len(r.endpoints))
	copy(out, r.endpoints)
	return out
}

// Get returns the webhook registered under name.
func (r *Registry) Get(name string) (Endpoint, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byName[name]
	return e, ok
}

// RegisterRoutes mounts every webhook as "POST <path>". Other methods on the
// same path get 405 from the mux.
func (r *Registry) RegisterRoutes(mux *http.ServeMux) {
	for _, e := range r.Endpoints() {
		pattern := http.MethodPost + " " + e.Path()
		log.Debug().
			Str("pattern", pattern).
			Str("webhook", e.Name()).
			Str("event", string(e.EventType())).
			Msg("Registering webhook route")
		mux.Handle(pattern, e)
	}
}

// Manifest returns one entry per webhook with target URLs under baseURL.
func (r *Registry) Manifest(baseURL string) []ManifestEntry {
	endpoints := r.Endpoints()
	entries := make([]ManifestEntry, 0, len(endpoints))
	for _, e := range endpoints {
		entries = append(entries, e.Manifest(baseURL))
	}
	return entries
}
