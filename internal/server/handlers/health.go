package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/database"
)

// Pinger is implemented by credential stores backed by a remote service.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandlers struct {
	db      *database.DB
	store   credentials.Store
	version string
}

// NewHealthHandlers creates health handlers. db may be nil when the credential
// store does not use the database.
func NewHealthHandlers(db *database.DB, store credentials.Store, version string) *HealthHandlers {
	return &HealthHandlers{
		db:      db,
		store:   store,
		version: version,
	}
}

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

type ComponentHealth struct {
	Status  HealthStatus `json:"status"`
	Latency string       `json:"latency,omitempty"`
	Message string       `json:"message,omitempty"`
}

type ReadinessResponse struct {
	Status     HealthStatus               `json:"status"`
	Version    string                     `json:"version"`
	Uptime     string                     `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
	Components map[string]ComponentHealth `json:"components"`
}

var startTime = time.Now()

const readinessTimeout = 2 * time.Second

// Liveness handles GET /health.
func (h *HealthHandlers) Liveness(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readiness handles GET /health/ready. It checks the backends the webhook
// pipeline needs to look up credentials.
func (h *HealthHandlers) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	components := make(map[string]ComponentHealth)
	overall := HealthStatusHealthy

	if h.db != nil {
		components["database"] = check(ctx, h.db.Ping, "database ping failed")
	}
	if p, ok := h.store.(Pinger); ok {
		components["credentials"] = check(ctx, p.Ping, "credential store ping failed")
	}

	for _, c := range components {
		if c.Status != HealthStatusHealthy {
			overall = HealthStatusUnhealthy
		}
	}

	status := http.StatusOK
	if overall != HealthStatusHealthy {
		status = http.StatusServiceUnavailable
	}

	JSON(w, status, ReadinessResponse{
		Status:     overall,
		Version:    h.version,
		Uptime:     time.Since(startTime).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	})
}

func check(ctx context.Context, ping func(context.Context) error, failure string) ComponentHealth {
	start := time.Now()
	err := ping(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  HealthStatusUnhealthy,
			Latency: latency.String(),
			Message: failure,
		}
	}
	return ComponentHealth{
		Status:  HealthStatusHealthy,
		Latency: latency.String(),
	}
}
