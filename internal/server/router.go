package server

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/metrics"
	"github.com/watzon/saleorhook/internal/server/handlers"
	"github.com/watzon/saleorhook/internal/server/requestlog"
	"github.com/watzon/saleorhook/internal/webhooks"
)

type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
	handler     http.Handler
}

type Middleware func(http.Handler) http.Handler

func NewRouter(srv *Server) (*Router, error) {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	if err := r.setupRoutes(); err != nil {
		return nil, err
	}

	handler := http.Handler(r.mux)
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}
	r.handler = handler

	return r, nil
}

func (r *Router) setupMiddleware() {
	cfg := r.server.cfg

	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(r.server.settings.DomainHeader, r.server.settings.EventHeader))

	if cfg.Server.Metrics {
		r.Use(MetricsMiddleware)
	}

	if r.server.deliveries != nil {
		paths := make(map[string]bool)
		for _, e := range r.server.registry.Endpoints() {
			paths[e.Path()] = true
		}
		r.Use(requestlog.Middleware(
			r.server.deliveries,
			r.server.settings.DomainHeader,
			r.server.settings.EventHeader,
			func(path string) bool { return paths[path] },
		))
	}
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() error {
	cfg := r.server.cfg

	health := handlers.NewHealthHandlers(r.server.db, r.server.store, r.server.version)
	r.mux.HandleFunc("GET /health", health.Liveness)
	r.mux.HandleFunc("GET /health/ready", health.Readiness)

	if cfg.Server.Metrics {
		r.mux.Handle("GET /metrics", metrics.Handler())
	}

	r.mux.HandleFunc("GET /api/manifest", webhooks.ManifestHandler(&cfg.App, r.server.registry))

	if writer, ok := r.server.store.(credentials.Writer); ok {
		register, err := webhooks.NewRegisterHandler(writer, r.server.settings)
		if err != nil {
			return err
		}
		var h http.Handler = register
		if rule := cfg.Server.RegisterRateLimit; rule.Max > 0 {
			r.server.limiter = NewRateLimiter(rule)
			h = r.server.limiter.Middleware(h)
		}
		r.mux.Handle("POST "+webhooks.RegisterPath, h)
	} else {
		log.Warn().Msg("Credential store is read-only, app installation endpoint disabled")
	}

	if r.server.deliveries != nil {
		deliveries := handlers.NewDeliveryHandlers(r.server.deliveries)
		r.mux.HandleFunc("GET /api/deliveries", deliveries.List)
	}

	r.server.registry.RegisterRoutes(r.mux)
	return nil
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}
