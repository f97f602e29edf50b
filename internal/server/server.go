package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/database"
	"github.com/watzon/saleorhook/internal/server/requestlog"
	"github.com/watzon/saleorhook/internal/webhooks"
)

type Server struct {
	cfg        *config.Config
	db         *database.DB
	store      credentials.Store
	registry   *webhooks.Registry
	settings   webhooks.Settings
	deliveries *requestlog.Store
	limiter    *RateLimiter
	version    string
	httpServer *http.Server
	router     *Router
}

type Option func(*Server)

// WithDatabase exposes db to the readiness check.
func WithDatabase(db *database.DB) Option {
	return func(s *Server) {
		s.db = db
	}
}

func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithSettings overrides the pipeline settings derived from cfg. The register
// endpoint uses them.
func WithSettings(settings webhooks.Settings) Option {
	return func(s *Server) {
		s.settings = settings
	}
}

// New builds the HTTP server for reg. store backs the register endpoint when
// it is writable.
func New(cfg *config.Config, reg *webhooks.Registry, store credentials.Store, opts ...Option) (*Server, error) {
	srv := &Server{
		cfg:      cfg,
		store:    store,
		registry: reg,
		settings: webhooks.NewSettings(cfg),
		version:  "dev",
	}

	for _, opt := range opts {
		opt(srv)
	}

	if cfg.Server.DeliveryLog > 0 {
		srv.deliveries = requestlog.NewStore(cfg.Server.DeliveryLog)
	}

	router, err := NewRouter(srv)
	if err != nil {
		return nil, err
	}
	srv.router = router

	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv, nil
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln and blocks until Shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	log.Info().
		Str("addr", ln.Addr().String()).
		Int("webhooks", len(s.registry.Endpoints())).
		Msg("Starting server")

	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")
	err := s.httpServer.Shutdown(ctx)
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return err
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Config() *config.Config {
	return s.cfg
}

func (s *Server) Registry() *webhooks.Registry {
	return s.registry
}

// Deliveries returns the delivery log, or nil when disabled.
func (s *Server) Deliveries() *requestlog.Store {
	return s.deliveries
}
