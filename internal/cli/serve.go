package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/saleorhook/internal/catalog"
	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/database"
	"github.com/watzon/saleorhook/internal/server"
	"github.com/watzon/saleorhook/internal/webhooks"
)

var (
	servePort int
	serveHost string
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Start the HTTP server.

The server exposes:
  - GET  /api/manifest    App manifest read by the platform on install
  - POST /api/register    Installation endpoint storing the app token
  - POST <webhook path>   One endpoint per registered webhook
  - GET  /health          Liveness probe
  - GET  /metrics         Prometheus metrics (server.metrics)`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", config.DefaultPort, "Port to listen on")
	serveCmd.Flags().StringVar(&serveHost, "host", config.DefaultHost, "Host to bind to")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store, db)

	reg, err := buildRegistry(cfg, store)
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithVersion(version)}
	if db != nil {
		opts = append(opts, server.WithDatabase(db))
	}

	srv, err := server.New(cfg, reg, store, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		log.Info().Msg("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().
		Str("addr", cfg.Server.Address()).
		Str("base_url", cfg.App.PublicURL()).
		Str("credentials", cfg.Credentials.Backend).
		Msg("Starting saleorhook")

	// In-flight deliveries keep their context during graceful shutdown.
	return srv.Start(context.WithoutCancel(ctx))
}

// openStore opens the configured credential backend. The database is opened
// only for the sqlite backend and is nil otherwise.
func openStore(cfg *config.Config) (credentials.Store, *database.DB, error) {
	var db *database.DB
	if cfg.Credentials.Backend == config.DefaultCredentialsBackend {
		var err error
		db, err = database.Open(&cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
	}

	store, err := credentials.Open(&cfg.Credentials, db)
	if err != nil {
		if db != nil {
			db.Close()
		}
		return nil, nil, fmt.Errorf("opening credential store: %w", err)
	}

	return store, db, nil
}

func closeStore(store credentials.Store, db *database.DB) {
	if err := credentials.Close(store); err != nil {
		log.Warn().Err(err).Msg("Error closing credential store")
	}
	if db != nil {
		if err := db.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing database")
		}
	}
}

// buildRegistry registers the webhook catalog against store.
func buildRegistry(cfg *config.Config, store credentials.Store) (*webhooks.Registry, error) {
	reg := webhooks.NewRegistry()
	if err := catalog.Register(reg, store, webhooks.NewSettings(cfg)); err != nil {
		return nil, fmt.Errorf("registering webhooks: %w", err)
	}
	return reg, nil
}
