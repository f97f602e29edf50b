// Package cli implements the saleorhook command line.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/watzon/saleorhook/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0-dev"

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "saleorhook",
	Short: "Receive and verify Saleor webhooks",
	Long: `saleorhook is a single-binary Saleor app backend that:

  - Serves the app manifest and installation endpoint
  - Stores per-instance credentials in SQLite, a file, Redis or config
  - Verifies webhook signatures (JWS with JWKS refresh, or HMAC)
  - Decodes typed payloads and dispatches them to handlers

Start the server:
  saleorhook serve

Print the app manifest:
  saleorhook manifest --format yaml`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(nil)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./saleorhook.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// loadConfig reads configuration from --config or the default search path
// and reconfigures logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: cfgFile})
	if err != nil {
		return nil, err
	}

	setupLogging(&cfg.Logging)
	return cfg, nil
}

// setupLogging configures the global zerolog logger. A nil cfg gives console
// output at info level. --verbose always forces debug.
func setupLogging(cfg *config.LoggingConfig) {
	level := zerolog.InfoLevel
	format := config.DefaultLogFormat
	caller := false

	if cfg != nil {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level)); err == nil && cfg.Level != "" {
			level = parsed
		}
		if cfg.Format != "" {
			format = cfg.Format
		}
		caller = cfg.Caller
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	var output io.Writer = os.Stderr
	if format != "json" {
		output = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	zerolog.SetGlobalLevel(level)

	ctx := zerolog.New(output).With().Timestamp()
	if caller {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// Version returns the version string.
func Version() string {
	return fmt.Sprintf("saleorhook version %s", version)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
