package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/webhooks"
)

var (
	manifestFormat  string
	manifestBaseURL string
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Print the app manifest",
	Long: `Print the manifest the platform reads when installing the app.

Webhook target URLs are built from app.base_url unless --base-url is given.

Examples:
  saleorhook manifest
  saleorhook manifest --format yaml --base-url https://hooks.example.com`,
	Args: cobra.NoArgs,
	RunE: runManifest,
}

func init() {
	manifestCmd.Flags().StringVarP(&manifestFormat, "format", "f", "json", "Output format (json, yaml)")
	manifestCmd.Flags().StringVar(&manifestBaseURL, "base-url", "", "Public base URL of the app")

	rootCmd.AddCommand(manifestCmd)
}

func runManifest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if manifestBaseURL != "" {
		cfg.App.BaseURL = manifestBaseURL
	}

	// The manifest only needs registration metadata, never credentials.
	reg, err := buildRegistry(cfg, credentials.NewStaticStore(nil))
	if err != nil {
		return err
	}

	m := webhooks.NewAppManifest(&cfg.App, reg)
	out := cmd.OutOrStdout()

	switch manifestFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	case "yaml", "yml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q (use json or yaml)", manifestFormat)
	}
}
