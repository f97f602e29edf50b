package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/watzon/saleorhook/internal/config"
	"github.com/watzon/saleorhook/internal/credentials"
	"github.com/watzon/saleorhook/internal/webhooks"
)

var (
	credToken    string
	credAPIURL   string
	credAppID    string
	credJWKSFile string
	credFetch    bool
	credReveal   bool
)

var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"creds"},
	Short:   "Manage stored installation credentials",
	Long: `Inspect and edit the credentials stored for each platform instance.

These commands operate on the configured credentials backend, which must be
writable (sqlite, file or redis).

Examples:
  saleorhook credentials list
  saleorhook credentials set shop.example.com --token s3cret --fetch-jwks
  saleorhook credentials delete shop.example.com`,
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored domains",
	Args:  cobra.NoArgs,
	RunE:  runCredentialsList,
}

var credentialsGetCmd = &cobra.Command{
	Use:   "get <domain>",
	Short: "Show credentials for a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsGet,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <domain>",
	Short: "Create or replace credentials for a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsSet,
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <domain>",
	Short: "Remove credentials for a domain",
	Args:  cobra.ExactArgs(1),
	RunE:  runCredentialsDelete,
}

func init() {
	credentialsSetCmd.Flags().StringVar(&credToken, "token", "", "App token (also the HMAC secret)")
	credentialsSetCmd.Flags().StringVar(&credAPIURL, "api-url", "", "GraphQL API URL of the instance")
	credentialsSetCmd.Flags().StringVar(&credAppID, "app-id", "", "App ID assigned by the platform")
	credentialsSetCmd.Flags().StringVar(&credJWKSFile, "jwks-file", "", "Path to a JWKS document")
	credentialsSetCmd.Flags().BoolVar(&credFetch, "fetch-jwks", false, "Fetch the JWKS from the instance")

	credentialsGetCmd.Flags().BoolVar(&credReveal, "reveal", false, "Print the token in full")

	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsGetCmd)
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsDeleteCmd)
	rootCmd.AddCommand(credentialsCmd)
}

// withWriter opens the configured store and runs fn if it is writable.
func withWriter(fn func(cfg *config.Config, w credentials.Writer) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store, db)

	w, ok := store.(credentials.Writer)
	if !ok {
		return fmt.Errorf("credentials backend %q is read-only", cfg.Credentials.Backend)
	}
	return fn(cfg, w)
}

func runCredentialsList(cmd *cobra.Command, args []string) error {
	return withWriter(func(cfg *config.Config, w credentials.Writer) error {
		all, err := w.List(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(all) == 0 {
			fmt.Fprintln(out, "No credentials stored")
			return nil
		}

		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DOMAIN\tAPP ID\tHMAC\tJWKS")
		for _, a := range all {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.Domain, orDash(a.AppID), yesNo(a.Token != ""), yesNo(a.JWKS != ""))
		}
		return tw.Flush()
	})
}

func runCredentialsGet(cmd *cobra.Command, args []string) error {
	return withWriter(func(cfg *config.Config, w credentials.Writer) error {
		a, err := w.Get(cmd.Context(), args[0])
		if errors.Is(err, credentials.ErrNotFound) {
			return fmt.Errorf("no credentials for %s", args[0])
		}
		if err != nil {
			return err
		}

		token := maskToken(a.Token)
		if credReveal {
			token = a.Token
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Domain:  %s\n", a.Domain)
		fmt.Fprintf(out, "Token:   %s\n", orDash(token))
		fmt.Fprintf(out, "API URL: %s\n", orDash(a.APIURL))
		fmt.Fprintf(out, "App ID:  %s\n", orDash(a.AppID))

		if a.JWKS == "" {
			fmt.Fprintln(out, "JWKS:    -")
			return nil
		}
		keys, err := webhooks.ParseJWKS(a.JWKS)
		if err != nil {
			fmt.Fprintf(out, "JWKS:    invalid (%v)\n", err)
			return nil
		}
		fmt.Fprintf(out, "JWKS:    %d key(s)\n", len(keys))
		return nil
	})
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	if credJWKSFile != "" && credFetch {
		return errors.New("--jwks-file and --fetch-jwks are mutually exclusive")
	}

	data := &credentials.AuthData{
		Domain: args[0],
		Token:  credToken,
		APIURL: credAPIURL,
		AppID:  credAppID,
	}

	if credJWKSFile != "" {
		raw, err := os.ReadFile(credJWKSFile)
		if err != nil {
			return fmt.Errorf("reading jwks file: %w", err)
		}
		if _, err := webhooks.ParseJWKS(string(raw)); err != nil {
			return fmt.Errorf("invalid jwks file: %w", err)
		}
		data.JWKS = string(raw)
	}

	return withWriter(func(cfg *config.Config, w credentials.Writer) error {
		if credFetch {
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Webhooks.JWKSTimeout)
			defer cancel()

			jwks, err := webhooks.NewHTTPJWKSFetcher(cfg.Webhooks.JWKSTimeout).Fetch(ctx, data.Domain)
			if err != nil {
				return fmt.Errorf("fetching jwks: %w", err)
			}
			data.JWKS = jwks
		}

		if err := w.Set(cmd.Context(), data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s\n", data.Domain)
		return nil
	})
}

func runCredentialsDelete(cmd *cobra.Command, args []string) error {
	return withWriter(func(cfg *config.Config, w credentials.Writer) error {
		err := w.Delete(cmd.Context(), args[0])
		if errors.Is(err, credentials.ErrNotFound) {
			return fmt.Errorf("no credentials for %s", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted credentials for %s\n", args[0])
		return nil
	})
}

func maskToken(token string) string {
	if len(token) <= 4 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + "****"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
