package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/watzon/saleorhook/internal/database"
	"github.com/watzon/saleorhook/internal/database/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Create the SQLite database if needed and apply pending migrations.

Migrations also run automatically when the server starts with the sqlite
credentials backend.

Examples:
  saleorhook migrate
  saleorhook migrate status`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Args:  cobra.NoArgs,
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := migrations.GetApplied(cmd.Context(), db.DB)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Database %s is up to date (%d migrations applied)\n", cfg.Database.Path, len(applied))
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := migrations.GetApplied(cmd.Context(), db.DB)
	if err != nil {
		return err
	}
	available, err := migrations.Available()
	if err != nil {
		return err
	}

	appliedAt := make(map[string]string, len(applied))
	for _, m := range applied {
		appliedAt[m.ID] = m.AppliedAt.Format("2006-01-02 15:04:05")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database: %s\n\n", cfg.Database.Path)
	for _, id := range available {
		if at, ok := appliedAt[id]; ok {
			fmt.Fprintf(out, "  [x] %s (applied %s)\n", id, at)
		} else {
			fmt.Fprintf(out, "  [ ] %s\n", id)
		}
	}

	return nil
}
