package cli

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/stanstork/stratum-embed/internal/config"
	"github.com/stanstork/stratum-embed/internal/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply metadata schema migrations",
	Long: `Apply pending schema migrations to the metadata database.

Only the postgres store backend manages its own schema; DATABASE_URL must
point at a database with the vector extension available.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Store.Backend != config.BackendPostgres {
		return errors.Errorf("migrate requires the %s store backend, got %q", config.BackendPostgres, cfg.Store.Backend)
	}
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}

	if err := migration.RunMigrations(cfg.DatabaseURL, logger); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied.")
	return nil
}
