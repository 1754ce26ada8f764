package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filegate/filegate/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the metadata database.

This command applies pending migrations to the configured metadata database
(SQLite or PostgreSQL). It is required after upgrading filegate when schema
changes have been made. The server also migrates automatically at startup;
this command exists for deployments that migrate as a separate step.

Examples:
  # Run migrations with default config
  filegate migrate

  # Run migrations with custom config
  filegate migrate --config /etc/filegate/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	storeCfg := cfg.Database.StoreConfig()
	logger.Info("running database migrations", "type", string(storeCfg.Type))

	// Opening the store applies pending migrations.
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Verify the schema is usable.
	if _, err := st.ListUsers(context.Background()); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", storeCfg.Type)
	return nil
}
