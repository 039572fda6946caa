package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"example.com/exercisetracker/internal/config"
	"example.com/exercisetracker/internal/persistence/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long:  `Apply the embedded schema migrations to the database named by POSTGRES_URL.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		if cfg.StoreDriver != config.DriverPostgres {
			return errors.New("migrate requires STORE_DRIVER=postgres")
		}
		if err := postgres.Migrate(cmd.Context(), cfg.PostgresURL, logger); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
