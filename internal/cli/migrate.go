package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-time-archive/internal/app"
	"go-time-archive/internal/config"
	"go-time-archive/internal/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := setupLogger(cfg)

			db, err := database.New(cmd.Context(), app.DatabaseOptions(cfg), log)
			if err != nil {
				return fmt.Errorf("connect to database: %w", err)
			}
			defer db.Close()

			if err := db.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}

			log.Info("database schema is up to date")
			return nil
		},
	}
}
