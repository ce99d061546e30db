package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/civicdesk/backend/internal/config"
	"github.com/civicdesk/backend/internal/database"
	"github.com/civicdesk/backend/internal/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "civicdesk",
		Short: "Civic Desk complaint management backend",
		Long: `Civic Desk accepts citizen complaints, routes them to departments,
tracks their lifecycle and notifies the people involved.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	addServeFlags(rootCmd)

	rootCmd.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := logger.Init(&cfg.Logger)

			db, err := database.Connect(&cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default departments and the first administrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger.Init(&cfg.Logger)

			db, err := database.Connect(&cfg.Database)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			return database.Seed(db, &cfg.Seed)
		},
	}
}
