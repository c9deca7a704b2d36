package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"perfbot/internal/repository"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the PostgreSQL tables and indexes if they do not exist",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		defer log.Sync()

		if cfg.Server.StoreDriver == "memory" {
			return errors.New("migrate needs STORE_DRIVER=postgres")
		}

		repo, err := repository.NewPostgresRepository(cfg.GetPostgreSQLDSN(), 1, 1)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer repo.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}

		log.Info("Schema is up to date", "database", cfg.PostgreSQL.Database)
		return nil
	},
}
