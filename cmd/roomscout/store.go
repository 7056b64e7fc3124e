package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/roomscout/internal/config"
	"github.com/nao1215/roomscout/internal/database"
)

// addStoreFlags registers the flags that select the run store.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-dir", "",
		"Directory of the SQLite run store (default: XDG data dir, or $"+config.EnvDBDir+")")
	cmd.Flags().String("postgres", "",
		"Store runs in PostgreSQL at this DSN instead of SQLite (or $"+config.EnvPostgresDSN+")")
}

// applyStoreFlags copies the store flags into cfg when they were set.
func applyStoreFlags(cmd *cobra.Command, cfg *config.Config) error {
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir != "" {
		cfg.DBDir = dbDir
	}

	dsn, err := cmd.Flags().GetString("postgres")
	if err != nil {
		return err
	}
	if dsn != "" {
		cfg.PostgresDSN = dsn
	}
	return nil
}

// storeConfig builds the store part of a Config for the read-only
// commands: defaults, then the environment, then flags.
func storeConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.ApplyEnv()
	if err := applyStoreFlags(cmd, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openRunStore opens PostgreSQL when a DSN is configured, SQLite otherwise.
func openRunStore(ctx context.Context, cfg *config.Config) (*database.RunStore, error) {
	if cfg.PostgresDSN != "" {
		store, err := database.OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return store, nil
	}
	store, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}
