package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/plataa/triagem/internal/config"
	"github.com/plataa/triagem/internal/db"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply the schema to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := migrateUp(cmd.Context(), cfg, dir); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema applied to %s store.\n", cfg.Store)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Directory with *.sql files (default: bundled migrations)")
	cmd.AddCommand(upCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the migration files that would run",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			dialect, _ := cmd.Flags().GetString("dialect")
			names, err := db.MigrationNames(dir, dialect)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
	listCmd.Flags().String("dir", "", "Directory with *.sql files (default: bundled migrations)")
	listCmd.Flags().String("dialect", db.DialectSQLite, "sqlite or postgres")
	cmd.AddCommand(listCmd)

	return cmd
}

func migrateUp(ctx context.Context, cfg *config.Config, dir string) error {
	switch cfg.Store {
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer sqlDB.Close()
		if _, err := db.NewSQLiteStore(sqlDB, zerolog.Nop()); err != nil {
			return err
		}
		return db.RunMigrations(sqlDB, dir)
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		return db.RunPostgresMigrations(ctx, pool, dir)
	}
	return fmt.Errorf("store %q has no schema", cfg.Store)
}
