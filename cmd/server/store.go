package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/plataa/triagem/internal/api"
	"github.com/plataa/triagem/internal/config"
	"github.com/plataa/triagem/internal/db"
)

// openStore connects the configured backend and applies the bundled
// migrations before handing it out.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (api.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn().Msg("memory store: data is lost on restart")
		return api.NewMemoryStore(), nil
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store, err := db.NewSQLiteStore(sqlDB, logger)
		if err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		if err := db.RunMigrations(sqlDB, ""); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("sqlite store ready")
		return store, nil
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		if err := db.RunPostgresMigrations(ctx, pool, ""); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		store, err := db.NewPostgresStore(pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Msg("connected to database")
		return store, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}
