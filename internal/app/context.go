package app

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"enviroplan/internal/config"
	"enviroplan/internal/db"
	"enviroplan/internal/engine"
	"enviroplan/internal/migrate"
)

// Bootstrap opens the workspace database, applies migrations, loads
// config (seeding a default enviroplan.yml when missing), and seeds
// the default catalog on first run.
func Bootstrap(ctx context.Context, workspace string, logger *zap.Logger) (*sql.DB, *config.Config, engine.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, nil, engine.Engine{}, err
	}
	if cfg == nil {
		cfg = config.Default("main")
		logger.Info("no enviroplan.yml found, using default config", zap.String("workspace", workspace))
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, nil, engine.Engine{}, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, engine.Engine{}, fmt.Errorf("migrate: %w", err)
	}
	eng := engine.New(conn, cfg, logger)
	if err := eng.SeedCatalog(ctx); err != nil {
		conn.Close()
		return nil, nil, engine.Engine{}, fmt.Errorf("seed catalog: %w", err)
	}
	return conn, cfg, eng, nil
}
