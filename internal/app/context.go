// Package app bootstraps a workspace: config, database and engine.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"sgc/internal/config"
	"sgc/internal/db"
	"sgc/internal/engine"
	"sgc/internal/migrate"
)

type App struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Log       *logrus.Logger
}

// ResolveConfig loads sgc.yml from the workspace, falling back to the
// built-in defaults when the file does not exist.
func ResolveConfig(workspace string) (*config.Config, bool, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, false, err
	}
	if cfg == nil {
		return config.Default(), false, nil
	}
	return cfg, true, nil
}

// Open resolves the config, opens and migrates the workspace database and
// wires an engine. Logs go to logOut, or stderr when nil.
func Open(ctx context.Context, workspace string, logOut io.Writer) (*App, error) {
	cfg, found, err := ResolveConfig(workspace)
	if err != nil {
		return nil, err
	}
	logger := cfg.NewLogger(logOut)
	if !found {
		logger.WithField("path", config.Path(workspace)).Warn("config not found, using defaults")
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e, err := engine.New(conn, cfg, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &App{Workspace: workspace, Config: cfg, DB: conn, Engine: e, Log: logger}, nil
}

// Close flushes pending notifications and closes the database.
func (a *App) Close() error {
	a.Engine.Wait()
	return a.DB.Close()
}

// Init writes the default sgc.yml (kept unless force is set) and creates a
// migrated database. It returns the config path.
func Init(ctx context.Context, workspace string, force bool) (string, error) {
	path := config.Path(workspace)
	if _, err := os.Stat(path); err == nil && !force {
		if _, err := config.Load(workspace); err != nil {
			return path, err
		}
	} else {
		if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
			return path, fmt.Errorf("write config: %w", err)
		}
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return path, fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(ctx, conn); err != nil {
		return path, fmt.Errorf("migrate: %w", err)
	}
	return path, nil
}
