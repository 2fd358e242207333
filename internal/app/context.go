package app

import (
	"context"
	"database/sql"
	"fmt"

	"demandboard/internal/config"
	"demandboard/internal/db"
	"demandboard/internal/domain"
	"demandboard/internal/engine"
	"demandboard/internal/migrate"
)

// Store bundles what the record store needs to serve requests.
type Store struct {
	Engine engine.Engine
	Config *config.Config
	conn   *sql.DB
}

func (s *Store) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Rules derives the validation rules the store enforces from the config.
func Rules(cfg *config.Config) domain.Rules {
	return domain.Rules{
		Catalog:             cfg.DomainCatalog(),
		RequireDeliveryDate: cfg.Board.RequireDeliveryDate,
	}
}

// OpenStore opens and migrates the workspace database and loads its config,
// falling back to the default config when the workspace has none.
func OpenStore(ctx context.Context, workspace string) (*Store, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{
		Engine: engine.New(conn, Rules(cfg)),
		Config: cfg,
		conn:   conn,
	}, nil
}
