package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/funil-digital/leadscore/internal/config"
	"github.com/funil-digital/leadscore/internal/store"
)

// openStore builds the configured store backend. Callers own Close.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
