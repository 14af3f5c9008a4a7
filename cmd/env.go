package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sitescore/internal/engine"
	"github.com/sells-group/sitescore/internal/refdata"
	"github.com/sells-group/sitescore/internal/store"
)

// buildEngine loads all reference data and wires the engine. Any load
// failure aborts before evaluation starts.
func buildEngine() (*engine.Engine, error) {
	refs, err := refdata.Load(cfg.Data)
	if err != nil {
		return nil, err
	}

	opts := engine.Options{
		Rules:      cfg.Competition,
		Thresholds: cfg.Ranking.Thresholds,
		Floors:     cfg.Ranking.Floors,
		TierPct:    cfg.Engine.TierPct,
	}
	return engine.New(refs, opts)
}

// openStore opens the configured persistence backend and runs migrations.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
