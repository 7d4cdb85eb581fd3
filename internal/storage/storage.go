// Package storage opens the document store selected by configuration,
// optionally fanning its writes out over Redis.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tourney/internal/config"
	"github.com/DoyleJ11/tourney/internal/database"
	"github.com/DoyleJ11/tourney/internal/docstore"
	"github.com/DoyleJ11/tourney/internal/docstore/memstore"
	"github.com/DoyleJ11/tourney/internal/docstore/pgstore"
	"github.com/DoyleJ11/tourney/internal/docstore/redisfeed"
	"github.com/DoyleJ11/tourney/internal/docstore/sqlstore"
	"github.com/DoyleJ11/tourney/internal/migrations"
)

type Backend struct {
	Store docstore.Store
	// Checks holds one entry per reachable dependency, keyed by name.
	Checks map[string]docstore.Checker

	closers []func() error
}

func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func Open(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Backend, error) {
	b := &Backend{Checks: make(map[string]docstore.Checker)}

	var feed docstore.Notifier = docstore.NewFeed()
	if cfg.RedisURL != "" {
		rdb, err := redisfeed.Open(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rf := redisfeed.New(rdb)
		feed = rf
		b.closers = append(b.closers, rdb.Close)
		b.Checks["redis"] = rf
		logger.Infow("change feed", "backend", "redis")
	}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		s := memstore.New(memstore.WithNotifier(feed))
		b.Store = s

	case config.StoreSQLite:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				b.Close()
				return nil, fmt.Errorf("creating %s: %w", dir, err)
			}
		}
		db, err := database.Open(ctx, cfg.SQLitePath)
		if err != nil {
			b.Close()
			return nil, err
		}
		if err := migrations.Run(db); err != nil {
			db.Close()
			b.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		b.Store = sqlstore.New(db, sqlstore.WithNotifier(feed))

	case config.StorePostgres:
		s, err := pgstore.Open(ctx, cfg.PostgresDSN, pgstore.WithNotifier(feed))
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Store = s

	default:
		b.Close()
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	b.closers = append(b.closers, b.Store.Close)
	if c, ok := b.Store.(docstore.Checker); ok {
		b.Checks["store"] = c
	}
	logger.Infow("document store ready", "driver", cfg.StoreDriver)
	return b, nil
}
