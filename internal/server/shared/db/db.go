// Package db opens the PostgreSQL connection pool shared by the ledger
// repositories.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Open builds a pgx pool from dsn and exposes it as *sql.DB, the handle the
// repositories and goose work with. Non-positive sizes keep pgx defaults.
// The returned close func releases both.
func Open(ctx context.Context, dsn string, maxConns, minConns int) (*sql.DB, func(), error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db config error: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	if minConns > 0 && minConns <= int(cfg.MaxConns) {
		cfg.MinConns = int32(minConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	closeFn := func() {
		_ = db.Close()
		pool.Close()
	}
	return db, closeFn, nil
}
