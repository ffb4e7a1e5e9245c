// Package store is the device's durable local cache: a single SQLite file
// holding accounts, the folder and note copies with their replication state,
// the device roster and bookkeeping metadata.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophnotes/internal/client/migrations"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/accounts"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/devices"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/folders"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Store owns the cache connection. The pool is capped at one connection, so
// every statement and transaction on the cache is serialized.
type Store struct {
	db *sql.DB
}

// dsn turns a file path (or ":memory:") into a modernc DSN with foreign keys
// enabled.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return "file:" + path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate local cache: %w", err)
	}
	return nil
}

// Open opens (creating when needed) the cache at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewSQLiteRepository(db)
}

func (s *Store) Folders(db dbx.DBTX) folders.Repository {
	return folders.NewSQLiteRepository(db)
}

func (s *Store) Notes(db dbx.DBTX) notes.Repository {
	return notes.NewSQLiteRepository(db)
}

func (s *Store) Devices(db dbx.DBTX) devices.Repository {
	return devices.NewSQLiteRepository(db)
}

func (s *Store) Metadata(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

// WithTx runs fn in a transaction on the cache. fn must only use tx: the
// single pooled connection is held until fn returns.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// AccountKey namespaces a metadata key under an account.
func AccountKey(accountID int64, key string) string {
	return fmt.Sprintf("account:%d:%s", accountID, key)
}

// RemoveAccount deletes an account with all its cached rows and metadata.
func (s *Store) RemoveAccount(ctx context.Context, accountID int64) error {
	return s.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.Accounts(tx).Delete(ctx, accountID); err != nil {
			return err
		}
		return s.Metadata(tx).DeletePrefix(ctx, AccountKey(accountID, ""))
	})
}
