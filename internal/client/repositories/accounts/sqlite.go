// Package accounts stores the accounts known to this device. Remote account
// credentials are kept as a JSON blob.
package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func encodeCredentials(c *models.Credentials) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func scanAccount(s dbx.Scanner) (models.Account, error) {
	var a models.Account
	var blob []byte
	if err := s.Scan(&a.ID, &a.Name, &a.Kind, &blob); err != nil {
		return a, err
	}
	if len(blob) > 0 {
		a.Credentials = &models.Credentials{}
		if err := json.Unmarshal(blob, a.Credentials); err != nil {
			return a, fmt.Errorf("decode credentials of account %d: %w", a.ID, err)
		}
	}
	return a, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, a *models.Account) (int64, error) {
	blob, err := encodeCredentials(a.Credentials)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO accounts (name, kind, credentials) VALUES (?, ?, ?)`, a.Name, a.Kind, blob)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, `SELECT id, name, kind, credentials FROM accounts WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &a, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind, credentials FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	list, err := dbx.CollectRows(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func (r *SQLiteRepository) UpdateCredentials(ctx context.Context, id int64, c *models.Credentials) error {
	blob, err := encodeCredentials(c)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET credentials = ? WHERE id = ?`, blob, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// Delete removes the account; folders, notes and devices go with it through
// foreign key cascades.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
