// Package devices caches the roster of an account's other devices, as last
// fetched from the server.
package devices

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) List(ctx context.Context, accountID int64) ([]models.Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, account_id, pubkey FROM devices WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	list, err := dbx.CollectRows(rows, func(s dbx.Scanner) (models.Device, error) {
		var d models.Device
		err := s.Scan(&d.ID, &d.AccountID, &d.Pubkey)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

// Replace should run inside a transaction so readers never observe an empty
// roster.
func (r *SQLiteRepository) Replace(ctx context.Context, accountID int64, list []models.Device) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM devices WHERE account_id = ?`, accountID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	for _, d := range list {
		_, err := r.db.ExecContext(ctx, `INSERT INTO devices (id, account_id, pubkey) VALUES (?, ?, ?)`, d.ID, accountID, d.Pubkey)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}
