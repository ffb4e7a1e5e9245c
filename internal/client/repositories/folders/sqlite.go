// Package folders stores the local copy of an account's folders.
package folders

import (
	"context"
	"database/sql"
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

const selectFolder = `SELECT id, account_id, remote_id, name, state FROM folders`

func scanFolder(s dbx.Scanner) (models.Folder, error) {
	var f models.Folder
	var remote sql.NullInt64
	if err := s.Scan(&f.ID, &f.AccountID, &remote, &f.Name, &f.State); err != nil {
		return f, err
	}
	if remote.Valid {
		f.RemoteID = &remote.Int64
	}
	return f, nil
}

func (r *SQLiteRepository) List(ctx context.Context, accountID int64) ([]models.Folder, error) {
	rows, err := r.db.QueryContext(ctx, selectFolder+` WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	list, err := dbx.CollectRows(rows, scanFolder)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func (r *SQLiteRepository) get(ctx context.Context, where string, args ...any) (*models.Folder, error) {
	f, err := scanFolder(r.db.QueryRowContext(ctx, selectFolder+` WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &f, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Folder, error) {
	return r.get(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) GetByRemoteID(ctx context.Context, accountID, remoteID int64) (*models.Folder, error) {
	return r.get(ctx, `account_id = ? AND remote_id = ?`, accountID, remoteID)
}

func (r *SQLiteRepository) Create(ctx context.Context, f *models.Folder) (int64, error) {
	state := f.State
	if state == "" {
		state = models.StateClean
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO folders (account_id, remote_id, name, state) VALUES (?, ?, ?, ?)`,
		f.AccountID, f.RemoteID, f.Name, state)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SetRemoteID(ctx context.Context, id, remoteID int64) error {
	return r.exec(ctx, `UPDATE folders SET remote_id = ?, state = 'clean' WHERE id = ? AND state <> 'deleted'`, remoteID, id)
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE folders SET state = 'deleted' WHERE id = ?`, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM folders WHERE id = ?`, id)
}

func (r *SQLiteRepository) DeleteByRemoteID(ctx context.Context, accountID, remoteID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE account_id = ? AND remote_id = ?`, accountID, remoteID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
