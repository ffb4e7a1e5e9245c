// Package notes stores the local copy of notes together with their commit
// and replication state.
package notes

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

const selectNote = `SELECT id, folder_id, remote_id, title, text, commit_no, state, revision FROM notes`

func scanNote(s dbx.Scanner) (models.Note, error) {
	var n models.Note
	var remote sql.NullInt64
	var title sql.NullString
	if err := s.Scan(&n.ID, &n.FolderID, &remote, &title, &n.Text, &n.Commit, &n.State, &n.Revision); err != nil {
		return n, err
	}
	if remote.Valid {
		n.RemoteID = &remote.Int64
	}
	if title.Valid {
		n.Title = &title.String
	}
	return n, nil
}

func (r *SQLiteRepository) ListByFolder(ctx context.Context, folderID int64) ([]models.Note, error) {
	rows, err := r.db.QueryContext(ctx, selectNote+` WHERE folder_id = ? ORDER BY id`, folderID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	list, err := dbx.CollectRows(rows, scanNote)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func (r *SQLiteRepository) get(ctx context.Context, where string, args ...any) (*models.Note, error) {
	n, err := scanNote(r.db.QueryRowContext(ctx, selectNote+` WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &n, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*models.Note, error) {
	return r.get(ctx, `id = ?`, id)
}

func (r *SQLiteRepository) GetByRemoteID(ctx context.Context, folderID, remoteID int64) (*models.Note, error) {
	return r.get(ctx, `folder_id = ? AND remote_id = ?`, folderID, remoteID)
}

func (r *SQLiteRepository) FindByRemoteID(ctx context.Context, accountID, remoteID int64) (*models.Note, error) {
	return r.get(ctx, `remote_id = ? AND folder_id IN (SELECT id FROM folders WHERE account_id = ?)`, remoteID, accountID)
}

func (r *SQLiteRepository) Create(ctx context.Context, n *models.Note) (int64, error) {
	state := n.State
	if state == "" {
		state = models.StateModified
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (folder_id, remote_id, title, text, commit_no, state) VALUES (?, ?, ?, ?, ?, ?)`,
		n.FolderID, n.RemoteID, n.Title, n.Text, n.Commit, state)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.LastInsertId()
}

func (r *SQLiteRepository) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) execOne(ctx context.Context, query string, args ...any) error {
	n, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Edit(ctx context.Context, id int64, title *string, text string) error {
	query :=
		`UPDATE notes SET title = ?, text = ?, state = 'modified', revision = revision + 1
		 WHERE id = ? AND state <> 'deleted'`
	return r.execOne(ctx, query, title, text, id)
}

func (r *SQLiteRepository) MarkDeleted(ctx context.Context, id int64) error {
	return r.execOne(ctx, `UPDATE notes SET state = 'deleted', revision = revision + 1 WHERE id = ?`, id)
}

func (r *SQLiteRepository) ApplyRemote(ctx context.Context, id int64, title *string, text string, commit, revision int64) (bool, error) {
	query :=
		`UPDATE notes SET title = ?, text = ?, commit_no = ?, state = 'clean'
		 WHERE id = ? AND commit_no < ? AND revision = ?`
	n, err := r.exec(ctx, query, title, text, commit, id, commit, revision)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *SQLiteRepository) MarkPushed(ctx context.Context, id, remoteID, commit, revision int64) error {
	query :=
		`UPDATE notes SET remote_id = ?, commit_no = ?,
		   state = CASE WHEN revision = ? AND state = 'modified' THEN 'clean' ELSE state END
		 WHERE id = ?`
	return r.execOne(ctx, query, remoteID, commit, revision, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	return r.execOne(ctx, `DELETE FROM notes WHERE id = ?`, id)
}

func (r *SQLiteRepository) DeleteByRemoteID(ctx context.Context, folderID, remoteID int64) error {
	_, err := r.exec(ctx, `DELETE FROM notes WHERE folder_id = ? AND remote_id = ?`, folderID, remoteID)
	return err
}
