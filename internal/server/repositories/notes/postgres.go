// Package notes stores notes, their commit counters and per-device content
// replicas.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, folderID, commit int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO notes (folder_id, commit_no) VALUES ($1, $2) RETURNING id`, folderID, commit).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, noteID, receiverID int64) (*models.NoteView, error) {
	query :=
		`SELECT n.id, n.folder_id, n.commit_no, n.state, dn.sender_device_id, dn.title, dn.text
		 FROM notes n
		 JOIN folders f ON f.id = n.folder_id
		 LEFT JOIN device_notes dn ON dn.note_id = n.id AND dn.receiver_device_id = $3
		 WHERE n.id = $1 AND f.user_id = $2`

	v := &models.NoteView{}
	var (
		sender sql.NullInt64
		title  sql.NullString
		text   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, query, noteID, userID, receiverID).
		Scan(&v.ID, &v.FolderID, &v.Commit, &v.State, &sender, &title, &text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if sender.Valid {
		dn := &models.DeviceNote{SenderDeviceID: sender.Int64, Text: text.String}
		if title.Valid {
			dn.Title = &title.String
		}
		v.DeviceNote = dn
	}
	return v, nil
}

func (r *PostgresRepository) GetClean(ctx context.Context, userID, noteID int64) (*models.Note, error) {
	query :=
		`SELECT n.id, n.folder_id, n.commit_no, n.state, n.created_at, n.updated_at
		 FROM notes n
		 JOIN folders f ON f.id = n.folder_id
		 WHERE n.id = $1 AND f.user_id = $2 AND n.state = 'clean' AND f.state = 'clean'`

	n := &models.Note{}
	err := r.db.QueryRowContext(ctx, query, noteID, userID).
		Scan(&n.ID, &n.FolderID, &n.Commit, &n.State, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) BumpCommit(ctx context.Context, noteID, expected int64) (int64, error) {
	query :=
		`UPDATE notes SET commit_no = commit_no + 1, updated_at = now()
		 WHERE id = $1 AND commit_no = $2 AND state = 'clean'
		 RETURNING commit_no`

	var commit int64
	err := r.db.QueryRowContext(ctx, query, noteID, expected).Scan(&commit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrCommitMismatch
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return commit, nil
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, userID, noteID int64) error {
	query :=
		`UPDATE notes n SET state = 'deleted', updated_at = now()
		 FROM folders f
		 WHERE n.id = $1 AND f.id = n.folder_id AND f.user_id = $2 AND n.state = 'clean'`

	res, err := r.db.ExecContext(ctx, query, noteID, userID)
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

func (r *PostgresRepository) DeleteByFolder(ctx context.Context, folderID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE folder_id = $1`, folderID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Commits(ctx context.Context, userID, folderID int64) ([]models.Commit, error) {
	query :=
		`SELECT n.id, n.commit_no, n.state
		 FROM notes n
		 JOIN folders f ON f.id = n.folder_id
		 WHERE n.folder_id = $1 AND f.user_id = $2
		 ORDER BY n.id DESC`

	rows, err := r.db.QueryContext(ctx, query, folderID, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	list, err := dbx.CollectRows(rows, func(s dbx.Scanner) (models.Commit, error) {
		var c models.Commit
		err := s.Scan(&c.NoteID, &c.Commit, &c.State)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func nullTitle(t *string) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *t, Valid: true}
}

func (r *PostgresRepository) UpsertReplicas(ctx context.Context, noteID, senderID int64, items []models.NoteContent) error {
	query :=
		`INSERT INTO device_notes (note_id, receiver_device_id, sender_device_id, title, text)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (note_id, receiver_device_id)
		 DO UPDATE SET sender_device_id = EXCLUDED.sender_device_id, title = EXCLUDED.title, text = EXCLUDED.text`

	for _, it := range items {
		if _, err := r.db.ExecContext(ctx, query, noteID, it.DeviceID, senderID, nullTitle(it.Title), it.Text); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) InsertReplica(ctx context.Context, noteID, senderID int64, item models.NoteContent) error {
	query :=
		`INSERT INTO device_notes (note_id, receiver_device_id, sender_device_id, title, text)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (note_id, receiver_device_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, noteID, item.DeviceID, senderID, nullTitle(item.Title), item.Text); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteReplica(ctx context.Context, noteID, receiverID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM device_notes WHERE note_id = $1 AND receiver_device_id = $2`, noteID, receiverID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteReplicas(ctx context.Context, noteID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_notes WHERE note_id = $1`, noteID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
