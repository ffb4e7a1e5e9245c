// Package requests stores the replica requests devices post for content they
// have not received yet.
package requests

import (
	"context"
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

func (r *PostgresRepository) ListForUser(ctx context.Context, userID, exclude int64) (*models.Requests, error) {
	folderQuery :=
		`SELECT fr.folder_id, fr.device_id
		 FROM folder_requests fr
		 JOIN folders f ON f.id = fr.folder_id
		 WHERE f.user_id = $1 AND f.state = 'clean' AND fr.device_id <> $2
		 ORDER BY fr.folder_id, fr.device_id`

	rows, err := r.db.QueryContext(ctx, folderQuery, userID, exclude)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	folders, err := dbx.CollectRows(rows, func(s dbx.Scanner) (models.FolderRequest, error) {
		var fr models.FolderRequest
		err := s.Scan(&fr.FolderID, &fr.DeviceID)
		return fr, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	noteQuery :=
		`SELECT nr.note_id, nr.device_id
		 FROM note_requests nr
		 JOIN notes n ON n.id = nr.note_id
		 JOIN folders f ON f.id = n.folder_id
		 WHERE f.user_id = $1 AND n.state = 'clean' AND nr.device_id <> $2
		 ORDER BY nr.note_id, nr.device_id`

	rows, err = r.db.QueryContext(ctx, noteQuery, userID, exclude)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	notes, err := dbx.CollectRows(rows, func(s dbx.Scanner) (models.NoteRequest, error) {
		var nr models.NoteRequest
		err := s.Scan(&nr.NoteID, &nr.DeviceID)
		return nr, err
	})
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &models.Requests{FolderRequests: folders, NoteRequests: notes}, nil
}

func (r *PostgresRepository) CreateFolder(ctx context.Context, folderID, deviceID int64) error {
	query :=
		`INSERT INTO folder_requests (folder_id, device_id)
		 SELECT $1, $2
		 WHERE NOT EXISTS (
		     SELECT 1 FROM device_folders WHERE folder_id = $1 AND receiver_device_id = $2
		 )
		 ON CONFLICT (folder_id, device_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, folderID, deviceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CreateNote(ctx context.Context, noteID, deviceID int64) error {
	query :=
		`INSERT INTO note_requests (note_id, device_id)
		 SELECT $1, $2
		 WHERE NOT EXISTS (
		     SELECT 1 FROM device_notes WHERE note_id = $1 AND receiver_device_id = $2
		 )
		 ON CONFLICT (note_id, device_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, noteID, deviceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteFolder(ctx context.Context, folderID, deviceID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM folder_requests WHERE folder_id = $1 AND device_id = $2`, folderID, deviceID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteNote(ctx context.Context, noteID, deviceID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM note_requests WHERE note_id = $1 AND device_id = $2`, noteID, deviceID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) take(ctx context.Context, query string, args ...any) error {
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

func (r *PostgresRepository) TakeFolder(ctx context.Context, userID, folderID, deviceID int64) error {
	query :=
		`DELETE FROM folder_requests fr
		 USING folders f
		 WHERE fr.folder_id = $1 AND fr.device_id = $2
		   AND f.id = fr.folder_id AND f.user_id = $3 AND f.state = 'clean'`

	return r.take(ctx, query, folderID, deviceID, userID)
}

func (r *PostgresRepository) TakeNote(ctx context.Context, userID, noteID, deviceID int64) error {
	query :=
		`DELETE FROM note_requests nr
		 USING notes n, folders f
		 WHERE nr.note_id = $1 AND nr.device_id = $2
		   AND n.id = nr.note_id AND n.state = 'clean'
		   AND f.id = n.folder_id AND f.user_id = $3`

	return r.take(ctx, query, noteID, deviceID, userID)
}
