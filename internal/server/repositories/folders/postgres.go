// Package folders stores folders and their per-device name replicas.
package folders

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

const selectView = `SELECT f.id, f.state, df.sender_device_id, df.name
		 FROM folders f
		 LEFT JOIN device_folders df ON df.folder_id = f.id AND df.receiver_device_id = $2
		 WHERE f.user_id = $1`

func scanView(s dbx.Scanner) (models.FolderView, error) {
	var v models.FolderView
	var sender sql.NullInt64
	var name sql.NullString
	if err := s.Scan(&v.ID, &v.State, &sender, &name); err != nil {
		return v, err
	}
	if sender.Valid {
		v.DeviceFolder = &models.DeviceFolder{SenderDeviceID: sender.Int64, Name: name.String}
	}
	return v, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID, receiverID int64) ([]models.FolderView, error) {
	rows, err := r.db.QueryContext(ctx, selectView+` ORDER BY f.id`, userID, receiverID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	list, err := dbx.CollectRows(rows, scanView)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, folderID, receiverID int64) (*models.FolderView, error) {
	v, err := scanView(r.db.QueryRowContext(ctx, selectView+` AND f.id = $3`, userID, receiverID, folderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &v, nil
}

func (r *PostgresRepository) GetClean(ctx context.Context, userID, folderID int64) (*models.Folder, error) {
	query :=
		`SELECT id, user_id, state, created_at FROM folders
		 WHERE id = $1 AND user_id = $2 AND state = 'clean'
		 FOR UPDATE`

	f := &models.Folder{}
	err := r.db.QueryRowContext(ctx, query, folderID, userID).Scan(&f.ID, &f.UserID, &f.State, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

func (r *PostgresRepository) Create(ctx context.Context, userID int64) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `INSERT INTO folders (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *PostgresRepository) MarkDeleted(ctx context.Context, userID, folderID int64) error {
	query :=
		`UPDATE folders SET state = 'deleted'
		 WHERE id = $1 AND user_id = $2 AND state = 'clean'`

	res, err := r.db.ExecContext(ctx, query, folderID, userID)
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

func (r *PostgresRepository) UpsertReplicas(ctx context.Context, folderID, senderID int64, items []models.FolderContent) error {
	query :=
		`INSERT INTO device_folders (folder_id, receiver_device_id, sender_device_id, name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (folder_id, receiver_device_id)
		 DO UPDATE SET sender_device_id = EXCLUDED.sender_device_id, name = EXCLUDED.name`

	for _, it := range items {
		if _, err := r.db.ExecContext(ctx, query, folderID, it.DeviceID, senderID, it.Name); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) InsertReplica(ctx context.Context, folderID, senderID int64, item models.FolderContent) error {
	query :=
		`INSERT INTO device_folders (folder_id, receiver_device_id, sender_device_id, name)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (folder_id, receiver_device_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, folderID, item.DeviceID, senderID, item.Name); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteReplicas(ctx context.Context, folderID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_folders WHERE folder_id = $1`, folderID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
