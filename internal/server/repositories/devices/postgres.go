// Package devices stores device identities, their user links and pending
// admissions.
package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/pgutil"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanDevice(s dbx.Scanner) (models.Device, error) {
	var d models.Device
	var userID sql.NullInt64
	if err := s.Scan(&d.ID, &userID, &d.Pubkey, &d.PasswordHash, &d.CreatedAt); err != nil {
		return d, err
	}
	d.UserID = userID.Int64
	return d, nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (*models.Device, error) {
	d, err := scanDevice(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &d, nil
}

func (r *PostgresRepository) GetByPubkey(ctx context.Context, pubkey string) (*models.Device, error) {
	query :=
		`SELECT d.id, ud.user_id, d.pubkey, d.password_hash, d.created_at
		 FROM devices d
		 LEFT JOIN user_devices ud ON ud.device_id = d.id
		 WHERE d.pubkey = $1`

	return r.getOne(ctx, query, pubkey)
}

func (r *PostgresRepository) Create(ctx context.Context, pubkey string, passwordHash []byte) (*models.Device, error) {
	query :=
		`INSERT INTO devices (pubkey, password_hash)
		 VALUES ($1, $2)
		 RETURNING id, created_at`

	d := &models.Device{Pubkey: pubkey, PasswordHash: passwordHash}
	if err := r.db.QueryRowContext(ctx, query, pubkey, passwordHash).Scan(&d.ID, &d.CreatedAt); err != nil {
		if pgutil.IsUniqueViolation(err) {
			return nil, common.ErrDeviceAlreadyExists
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

func (r *PostgresRepository) Link(ctx context.Context, userID, deviceID int64) error {
	query := `INSERT INTO user_devices (user_id, device_id) VALUES ($1, $2)`

	if _, err := r.db.ExecContext(ctx, query, userID, deviceID); err != nil {
		if pgutil.IsUniqueViolation(err) {
			return common.ErrDeviceAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]models.Device, error) {
	query :=
		`SELECT d.id, ud.user_id, d.pubkey, d.password_hash, d.created_at
		 FROM devices d
		 JOIN user_devices ud ON ud.device_id = d.id
		 WHERE ud.user_id = $1
		 ORDER BY d.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	list, err := dbx.CollectRows(rows, scanDevice)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return list, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, deviceID int64) error {
	queries := []string{
		`DELETE FROM device_folders WHERE sender_device_id = $1`,
		`DELETE FROM device_notes WHERE sender_device_id = $1`,
		`DELETE FROM devices WHERE id = $1`,
	}
	for _, q := range queries {
		if _, err := r.db.ExecContext(ctx, q, deviceID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) FindForLogin(ctx context.Context, email, pubkey string) (*models.Device, error) {
	query :=
		`SELECT d.id, ud.user_id, d.pubkey, d.password_hash, d.created_at
		 FROM devices d
		 JOIN user_devices ud ON ud.device_id = d.id
		 JOIN users u ON u.id = ud.user_id
		 WHERE u.email = $1 AND d.pubkey = $2`

	return r.getOne(ctx, query, email, pubkey)
}

func (r *PostgresRepository) UpsertPending(ctx context.Context, userID, deviceID int64, now time.Time) error {
	query :=
		`INSERT INTO pending_devices (user_id, device_id, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, device_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, userID, deviceID, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPending(ctx context.Context, userID, deviceID int64) (*models.PendingDevice, error) {
	query :=
		`SELECT user_id, device_id, updated_at FROM pending_devices
		 WHERE user_id = $1 AND device_id = $2`

	p := &models.PendingDevice{}
	err := r.db.QueryRowContext(ctx, query, userID, deviceID).Scan(&p.UserID, &p.DeviceID, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) DeletePending(ctx context.Context, userID, deviceID int64) error {
	query := `DELETE FROM pending_devices WHERE user_id = $1 AND device_id = $2`

	if _, err := r.db.ExecContext(ctx, query, userID, deviceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
