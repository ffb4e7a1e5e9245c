// Package users stores accounts and the pending sign-up codes.
package users

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

func (r *PostgresRepository) Create(ctx context.Context, email string) (*models.User, error) {
	query :=
		`INSERT INTO users (email)
		 VALUES ($1)
		 RETURNING id, created_at`

	user := &models.User{Email: email}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if pgutil.IsUniqueViolation(err) {
			return nil, common.ErrEmailAlreadyUsed
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query :=
		`SELECT id, email, created_at FROM users
		 WHERE email = $1`

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&user.ID, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) UpsertPending(ctx context.Context, email, code string, now time.Time) error {
	query :=
		`INSERT INTO pending_users (email, code, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET code = EXCLUDED.code, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, email, code, now); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetPending(ctx context.Context, email string) (*models.PendingUser, error) {
	query :=
		`SELECT email, code, updated_at FROM pending_users
		 WHERE email = $1`

	p := &models.PendingUser{}
	err := r.db.QueryRowContext(ctx, query, email).Scan(&p.Email, &p.Code, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return p, nil
}

func (r *PostgresRepository) DeletePending(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM pending_users WHERE email = $1`, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
