package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, email string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	UpsertPending(ctx context.Context, email, code string, now time.Time) error
	GetPending(ctx context.Context, email string) (*models.PendingUser, error)
	DeletePending(ctx context.Context, email string) error
}
