package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
)

type Repository interface {
	Create(ctx context.Context, a *models.Account) (int64, error)
	Get(ctx context.Context, id int64) (*models.Account, error)
	List(ctx context.Context) ([]models.Account, error)
	UpdateCredentials(ctx context.Context, id int64, c *models.Credentials) error
	Delete(ctx context.Context, id int64) error
}
