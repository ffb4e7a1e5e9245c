package devices

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
)

type Repository interface {
	List(ctx context.Context, accountID int64) ([]models.Device, error)
	// Replace swaps the account's roster for list.
	Replace(ctx context.Context, accountID int64, list []models.Device) error
}
