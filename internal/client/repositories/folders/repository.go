package folders

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
)

type Repository interface {
	// List returns every folder of the account, Deleted ones included.
	List(ctx context.Context, accountID int64) ([]models.Folder, error)
	Get(ctx context.Context, id int64) (*models.Folder, error)
	GetByRemoteID(ctx context.Context, accountID, remoteID int64) (*models.Folder, error)
	Create(ctx context.Context, f *models.Folder) (int64, error)
	// SetRemoteID links a folder created remotely and marks it Clean.
	SetRemoteID(ctx context.Context, id, remoteID int64) error
	MarkDeleted(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	// DeleteByRemoteID is a no-op when no such folder exists.
	DeleteByRemoteID(ctx context.Context, accountID, remoteID int64) error
}
