package folders

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	// List returns the user's folders with the replica addressed to receiver.
	List(ctx context.Context, userID, receiverID int64) ([]models.FolderView, error)
	Get(ctx context.Context, userID, folderID, receiverID int64) (*models.FolderView, error)
	// GetClean locks and returns an owned folder in Clean state.
	GetClean(ctx context.Context, userID, folderID int64) (*models.Folder, error)
	Create(ctx context.Context, userID int64) (int64, error)
	MarkDeleted(ctx context.Context, userID, folderID int64) error

	UpsertReplicas(ctx context.Context, folderID, senderID int64, items []models.FolderContent) error
	// InsertReplica keeps an existing replica untouched.
	InsertReplica(ctx context.Context, folderID, senderID int64, item models.FolderContent) error
	DeleteReplicas(ctx context.Context, folderID int64) error
}
