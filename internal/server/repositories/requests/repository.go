package requests

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	// ListForUser returns the pending requests of the user's devices other
	// than exclude.
	ListForUser(ctx context.Context, userID, exclude int64) (*models.Requests, error)
	// CreateFolder and CreateNote are no-ops when the request already exists
	// or the device already holds a replica.
	CreateFolder(ctx context.Context, folderID, deviceID int64) error
	CreateNote(ctx context.Context, noteID, deviceID int64) error
	DeleteFolder(ctx context.Context, folderID, deviceID int64) error
	DeleteNote(ctx context.Context, noteID, deviceID int64) error

	// TakeFolder and TakeNote remove a pending request on a Clean resource
	// owned by userID, common.ErrNotFound when there is none.
	TakeFolder(ctx context.Context, userID, folderID, deviceID int64) error
	TakeNote(ctx context.Context, userID, noteID, deviceID int64) error
}
