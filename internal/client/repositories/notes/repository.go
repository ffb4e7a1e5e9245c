package notes

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
)

type Repository interface {
	// ListByFolder returns every note of the folder, Deleted ones included.
	ListByFolder(ctx context.Context, folderID int64) ([]models.Note, error)
	Get(ctx context.Context, id int64) (*models.Note, error)
	GetByRemoteID(ctx context.Context, folderID, remoteID int64) (*models.Note, error)
	// FindByRemoteID looks a note up across all folders of an account.
	FindByRemoteID(ctx context.Context, accountID, remoteID int64) (*models.Note, error)
	Create(ctx context.Context, n *models.Note) (int64, error)

	// Edit replaces the content, marks the note Modified and bumps its revision.
	Edit(ctx context.Context, id int64, title *string, text string) error
	// MarkDeleted marks the note Deleted and bumps its revision.
	MarkDeleted(ctx context.Context, id int64) error

	// ApplyRemote stores pulled content only when commit is newer than the
	// local one and the note was not edited since revision was read. It
	// reports whether the row was written.
	ApplyRemote(ctx context.Context, id int64, title *string, text string, commit, revision int64) (bool, error)
	// MarkPushed records a successful push. The note becomes Clean only when
	// no edit happened after revision was read.
	MarkPushed(ctx context.Context, id, remoteID, commit, revision int64) error

	Delete(ctx context.Context, id int64) error
	// DeleteByRemoteID is a no-op when no such note exists.
	DeleteByRemoteID(ctx context.Context, folderID, remoteID int64) error
}
