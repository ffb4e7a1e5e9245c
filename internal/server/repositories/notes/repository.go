package notes

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, folderID, commit int64) (int64, error)
	// Get returns the note with the replica addressed to receiver, if any.
	Get(ctx context.Context, userID, noteID, receiverID int64) (*models.NoteView, error)
	// GetClean returns an owned note in Clean state whose folder is Clean too.
	GetClean(ctx context.Context, userID, noteID int64) (*models.Note, error)
	// BumpCommit advances the commit by one if it still equals expected.
	BumpCommit(ctx context.Context, noteID, expected int64) (int64, error)
	MarkDeleted(ctx context.Context, userID, noteID int64) error
	DeleteByFolder(ctx context.Context, folderID int64) error
	Commits(ctx context.Context, userID, folderID int64) ([]models.Commit, error)

	UpsertReplicas(ctx context.Context, noteID, senderID int64, items []models.NoteContent) error
	InsertReplica(ctx context.Context, noteID, senderID int64, item models.NoteContent) error
	DeleteReplica(ctx context.Context, noteID, receiverID int64) error
	DeleteReplicas(ctx context.Context, noteID int64) error
}
