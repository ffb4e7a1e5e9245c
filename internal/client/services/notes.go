package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/store"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

// NoteService edits the local cache. Changes to Remote accounts are only
// marked (Modified or Deleted) and left to the syncer; rows of LocalOnly
// accounts are removed right away.
type NoteService interface {
	CreateFolder(ctx context.Context, accountID int64, name string) (int64, error)
	DeleteFolder(ctx context.Context, folderID int64) error
	CreateNote(ctx context.Context, folderID int64, title *string, text string) (int64, error)
	EditNote(ctx context.Context, noteID int64, title *string, text string) error
	DeleteNote(ctx context.Context, noteID int64) error
	Note(ctx context.Context, noteID int64) (*models.Note, error)
}

type noteService struct {
	store  *store.Store
	syncer Syncer
	logger logging.Logger
}

func NewNoteService(st *store.Store, s Syncer, logger logging.Logger) NoteService {
	return &noteService{store: st, syncer: s, logger: logger.With("module", "notes")}
}

// changed publishes the new cache state and schedules a sync for Remote
// accounts.
func (s *noteService) changed(ctx context.Context, acc *models.Account) error {
	if acc.Kind == models.KindRemote {
		s.syncer.Trigger()
	}
	return s.syncer.Publish(ctx)
}

// folder returns a live folder with its account.
func (s *noteService) folder(ctx context.Context, folderID int64) (*models.Folder, *models.Account, error) {
	db := s.store.DB()
	f, err := s.store.Folders(db).Get(ctx, folderID)
	if err != nil {
		return nil, nil, err
	}
	if f.State == models.StateDeleted {
		return nil, nil, common.ErrNotFound
	}
	acc, err := s.store.Accounts(db).Get(ctx, f.AccountID)
	if err != nil {
		return nil, nil, err
	}
	return f, acc, nil
}

func (s *noteService) CreateFolder(ctx context.Context, accountID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: folder name is empty", common.ErrBadRequest)
	}

	db := s.store.DB()
	acc, err := s.store.Accounts(db).Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	id, err := s.store.Folders(db).Create(ctx, &models.Folder{AccountID: acc.ID, Name: name})
	if err != nil {
		return 0, err
	}
	return id, s.changed(ctx, acc)
}

func (s *noteService) DeleteFolder(ctx context.Context, folderID int64) error {
	f, acc, err := s.folder(ctx, folderID)
	if err != nil {
		return err
	}

	folders := s.store.Folders(s.store.DB())
	if acc.Kind == models.KindRemote && f.RemoteID != nil {
		err = folders.MarkDeleted(ctx, f.ID)
	} else {
		err = folders.Delete(ctx, f.ID)
	}
	if err != nil {
		return err
	}
	return s.changed(ctx, acc)
}

func (s *noteService) CreateNote(ctx context.Context, folderID int64, title *string, text string) (int64, error) {
	f, acc, err := s.folder(ctx, folderID)
	if err != nil {
		return 0, err
	}
	id, err := s.store.Notes(s.store.DB()).Create(ctx, &models.Note{FolderID: f.ID, Title: title, Text: text, State: models.StateModified})
	if err != nil {
		return 0, err
	}
	return id, s.changed(ctx, acc)
}

// note returns a live note with the account of its folder.
func (s *noteService) note(ctx context.Context, noteID int64) (*models.Note, *models.Account, error) {
	n, err := s.store.Notes(s.store.DB()).Get(ctx, noteID)
	if err != nil {
		return nil, nil, err
	}
	if n.State == models.StateDeleted {
		return nil, nil, common.ErrNotFound
	}
	_, acc, err := s.folder(ctx, n.FolderID)
	if err != nil {
		return nil, nil, err
	}
	return n, acc, nil
}

func (s *noteService) EditNote(ctx context.Context, noteID int64, title *string, text string) error {
	n, acc, err := s.note(ctx, noteID)
	if err != nil {
		return err
	}
	if err := s.store.Notes(s.store.DB()).Edit(ctx, n.ID, title, text); err != nil {
		return err
	}
	return s.changed(ctx, acc)
}

func (s *noteService) DeleteNote(ctx context.Context, noteID int64) error {
	n, acc, err := s.note(ctx, noteID)
	if err != nil {
		return err
	}

	notes := s.store.Notes(s.store.DB())
	if acc.Kind == models.KindRemote && n.RemoteID != nil {
		err = notes.MarkDeleted(ctx, n.ID)
	} else {
		err = notes.Delete(ctx, n.ID)
	}
	if err != nil {
		return err
	}
	return s.changed(ctx, acc)
}

func (s *noteService) Note(ctx context.Context, noteID int64) (*models.Note, error) {
	n, _, err := s.note(ctx, noteID)
	return n, err
}
