package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
)

type CreatedNote struct {
	ID     int64 `json:"id"`
	Commit int64 `json:"commit"`
}

// LedgerService owns folders, notes, their per-device replicas and the
// request/respond handshake.
type LedgerService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    Notifier
	logger      logging.Logger
}

func NewLedgerService(db *sql.DB, m repomanager.RepositoryManager, n Notifier, logger logging.Logger) *LedgerService {
	return &LedgerService{db: db, repomanager: m, notifier: n, logger: logger.With("module", "ledger")}
}

func (s *LedgerService) FetchFolders(ctx context.Context, c Caller) ([]models.FolderView, error) {
	return s.repomanager.Folders(s.db).List(ctx, c.UserID, c.DeviceID)
}

func (s *LedgerService) FetchFolder(ctx context.Context, c Caller, folderID int64) (*models.FolderView, error) {
	return s.repomanager.Folders(s.db).Get(ctx, c.UserID, folderID, c.DeviceID)
}

func (s *LedgerService) CreateFolder(ctx context.Context, c Caller, items []models.FolderContent) (int64, error) {
	var folderID int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := checkDevices(ctx, s.repomanager, tx, c, folderDeviceIDs(items)); err != nil {
			return err
		}

		repo := s.repomanager.Folders(tx)
		id, err := repo.Create(ctx, c.UserID)
		if err != nil {
			return err
		}
		folderID = id
		return repo.UpsertReplicas(ctx, id, c.DeviceID, items)
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug(ctx, "folder created", "user_id", c.UserID, "folder_id", folderID)
	s.notifier.BroadcastExcept(ctx, c.UserID, c.DeviceID, events.NewRefreshFolder(folderID))
	return folderID, nil
}

// DeleteFolder marks the folder Deleted and drops its notes and replicas.
func (s *LedgerService) DeleteFolder(ctx context.Context, c Caller, folderID int64) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		folders := s.repomanager.Folders(tx)

		if _, err := folders.GetClean(ctx, c.UserID, folderID); err != nil {
			return err
		}
		if err := folders.MarkDeleted(ctx, c.UserID, folderID); err != nil {
			return err
		}
		if err := s.repomanager.Notes(tx).DeleteByFolder(ctx, folderID); err != nil {
			return err
		}
		return folders.DeleteReplicas(ctx, folderID)
	})
	if err != nil {
		return err
	}

	s.notifier.BroadcastExcept(ctx, c.UserID, c.DeviceID, events.NewRefreshFolder(folderID))
	return nil
}

// FetchCommits lists the commit of every note in a Clean folder, newest
// note first.
func (s *LedgerService) FetchCommits(ctx context.Context, c Caller, folderID int64) ([]models.Commit, error) {
	f, err := s.repomanager.Folders(s.db).Get(ctx, c.UserID, folderID, c.DeviceID)
	if err != nil {
		return nil, err
	}
	if f.State != models.StateClean {
		return nil, common.ErrNotFound
	}
	return s.repomanager.Notes(s.db).Commits(ctx, c.UserID, folderID)
}

func (s *LedgerService) CreateNote(ctx context.Context, c Caller, folderID, commit int64, items []models.NoteContent) (*CreatedNote, error) {
	if commit < 0 {
		return nil, common.ErrBadRequest
	}

	var created CreatedNote

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Folders(tx).GetClean(ctx, c.UserID, folderID); err != nil {
			return err
		}
		if err := checkDevices(ctx, s.repomanager, tx, c, noteDeviceIDs(items)); err != nil {
			return err
		}

		notes := s.repomanager.Notes(tx)
		id, err := notes.Create(ctx, folderID, commit)
		if err != nil {
			return err
		}
		created = CreatedNote{ID: id, Commit: commit}
		return notes.UpsertReplicas(ctx, id, c.DeviceID, items)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.BroadcastExcept(ctx, c.UserID, c.DeviceID, events.NewRefreshNote(folderID, created.ID, created.Commit, false))
	return &created, nil
}

func (s *LedgerService) FetchNote(ctx context.Context, c Caller, noteID int64) (*models.NoteView, error) {
	return s.repomanager.Notes(s.db).Get(ctx, c.UserID, noteID, c.DeviceID)
}

// UpdateNote replaces the note content for the caller's other devices when
// expected still matches the stored commit. The caller's own replica is
// removed since it now holds the newest content locally.
func (s *LedgerService) UpdateNote(ctx context.Context, c Caller, noteID, expected int64, items []models.NoteContent) (*models.Commit, error) {
	var (
		folderID int64
		commit   int64
	)

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		notes := s.repomanager.Notes(tx)

		n, err := notes.GetClean(ctx, c.UserID, noteID)
		if err != nil {
			return err
		}
		if n.Commit != expected {
			return common.ErrCommitMismatch
		}
		if err := checkDevices(ctx, s.repomanager, tx, c, noteDeviceIDs(items)); err != nil {
			return err
		}

		commit, err = notes.BumpCommit(ctx, noteID, expected)
		if err != nil {
			return err
		}
		folderID = n.FolderID

		if err := notes.UpsertReplicas(ctx, noteID, c.DeviceID, items); err != nil {
			return err
		}
		if err := notes.DeleteReplica(ctx, noteID, c.DeviceID); err != nil {
			return err
		}

		requests := s.repomanager.Requests(tx)
		for _, it := range items {
			if err := requests.DeleteNote(ctx, noteID, it.DeviceID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.BroadcastExcept(ctx, c.UserID, c.DeviceID, events.NewRefreshNote(folderID, noteID, commit, false))
	return &models.Commit{NoteID: noteID, Commit: commit, State: models.StateClean}, nil
}

func (s *LedgerService) DeleteNote(ctx context.Context, c Caller, noteID int64) error {
	var n *models.Note

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		notes := s.repomanager.Notes(tx)

		var err error
		if n, err = notes.GetClean(ctx, c.UserID, noteID); err != nil {
			return err
		}
		if err := notes.MarkDeleted(ctx, c.UserID, noteID); err != nil {
			return err
		}
		return notes.DeleteReplicas(ctx, noteID)
	})
	if err != nil {
		return err
	}

	s.notifier.BroadcastExcept(ctx, c.UserID, c.DeviceID, events.NewRefreshNote(n.FolderID, noteID, n.Commit, true))
	return nil
}

func (s *LedgerService) FetchRequests(ctx context.Context, c Caller) (*models.Requests, error) {
	return s.repomanager.Requests(s.db).ListForUser(ctx, c.UserID, c.DeviceID)
}

// CreateRequests asks the other devices for replicas the caller is missing.
func (s *LedgerService) CreateRequests(ctx context.Context, c Caller, folderIDs, noteIDs []int64) error {
	if len(folderIDs) == 0 && len(noteIDs) == 0 {
		return common.ErrNoRequestSpecified
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		folders := s.repomanager.Folders(tx)
		notes := s.repomanager.Notes(tx)
		requests := s.repomanager.Requests(tx)

		for _, id := range folderIDs {
			if _, err := folders.GetClean(ctx, c.UserID, id); err != nil {
				return mapNotFound(err, common.ErrUnknownFolder)
			}
			if err := requests.CreateFolder(ctx, id, c.DeviceID); err != nil {
				return err
			}
		}
		for _, id := range noteIDs {
			if _, err := notes.GetClean(ctx, c.UserID, id); err != nil {
				return mapNotFound(err, common.ErrUnknownNote)
			}
			if err := requests.CreateNote(ctx, id, c.DeviceID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.BroadcastExcept(ctx, c.UserID, c.DeviceID, events.NewRefreshRequests())
	return nil
}

// RespondRequests delivers content for target's pending requests and clears
// them. Each answer must match an existing request.
func (s *LedgerService) RespondRequests(ctx context.Context, c Caller, target int64, folderAnswers []models.FolderAnswer, noteAnswers []models.NoteAnswer) error {
	if len(folderAnswers) == 0 && len(noteAnswers) == 0 {
		return common.ErrNoRequestSpecified
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		folders := s.repomanager.Folders(tx)
		notes := s.repomanager.Notes(tx)
		requests := s.repomanager.Requests(tx)

		for _, a := range folderAnswers {
			if err := requests.TakeFolder(ctx, c.UserID, a.FolderID, target); err != nil {
				return mapNotFound(err, common.ErrUnknownFolder)
			}
			item := models.FolderContent{DeviceID: target, Name: a.Name}
			if err := folders.InsertReplica(ctx, a.FolderID, c.DeviceID, item); err != nil {
				return err
			}
		}
		for _, a := range noteAnswers {
			if err := requests.TakeNote(ctx, c.UserID, a.NoteID, target); err != nil {
				return mapNotFound(err, common.ErrUnknownNote)
			}
			item := models.NoteContent{DeviceID: target, Title: a.Title, Text: a.Text}
			if err := notes.InsertReplica(ctx, a.NoteID, c.DeviceID, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.notifier.SendToDevice(ctx, c.UserID, target, events.NewRefreshRemote())
	return nil
}

func folderDeviceIDs(items []models.FolderContent) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.DeviceID
	}
	return ids
}

func noteDeviceIDs(items []models.NoteContent) []int64 {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.DeviceID
	}
	return ids
}
