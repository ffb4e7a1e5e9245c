// Package syncer reconciles the local cache of each Remote account against
// the server ledger: it pulls folders and notes, pushes local changes,
// drives the content request/respond handshake and publishes the resulting
// folder and note lists.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/client/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/store"
	"github.com/dmitrijs2005/gophnotes/internal/client/watch"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

const lastSyncKey = "last_sync"

// Remote is the part of the network contract the engine drives.
type Remote interface {
	Devices(ctx context.Context) ([]api.Device, error)
	Folders(ctx context.Context) ([]api.Folder, error)
	CreateFolder(ctx context.Context, items []api.FolderContent) (int64, error)
	DeleteFolder(ctx context.Context, id int64) error
	FolderCommits(ctx context.Context, folderID int64) ([]api.Commit, error)
	CreateNote(ctx context.Context, folderID int64, items []api.NoteContent) (*api.CreatedNote, error)
	Note(ctx context.Context, id int64) (*api.Note, error)
	UpdateNote(ctx context.Context, id, commit int64, items []api.NoteContent) (*api.Commit, error)
	DeleteNote(ctx context.Context, id int64) error
	Requests(ctx context.Context) (*api.Requests, error)
	CreateRequests(ctx context.Context, folderIDs, noteIDs []int64) error
	RespondRequests(ctx context.Context, a api.Answers) error
}

// Connector returns the remote endpoint of a Remote account.
type Connector func(ctx context.Context, acc *models.Account) (Remote, error)

type FolderTree struct {
	Folder models.Folder
	Notes  []models.Note
}

// AccountTree is an account's visible content. Account.Credentials is
// always nil.
type AccountTree struct {
	Account  models.Account
	Folders  []FolderTree
	LastSync time.Time
}

type Tree struct {
	Accounts []AccountTree
}

type Syncer struct {
	store   *store.Store
	connect Connector
	logger  logging.Logger

	// mu admits one pass at a time; active counts passes running or waiting.
	mu     sync.Mutex
	active atomic.Int32
	wake   chan struct{}

	tree *watch.Value[Tree]
	now  func() time.Time
}

func New(st *store.Store, connect Connector, logger logging.Logger) *Syncer {
	return &Syncer{
		store:   st,
		connect: connect,
		logger:  logger.With("module", "syncer"),
		wake:    make(chan struct{}, 1),
		tree:    watch.New(Tree{}),
		now:     time.Now,
	}
}

// Tree is updated after every pass and every Publish.
func (s *Syncer) Tree() *watch.Value[Tree] {
	return s.tree
}

// Active reports how many Sync calls are running or queued.
func (s *Syncer) Active() int {
	return int(s.active.Load())
}

// Trigger asks Run for a pass without waiting. Triggers issued while a pass
// is pending coalesce.
func (s *Syncer) Trigger() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run syncs on every Trigger and every interval until ctx is done.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-s.wake:
		}
		if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn(ctx, "sync failed", "error", err)
		}
	}
}

// Sync runs one pass over every Remote account. A failing account does not
// stop the others; their errors are joined.
func (s *Syncer) Sync(ctx context.Context) error {
	s.active.Add(1)
	defer s.active.Add(-1)

	s.mu.Lock()
	defer s.mu.Unlock()

	list, err := s.store.Accounts(s.store.DB()).List(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for i := range list {
		acc := &list[i]
		if acc.Kind != models.KindRemote {
			continue
		}
		if err := s.syncAccount(ctx, acc); err != nil {
			errs = append(errs, fmt.Errorf("account %d: %w", acc.ID, err))
		}
		if ctx.Err() != nil {
			break
		}
	}

	if err := s.Publish(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Syncer) syncAccount(ctx context.Context, acc *models.Account) error {
	if acc.Credentials == nil {
		return fmt.Errorf("remote account has no credentials")
	}
	r, err := s.connect(ctx, acc)
	if err != nil {
		return err
	}
	p, err := newPass(s, acc, r)
	if err != nil {
		return err
	}
	if err := p.run(ctx); err != nil {
		return err
	}

	ts := s.now().UTC().Format(time.RFC3339Nano)
	return s.store.Metadata(s.store.DB()).Set(ctx, store.AccountKey(acc.ID, lastSyncKey), []byte(ts))
}

// Publish rebuilds the tree from the cache. Deleted rows are left out.
func (s *Syncer) Publish(ctx context.Context) error {
	db := s.store.DB()

	list, err := s.store.Accounts(db).List(ctx)
	if err != nil {
		return err
	}

	var tree Tree
	for _, acc := range list {
		acc.Credentials = nil
		at := AccountTree{Account: acc}

		if v, err := s.store.Metadata(db).Get(ctx, store.AccountKey(acc.ID, lastSyncKey)); err != nil {
			return err
		} else if v != nil {
			at.LastSync, _ = time.Parse(time.RFC3339Nano, string(v))
		}

		folders, err := s.store.Folders(db).List(ctx, acc.ID)
		if err != nil {
			return err
		}
		for _, f := range folders {
			if f.State == models.StateDeleted {
				continue
			}
			notes, err := s.store.Notes(db).ListByFolder(ctx, f.ID)
			if err != nil {
				return err
			}
			ft := FolderTree{Folder: f, Notes: make([]models.Note, 0, len(notes))}
			for _, n := range notes {
				if n.State != models.StateDeleted {
					ft.Notes = append(ft.Notes, n)
				}
			}
			at.Folders = append(at.Folders, ft)
		}
		tree.Accounts = append(tree.Accounts, at)
	}

	s.tree.Publish(tree)
	return nil
}
