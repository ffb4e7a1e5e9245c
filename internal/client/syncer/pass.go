package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"slices"

	"github.com/dmitrijs2005/gophnotes/internal/client/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/store"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

const requestedKey = "requested"

// requestedIDs is the content this device has asked for and not received.
// Both lists are kept sorted.
type requestedIDs struct {
	Folders []int64 `json:"folders,omitempty"`
	Notes   []int64 `json:"notes,omitempty"`
}

// pass is one reconciliation of one account. Failures of single items are
// logged and left for the next pass; failures that make the rest of the pass
// meaningless are returned.
type pass struct {
	s      *Syncer
	acc    *models.Account
	remote Remote
	logger logging.Logger
	roster roster

	missingFolders []int64
	missingNotes   []int64
	// incomplete is set when part of the remote state could not be read and
	// the missing lists may be short.
	incomplete bool
	// staleNotes are remote notes whose newer commit was not pulled,
	// staleFolders local folders whose commit list could not be fetched.
	staleNotes   map[int64]bool
	staleFolders map[int64]bool
}

func newPass(s *Syncer, acc *models.Account, r Remote) (*pass, error) {
	id, err := identityOf(acc)
	if err != nil {
		return nil, err
	}
	return &pass{
		s:            s,
		acc:          acc,
		remote:       r,
		logger:       s.logger.With("account_id", acc.ID),
		roster:       roster{identity: id},
		staleNotes:   map[int64]bool{},
		staleFolders: map[int64]bool{},
	}, nil
}

func (p *pass) run(ctx context.Context) error {
	if err := p.refreshRoster(ctx); err != nil {
		return err
	}
	if err := p.pullFolders(ctx); err != nil {
		return err
	}
	if err := p.pullNotes(ctx); err != nil {
		return err
	}
	if err := p.pushFolders(ctx); err != nil {
		return err
	}
	if err := p.pushNotes(ctx); err != nil {
		return err
	}
	if err := p.requestMissing(ctx); err != nil {
		return err
	}
	return p.answerRequests(ctx)
}

// skip logs a per-item failure. Transport errors are expected while offline.
func (p *pass) skip(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err)
	if common.KindOf(err) == common.KindTransport {
		p.logger.Debug(ctx, msg, args...)
		return
	}
	p.logger.Warn(ctx, msg, args...)
}

func (p *pass) pullFolders(ctx context.Context) error {
	st := p.s.store
	folders := st.Folders(st.DB())

	remote, err := p.remote.Folders(ctx)
	if err != nil {
		return err
	}

	for _, rf := range remote {
		if rf.State == api.StateDeleted {
			if err := folders.DeleteByRemoteID(ctx, p.acc.ID, rf.ID); err != nil {
				return err
			}
			continue
		}

		_, err := folders.GetByRemoteID(ctx, p.acc.ID, rf.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, common.ErrNotFound) {
			return err
		}

		if rf.DeviceFolder == nil {
			p.missingFolders = append(p.missingFolders, rf.ID)
			continue
		}
		name, err := p.roster.open(rf.DeviceFolder.SenderDeviceID, rf.DeviceFolder.Name)
		if err != nil {
			p.skip(ctx, "cannot open folder, requesting it again", err, "remote_id", rf.ID)
			p.missingFolders = append(p.missingFolders, rf.ID)
			continue
		}
		remoteID := rf.ID
		if _, err := folders.Create(ctx, &models.Folder{AccountID: p.acc.ID, RemoteID: &remoteID, Name: name, State: models.StateClean}); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) pullNotes(ctx context.Context) error {
	st := p.s.store

	list, err := st.Folders(st.DB()).List(ctx, p.acc.ID)
	if err != nil {
		return err
	}
	for _, f := range list {
		if f.RemoteID == nil || f.State == models.StateDeleted {
			continue
		}
		commits, err := p.remote.FolderCommits(ctx, *f.RemoteID)
		if err != nil {
			p.skip(ctx, "cannot fetch commits", err, "folder_id", f.ID)
			p.incomplete = true
			p.staleFolders[f.ID] = true
			continue
		}
		for _, c := range commits {
			if err := p.pullNote(ctx, f, c); err != nil {
				return err
			}
		}
	}
	return nil
}

// pullNote brings one commit-list entry into the cache. Only store errors
// are returned.
func (p *pass) pullNote(ctx context.Context, f models.Folder, c api.Commit) error {
	st := p.s.store
	notes := st.Notes(st.DB())

	if c.State == api.StateDeleted {
		return notes.DeleteByRemoteID(ctx, f.ID, c.NoteID)
	}

	local, err := notes.GetByRemoteID(ctx, f.ID, c.NoteID)
	switch {
	case errors.Is(err, common.ErrNotFound):
		local = nil
	case err != nil:
		return err
	case local.State == models.StateDeleted || c.Commit <= local.Commit:
		return nil
	}

	// Until the newer commit is stored, the cached copy must not be served.
	p.staleNotes[c.NoteID] = true

	rn, err := p.remote.Note(ctx, c.NoteID)
	if err != nil {
		p.skip(ctx, "cannot fetch note", err, "remote_id", c.NoteID)
		p.incomplete = true
		return nil
	}
	if rn.State == api.StateDeleted {
		return notes.DeleteByRemoteID(ctx, f.ID, c.NoteID)
	}
	if rn.DeviceNote == nil {
		p.missingNotes = append(p.missingNotes, c.NoteID)
		return nil
	}

	title, text, err := p.openNote(rn.DeviceNote)
	if err != nil {
		p.skip(ctx, "cannot open note, requesting it again", err, "remote_id", c.NoteID)
		p.missingNotes = append(p.missingNotes, c.NoteID)
		return nil
	}

	if local == nil {
		remoteID := rn.ID
		_, err := notes.Create(ctx, &models.Note{FolderID: f.ID, RemoteID: &remoteID, Title: title, Text: text,
			Commit: rn.Commit, State: models.StateClean})
		if err == nil {
			delete(p.staleNotes, c.NoteID)
		}
		return err
	}

	applied, err := notes.ApplyRemote(ctx, local.ID, title, text, rn.Commit, local.Revision)
	if err != nil {
		return err
	}
	if applied {
		delete(p.staleNotes, c.NoteID)
	}
	if applied && local.State == models.StateModified {
		p.logger.Info(ctx, "local edit replaced by a newer remote commit", "note_id", local.ID, "commit", rn.Commit)
	}
	return nil
}

func (p *pass) openNote(dn *api.DeviceNote) (*string, string, error) {
	title, err := p.roster.openOptional(dn.SenderDeviceID, dn.Title)
	if err != nil {
		return nil, "", err
	}
	text, err := p.roster.open(dn.SenderDeviceID, dn.Text)
	if err != nil {
		return nil, "", err
	}
	return title, text, nil
}

// dropOrphan deletes remote content whose local row was removed while it
// was being created.
func (p *pass) dropOrphan(ctx context.Context, kind string, remoteID int64, del func(context.Context, int64) error) {
	p.logger.Info(ctx, "local row removed during upload, deleting remote copy", "kind", kind, "remote_id", remoteID)
	if err := del(ctx, remoteID); err != nil && !errors.Is(err, common.ErrNotFound) {
		p.skip(ctx, "cannot delete orphaned remote copy", err, "kind", kind, "remote_id", remoteID)
	}
}

// withRoster calls fn and, when the server reports a stale device set,
// refreshes the roster and calls fn once more.
func (p *pass) withRoster(ctx context.Context, fn func() error) error {
	err := fn()
	if !errors.Is(err, common.ErrDevicesMismatch) {
		return err
	}
	p.logger.Debug(ctx, "device roster changed, refreshing")
	if rerr := p.refreshRoster(ctx); rerr != nil {
		return rerr
	}
	return fn()
}

func (p *pass) folderItems(name string) ([]api.FolderContent, error) {
	items := make([]api.FolderContent, 0, len(p.roster.devices))
	for _, d := range p.roster.devices {
		sealed, err := p.roster.seal(d.ID, name)
		if err != nil {
			return nil, err
		}
		items = append(items, api.FolderContent{DeviceID: d.ID, Name: sealed})
	}
	return items, nil
}

func (p *pass) noteItems(title *string, text string) ([]api.NoteContent, error) {
	items := make([]api.NoteContent, 0, len(p.roster.devices))
	for _, d := range p.roster.devices {
		t, err := p.roster.sealOptional(d.ID, title)
		if err != nil {
			return nil, err
		}
		body, err := p.roster.seal(d.ID, text)
		if err != nil {
			return nil, err
		}
		items = append(items, api.NoteContent{DeviceID: d.ID, Title: t, Text: body})
	}
	return items, nil
}

func (p *pass) pushFolders(ctx context.Context) error {
	st := p.s.store
	folders := st.Folders(st.DB())

	list, err := folders.List(ctx, p.acc.ID)
	if err != nil {
		return err
	}
	for _, f := range list {
		switch {
		case f.State == models.StateDeleted && f.RemoteID == nil:
			if err := folders.Delete(ctx, f.ID); err != nil {
				return err
			}

		case f.State == models.StateDeleted:
			err := p.remote.DeleteFolder(ctx, *f.RemoteID)
			if err != nil && !errors.Is(err, common.ErrNotFound) {
				p.skip(ctx, "cannot delete folder", err, "folder_id", f.ID)
				continue
			}
			if err := folders.Delete(ctx, f.ID); err != nil {
				return err
			}

		case f.RemoteID == nil:
			var remoteID int64
			err := p.withRoster(ctx, func() error {
				items, err := p.folderItems(f.Name)
				if err != nil {
					return err
				}
				remoteID, err = p.remote.CreateFolder(ctx, items)
				return err
			})
			if err != nil {
				p.skip(ctx, "cannot create folder", err, "folder_id", f.ID)
				continue
			}
			err = folders.SetRemoteID(ctx, f.ID, remoteID)
			if errors.Is(err, common.ErrNotFound) {
				p.dropOrphan(ctx, "folder", remoteID, p.remote.DeleteFolder)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *pass) pushNotes(ctx context.Context) error {
	st := p.s.store

	list, err := st.Folders(st.DB()).List(ctx, p.acc.ID)
	if err != nil {
		return err
	}
	for _, f := range list {
		if f.RemoteID == nil || f.State == models.StateDeleted {
			continue
		}
		notes, err := st.Notes(st.DB()).ListByFolder(ctx, f.ID)
		if err != nil {
			return err
		}
		for _, n := range notes {
			if err := p.pushNote(ctx, *f.RemoteID, n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *pass) pushNote(ctx context.Context, folderRemoteID int64, n models.Note) error {
	st := p.s.store
	notes := st.Notes(st.DB())

	switch {
	case n.State == models.StateDeleted && n.RemoteID == nil:
		return notes.Delete(ctx, n.ID)

	case n.State == models.StateDeleted:
		err := p.remote.DeleteNote(ctx, *n.RemoteID)
		if err != nil && !errors.Is(err, common.ErrNotFound) {
			p.skip(ctx, "cannot delete note", err, "note_id", n.ID)
			return nil
		}
		return notes.Delete(ctx, n.ID)

	case n.State != models.StateModified:
		return nil

	case n.RemoteID == nil:
		var created *api.CreatedNote
		err := p.withRoster(ctx, func() error {
			items, err := p.noteItems(n.Title, n.Text)
			if err != nil {
				return err
			}
			created, err = p.remote.CreateNote(ctx, folderRemoteID, items)
			return err
		})
		if err != nil {
			p.skip(ctx, "cannot create note", err, "note_id", n.ID)
			return nil
		}
		err = notes.MarkPushed(ctx, n.ID, created.ID, created.Commit, n.Revision)
		if errors.Is(err, common.ErrNotFound) {
			p.dropOrphan(ctx, "note", created.ID, p.remote.DeleteNote)
			return nil
		}
		return err

	default:
		var res *api.Commit
		err := p.withRoster(ctx, func() error {
			items, err := p.noteItems(n.Title, n.Text)
			if err != nil {
				return err
			}
			res, err = p.remote.UpdateNote(ctx, *n.RemoteID, n.Commit, items)
			return err
		})
		if err != nil {
			p.skip(ctx, "cannot update note", err, "note_id", n.ID, "commit", n.Commit)
			return nil
		}
		return notes.MarkPushed(ctx, n.ID, *n.RemoteID, res.Commit, n.Revision)
	}
}

// requestMissing asks the other devices for content this device holds no
// readable replica of. Ids asked for in an earlier pass are not sent again;
// they leave the set once their replica has arrived.
func (p *pass) requestMissing(ctx context.Context) error {
	st := p.s.store
	meta := st.Metadata(st.DB())
	key := store.AccountKey(p.acc.ID, requestedKey)

	var prev requestedIDs
	raw, err := meta.Get(ctx, key)
	if err != nil {
		return err
	}
	if raw != nil {
		if err := json.Unmarshal(raw, &prev); err != nil {
			p.logger.Warn(ctx, "discarding unreadable request set", "error", err)
			prev = requestedIDs{}
		}
	}
	slices.Sort(prev.Folders)
	slices.Sort(prev.Notes)

	next := requestedIDs{Folders: slices.Clone(prev.Folders), Notes: slices.Clone(prev.Notes)}
	if !p.incomplete {
		next.Folders = keepIDs(prev.Folders, p.missingFolders, true)
		next.Notes = keepIDs(prev.Notes, p.missingNotes, true)
	}

	folders := keepIDs(p.missingFolders, prev.Folders, false)
	notes := keepIDs(p.missingNotes, prev.Notes, false)
	if len(folders) > 0 || len(notes) > 0 {
		if err := p.remote.CreateRequests(ctx, folders, notes); err != nil {
			p.skip(ctx, "cannot request content", err, "folders", len(folders), "notes", len(notes))
		} else {
			next.Folders = append(next.Folders, folders...)
			next.Notes = append(next.Notes, notes...)
		}
	}

	slices.Sort(next.Folders)
	slices.Sort(next.Notes)
	if slices.Equal(prev.Folders, next.Folders) && slices.Equal(prev.Notes, next.Notes) {
		return nil
	}
	if len(next.Folders) == 0 && len(next.Notes) == 0 {
		return meta.Delete(ctx, key)
	}
	b, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return meta.Set(ctx, key, b)
}

// keepIDs returns the ids of a that are in b when in is true, and those
// that are not otherwise. Duplicates in a are dropped.
func keepIDs(a, b []int64, in bool) []int64 {
	var out []int64
	for _, id := range a {
		if slices.Contains(b, id) == in && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// answerRequests supplies content to devices that asked for it. Only Clean
// notes that are current with the server's commit are answered.
func (p *pass) answerRequests(ctx context.Context) error {
	st := p.s.store
	db := st.DB()

	reqs, err := p.remote.Requests(ctx)
	if err != nil {
		p.skip(ctx, "cannot fetch requests", err)
		return nil
	}

	byDevice := map[int64]*api.Answers{}
	var order []int64
	answers := func(deviceID int64) *api.Answers {
		a, ok := byDevice[deviceID]
		if !ok {
			a = &api.Answers{DeviceID: deviceID}
			byDevice[deviceID] = a
			order = append(order, deviceID)
		}
		return a
	}

	for _, r := range reqs.FolderRequests {
		f, err := st.Folders(db).GetByRemoteID(ctx, p.acc.ID, r.FolderID)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if f.State == models.StateDeleted {
			continue
		}
		name, err := p.roster.seal(r.DeviceID, f.Name)
		if err != nil {
			p.skip(ctx, "cannot answer folder request", err, "device_id", r.DeviceID)
			continue
		}
		a := answers(r.DeviceID)
		a.Folders = append(a.Folders, api.FolderAnswer{FolderID: r.FolderID, Name: name})
	}

	for _, r := range reqs.NoteRequests {
		n, err := st.Notes(db).FindByRemoteID(ctx, p.acc.ID, r.NoteID)
		if errors.Is(err, common.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if n.State != models.StateClean || p.staleNotes[r.NoteID] || p.staleFolders[n.FolderID] {
			continue
		}
		title, err := p.roster.sealOptional(r.DeviceID, n.Title)
		if err != nil {
			p.skip(ctx, "cannot answer note request", err, "device_id", r.DeviceID)
			continue
		}
		text, err := p.roster.seal(r.DeviceID, n.Text)
		if err != nil {
			p.skip(ctx, "cannot answer note request", err, "device_id", r.DeviceID)
			continue
		}
		a := answers(r.DeviceID)
		a.Notes = append(a.Notes, api.NoteAnswer{NoteID: r.NoteID, Title: title, Text: text})
	}

	for _, id := range order {
		if err := p.remote.RespondRequests(ctx, *byDevice[id]); err != nil {
			p.skip(ctx, "cannot respond to requests", err, "device_id", id)
		}
	}
	return nil
}
