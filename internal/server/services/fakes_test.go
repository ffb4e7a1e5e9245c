package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/devices"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/folders"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/requests"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// newTxDB returns a database that only hosts the transactions opened by
// dbx.WithTx; the fake repositories ignore the DBTX they are bound to.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type pair [2]int64

// memStore is an in-memory ledger shared by all fake repositories.
type memStore struct {
	mu     sync.Mutex
	nextID int64

	users          map[int64]*models.User
	pendingUsers   map[string]models.PendingUser
	devices        map[int64]*models.Device
	pendingDevices map[pair]time.Time
	folders        map[int64]*models.Folder
	deviceFolders  map[pair]models.DeviceFolder
	notes          map[int64]*models.Note
	deviceNotes    map[pair]models.DeviceNote
	folderRequests map[pair]bool
	noteRequests   map[pair]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:          map[int64]*models.User{},
		pendingUsers:   map[string]models.PendingUser{},
		devices:        map[int64]*models.Device{},
		pendingDevices: map[pair]time.Time{},
		folders:        map[int64]*models.Folder{},
		deviceFolders:  map[pair]models.DeviceFolder{},
		notes:          map[int64]*models.Note{},
		deviceNotes:    map[pair]models.DeviceNote{},
		folderRequests: map[pair]bool{},
		noteRequests:   map[pair]bool{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

type fakeRepoManager struct{ s *memStore }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return fakeUsers{m.s} }
func (m *fakeRepoManager) Devices(dbx.DBTX) devices.Repository          { return fakeDevices{m.s} }
func (m *fakeRepoManager) Folders(dbx.DBTX) folders.Repository          { return fakeFolders{m.s} }
func (m *fakeRepoManager) Notes(dbx.DBTX) notes.Repository              { return fakeNotes{m.s} }
func (m *fakeRepoManager) Requests(dbx.DBTX) requests.Repository        { return fakeRequests{m.s} }

// --- users ---

type fakeUsers struct{ *memStore }

func (f fakeUsers) Create(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return nil, common.ErrEmailAlreadyUsed
		}
	}
	u := &models.User{ID: f.id(), Email: email, CreatedAt: time.Now()}
	f.users[u.ID] = u
	return u, nil
}

func (f fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f fakeUsers) UpsertPending(_ context.Context, email, code string, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingUsers[email] = models.PendingUser{Email: email, Code: code, UpdatedAt: now}
	return nil
}

func (f fakeUsers) GetPending(_ context.Context, email string) (*models.PendingUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pendingUsers[email]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &p, nil
}

func (f fakeUsers) DeletePending(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pendingUsers, email)
	return nil
}

// --- devices ---

type fakeDevices struct{ *memStore }

func (f fakeDevices) GetByPubkey(_ context.Context, pubkey string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.Pubkey == pubkey {
			cp := *d
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f fakeDevices) Create(_ context.Context, pubkey string, hash []byte) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.Pubkey == pubkey {
			return nil, common.ErrDeviceAlreadyExists
		}
	}
	d := &models.Device{ID: f.id(), Pubkey: pubkey, PasswordHash: hash, CreatedAt: time.Now()}
	f.devices[d.ID] = d
	cp := *d
	return &cp, nil
}

func (f fakeDevices) Link(_ context.Context, userID, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.devices[deviceID]
	if !ok {
		return common.ErrNotFound
	}
	if d.UserID != 0 {
		return common.ErrDeviceAlreadyExists
	}
	d.UserID = userID
	return nil
}

func (f fakeDevices) ListByUser(_ context.Context, userID int64) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Device{}
	for _, d := range f.devices {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeDevices) Delete(_ context.Context, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.devices, deviceID)
	for k, df := range f.deviceFolders {
		if k[1] == deviceID || df.SenderDeviceID == deviceID {
			delete(f.deviceFolders, k)
		}
	}
	for k, dn := range f.deviceNotes {
		if k[1] == deviceID || dn.SenderDeviceID == deviceID {
			delete(f.deviceNotes, k)
		}
	}
	for k := range f.folderRequests {
		if k[1] == deviceID {
			delete(f.folderRequests, k)
		}
	}
	for k := range f.noteRequests {
		if k[1] == deviceID {
			delete(f.noteRequests, k)
		}
	}
	return nil
}

func (f fakeDevices) FindForLogin(_ context.Context, email, pubkey string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.devices {
		if d.Pubkey != pubkey || d.UserID == 0 {
			continue
		}
		if u, ok := f.users[d.UserID]; ok && u.Email == email {
			cp := *d
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f fakeDevices) UpsertPending(_ context.Context, userID, deviceID int64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingDevices[pair{userID, deviceID}] = now
	return nil
}

func (f fakeDevices) GetPending(_ context.Context, userID, deviceID int64) (*models.PendingDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.pendingDevices[pair{userID, deviceID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &models.PendingDevice{UserID: userID, DeviceID: deviceID, UpdatedAt: t}, nil
}

func (f fakeDevices) DeletePending(_ context.Context, userID, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pendingDevices, pair{userID, deviceID})
	return nil
}

// --- folders ---

type fakeFolders struct{ *memStore }

func (f fakeFolders) view(folder *models.Folder, receiver int64) models.FolderView {
	v := models.FolderView{ID: folder.ID, State: folder.State}
	if df, ok := f.deviceFolders[pair{folder.ID, receiver}]; ok {
		v.DeviceFolder = &df
	}
	return v
}

func (f fakeFolders) List(_ context.Context, userID, receiverID int64) ([]models.FolderView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.FolderView{}
	for _, folder := range f.folders {
		if folder.UserID == userID {
			out = append(out, f.view(folder, receiverID))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeFolders) Get(_ context.Context, userID, folderID, receiverID int64) (*models.FolderView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok || folder.UserID != userID {
		return nil, common.ErrNotFound
	}
	v := f.view(folder, receiverID)
	return &v, nil
}

func (f fakeFolders) GetClean(_ context.Context, userID, folderID int64) (*models.Folder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok || folder.UserID != userID || folder.State != models.StateClean {
		return nil, common.ErrNotFound
	}
	cp := *folder
	return &cp, nil
}

func (f fakeFolders) Create(_ context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder := &models.Folder{ID: f.id(), UserID: userID, State: models.StateClean, CreatedAt: time.Now()}
	f.folders[folder.ID] = folder
	return folder.ID, nil
}

func (f fakeFolders) MarkDeleted(_ context.Context, userID, folderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	folder, ok := f.folders[folderID]
	if !ok || folder.UserID != userID || folder.State != models.StateClean {
		return common.ErrNotFound
	}
	folder.State = models.StateDeleted
	return nil
}

func (f fakeFolders) UpsertReplicas(_ context.Context, folderID, senderID int64, items []models.FolderContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		f.deviceFolders[pair{folderID, it.DeviceID}] = models.DeviceFolder{SenderDeviceID: senderID, Name: it.Name}
	}
	return nil
}

func (f fakeFolders) InsertReplica(_ context.Context, folderID, senderID int64, it models.FolderContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pair{folderID, it.DeviceID}
	if _, ok := f.deviceFolders[k]; !ok {
		f.deviceFolders[k] = models.DeviceFolder{SenderDeviceID: senderID, Name: it.Name}
	}
	return nil
}

func (f fakeFolders) DeleteReplicas(_ context.Context, folderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.deviceFolders {
		if k[0] == folderID {
			delete(f.deviceFolders, k)
		}
	}
	return nil
}

// --- notes ---

type fakeNotes struct{ *memStore }

func (f fakeNotes) owned(userID, noteID int64) (*models.Note, *models.Folder, bool) {
	n, ok := f.notes[noteID]
	if !ok {
		return nil, nil, false
	}
	folder, ok := f.folders[n.FolderID]
	if !ok || folder.UserID != userID {
		return nil, nil, false
	}
	return n, folder, true
}

func (f fakeNotes) Create(_ context.Context, folderID, commit int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := &models.Note{ID: f.id(), FolderID: folderID, Commit: commit, State: models.StateClean}
	f.notes[n.ID] = n
	return n.ID, nil
}

func (f fakeNotes) Get(_ context.Context, userID, noteID, receiverID int64) (*models.NoteView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _, ok := f.owned(userID, noteID)
	if !ok {
		return nil, common.ErrNotFound
	}
	v := &models.NoteView{ID: n.ID, FolderID: n.FolderID, Commit: n.Commit, State: n.State}
	if dn, ok := f.deviceNotes[pair{noteID, receiverID}]; ok {
		v.DeviceNote = &dn
	}
	return v, nil
}

func (f fakeNotes) GetClean(_ context.Context, userID, noteID int64) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, folder, ok := f.owned(userID, noteID)
	if !ok || n.State != models.StateClean || folder.State != models.StateClean {
		return nil, common.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f fakeNotes) BumpCommit(_ context.Context, noteID, expected int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[noteID]
	if !ok || n.Commit != expected || n.State != models.StateClean {
		return 0, common.ErrCommitMismatch
	}
	n.Commit++
	return n.Commit, nil
}

func (f fakeNotes) MarkDeleted(_ context.Context, userID, noteID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _, ok := f.owned(userID, noteID)
	if !ok || n.State != models.StateClean {
		return common.ErrNotFound
	}
	n.State = models.StateDeleted
	return nil
}

func (f fakeNotes) DeleteByFolder(_ context.Context, folderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, n := range f.notes {
		if n.FolderID != folderID {
			continue
		}
		delete(f.notes, id)
		for k := range f.deviceNotes {
			if k[0] == id {
				delete(f.deviceNotes, k)
			}
		}
		for k := range f.noteRequests {
			if k[0] == id {
				delete(f.noteRequests, k)
			}
		}
	}
	return nil
}

func (f fakeNotes) Commits(_ context.Context, userID, folderID int64) ([]models.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Commit{}
	for _, n := range f.notes {
		if n.FolderID == folderID && f.folders[folderID].UserID == userID {
			out = append(out, models.Commit{NoteID: n.ID, Commit: n.Commit, State: n.State})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NoteID > out[j].NoteID })
	return out, nil
}

func (f fakeNotes) UpsertReplicas(_ context.Context, noteID, senderID int64, items []models.NoteContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, it := range items {
		f.deviceNotes[pair{noteID, it.DeviceID}] = models.DeviceNote{SenderDeviceID: senderID, Title: it.Title, Text: it.Text}
	}
	return nil
}

func (f fakeNotes) InsertReplica(_ context.Context, noteID, senderID int64, it models.NoteContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pair{noteID, it.DeviceID}
	if _, ok := f.deviceNotes[k]; !ok {
		f.deviceNotes[k] = models.DeviceNote{SenderDeviceID: senderID, Title: it.Title, Text: it.Text}
	}
	return nil
}

func (f fakeNotes) DeleteReplica(_ context.Context, noteID, receiverID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.deviceNotes, pair{noteID, receiverID})
	return nil
}

func (f fakeNotes) DeleteReplicas(_ context.Context, noteID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k := range f.deviceNotes {
		if k[0] == noteID {
			delete(f.deviceNotes, k)
		}
	}
	return nil
}

// --- requests ---

type fakeRequests struct{ *memStore }

func (f fakeRequests) ListForUser(_ context.Context, userID, exclude int64) (*models.Requests, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &models.Requests{FolderRequests: []models.FolderRequest{}, NoteRequests: []models.NoteRequest{}}
	for k := range f.folderRequests {
		folder := f.folders[k[0]]
		if folder != nil && folder.UserID == userID && folder.State == models.StateClean && k[1] != exclude {
			out.FolderRequests = append(out.FolderRequests, models.FolderRequest{FolderID: k[0], DeviceID: k[1]})
		}
	}
	for k := range f.noteRequests {
		n, _, ok := fakeNotes{f.memStore}.owned(userID, k[0])
		if ok && n.State == models.StateClean && k[1] != exclude {
			out.NoteRequests = append(out.NoteRequests, models.NoteRequest{NoteID: k[0], DeviceID: k[1]})
		}
	}
	sort.Slice(out.FolderRequests, func(i, j int) bool { return out.FolderRequests[i].FolderID < out.FolderRequests[j].FolderID })
	sort.Slice(out.NoteRequests, func(i, j int) bool { return out.NoteRequests[i].NoteID < out.NoteRequests[j].NoteID })
	return out, nil
}

func (f fakeRequests) CreateFolder(_ context.Context, folderID, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.deviceFolders[pair{folderID, deviceID}]; !ok {
		f.folderRequests[pair{folderID, deviceID}] = true
	}
	return nil
}

func (f fakeRequests) CreateNote(_ context.Context, noteID, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.deviceNotes[pair{noteID, deviceID}]; !ok {
		f.noteRequests[pair{noteID, deviceID}] = true
	}
	return nil
}

func (f fakeRequests) DeleteFolder(_ context.Context, folderID, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.folderRequests, pair{folderID, deviceID})
	return nil
}

func (f fakeRequests) DeleteNote(_ context.Context, noteID, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.noteRequests, pair{noteID, deviceID})
	return nil
}

func (f fakeRequests) TakeFolder(_ context.Context, userID, folderID, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pair{folderID, deviceID}
	folder := f.folders[folderID]
	if !f.folderRequests[k] || folder == nil || folder.UserID != userID || folder.State != models.StateClean {
		return common.ErrNotFound
	}
	delete(f.folderRequests, k)
	return nil
}

func (f fakeRequests) TakeNote(_ context.Context, userID, noteID, deviceID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := pair{noteID, deviceID}
	n, _, ok := fakeNotes{f.memStore}.owned(userID, noteID)
	if !f.noteRequests[k] || !ok || n.State != models.StateClean {
		return common.ErrNotFound
	}
	delete(f.noteRequests, k)
	return nil
}

// --- notifier ---

type delivery struct {
	UserID    int64
	DeviceID  int64
	Excluded  int64
	Broadcast bool
	Event     events.Event
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []delivery
}

func (n *fakeNotifier) SendToDevice(_ context.Context, userID, deviceID int64, ev events.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, delivery{UserID: userID, DeviceID: deviceID, Event: ev})
	return true
}

func (n *fakeNotifier) BroadcastExcept(_ context.Context, userID, excluded int64, ev events.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, delivery{UserID: userID, Excluded: excluded, Broadcast: true, Event: ev})
}

func (n *fakeNotifier) last() delivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return delivery{}
	}
	return n.sent[len(n.sent)-1]
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}
