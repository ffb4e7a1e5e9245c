package syncer

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/client/api"
	"github.com/dmitrijs2005/gophnotes/internal/common"
)

type fakeFolder struct {
	deleted  bool
	replicas map[int64]api.DeviceFolder
}

type fakeNote struct {
	folderID int64
	commit   int64
	deleted  bool
	replicas map[int64]api.DeviceNote
}

type reqKey struct{ id, device int64 }

// fakeLedger is an in-memory ledger for one account, shared by the fake
// remotes of all its devices.
type fakeLedger struct {
	mu         sync.Mutex
	devices    map[int64]string
	nextID     int64
	folders    map[int64]*fakeFolder
	notes      map[int64]*fakeNote
	folderReqs map[reqKey]bool
	noteReqs   map[reqKey]bool
	writes     int
	// requested logs every id sent to CreateRequests, ignored or not.
	requested []reqKey
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		devices:    map[int64]string{},
		nextID:     100,
		folders:    map[int64]*fakeFolder{},
		notes:      map[int64]*fakeNote{},
		folderReqs: map[reqKey]bool{},
		noteReqs:   map[reqKey]bool{},
	}
}

func (l *fakeLedger) id() int64 {
	l.nextID++
	return l.nextID
}

func (l *fakeLedger) writeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

// removeDevice drops a device with the replicas it received and sent, and
// its requests.
func (l *fakeLedger) removeDevice(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.devices, id)
	for _, f := range l.folders {
		for rcv, df := range f.replicas {
			if rcv == id || df.SenderDeviceID == id {
				delete(f.replicas, rcv)
			}
		}
	}
	for _, n := range l.notes {
		for rcv, dn := range n.replicas {
			if rcv == id || dn.SenderDeviceID == id {
				delete(n.replicas, rcv)
			}
		}
	}
	for k := range l.folderReqs {
		if k.device == id {
			delete(l.folderReqs, k)
		}
	}
	for k := range l.noteReqs {
		if k.device == id {
			delete(l.noteReqs, k)
		}
	}
}

func (l *fakeLedger) requestedBy(device int64) []reqKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []reqKey
	for _, k := range l.requested {
		if k.device == device {
			out = append(out, k)
		}
	}
	return out
}

func (l *fakeLedger) checkDevices(self int64, ids []int64) error {
	want := []int64{}
	for id := range l.devices {
		if id != self {
			want = append(want, id)
		}
	}
	got := slices.Clone(ids)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		return common.ErrDevicesMismatch
	}
	return nil
}

// fakeRemote is one device's view of the fake ledger.
type fakeRemote struct {
	l      *fakeLedger
	device int64

	mu             sync.Mutex
	staleDevices   []api.Device
	failCreateNote error
	failNote       error
	// afterCreate runs once the ledger accepted a new folder or note.
	afterCreate func()
}

func (r *fakeRemote) created() {
	r.mu.Lock()
	fn := r.afterCreate
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *fakeRemote) Devices(ctx context.Context) ([]api.Device, error) {
	r.mu.Lock()
	if r.staleDevices != nil {
		out := r.staleDevices
		r.staleDevices = nil
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	var out []api.Device
	for id, pk := range r.l.devices {
		if id != r.device {
			out = append(out, api.Device{ID: id, Pubkey: pk})
		}
	}
	slices.SortFunc(out, func(a, b api.Device) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *fakeRemote) folderView(id int64, f *fakeFolder) api.Folder {
	v := api.Folder{ID: id, State: api.StateClean}
	if f.deleted {
		v.State = api.StateDeleted
	}
	if df, ok := f.replicas[r.device]; ok {
		v.DeviceFolder = &df
	}
	return v
}

func (r *fakeRemote) Folders(ctx context.Context) ([]api.Folder, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	out := []api.Folder{}
	for id, f := range r.l.folders {
		out = append(out, r.folderView(id, f))
	}
	slices.SortFunc(out, func(a, b api.Folder) int { return int(a.ID - b.ID) })
	return out, nil
}

func (r *fakeRemote) CreateFolder(ctx context.Context, items []api.FolderContent) (int64, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.DeviceID)
	}
	if err := r.l.checkDevices(r.device, ids); err != nil {
		return 0, err
	}
	f := &fakeFolder{replicas: map[int64]api.DeviceFolder{}}
	for _, it := range items {
		f.replicas[it.DeviceID] = api.DeviceFolder{SenderDeviceID: r.device, Name: it.Name}
	}
	id := r.l.id()
	r.l.folders[id] = f
	r.l.writes++
	r.created()
	return id, nil
}

func (r *fakeRemote) DeleteFolder(ctx context.Context, id int64) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	f, ok := r.l.folders[id]
	if !ok || f.deleted {
		return common.ErrNotFound
	}
	f.deleted = true
	f.replicas = map[int64]api.DeviceFolder{}
	for _, n := range r.l.notes {
		if n.folderID == id {
			n.deleted = true
		}
	}
	r.l.writes++
	return nil
}

func (r *fakeRemote) FolderCommits(ctx context.Context, folderID int64) ([]api.Commit, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	out := []api.Commit{}
	for id, n := range r.l.notes {
		if n.folderID != folderID {
			continue
		}
		c := api.Commit{NoteID: id, Commit: n.commit, State: api.StateClean}
		if n.deleted {
			c.State = api.StateDeleted
		}
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b api.Commit) int { return int(b.NoteID - a.NoteID) })
	return out, nil
}

func noteIDs(items []api.NoteContent) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.DeviceID)
	}
	return ids
}

func (r *fakeRemote) CreateNote(ctx context.Context, folderID int64, items []api.NoteContent) (*api.CreatedNote, error) {
	r.mu.Lock()
	fail := r.failCreateNote
	r.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if f, ok := r.l.folders[folderID]; !ok || f.deleted {
		return nil, common.ErrUnknownFolder
	}
	if err := r.l.checkDevices(r.device, noteIDs(items)); err != nil {
		return nil, err
	}
	n := &fakeNote{folderID: folderID, replicas: map[int64]api.DeviceNote{}}
	for _, it := range items {
		n.replicas[it.DeviceID] = api.DeviceNote{SenderDeviceID: r.device, Title: it.Title, Text: it.Text}
	}
	id := r.l.id()
	r.l.notes[id] = n
	r.l.writes++
	r.created()
	return &api.CreatedNote{ID: id}, nil
}

func (r *fakeRemote) Note(ctx context.Context, id int64) (*api.Note, error) {
	r.mu.Lock()
	fail := r.failNote
	r.mu.Unlock()
	if fail != nil {
		return nil, fail
	}

	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	n, ok := r.l.notes[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	v := &api.Note{ID: id, FolderID: n.folderID, Commit: n.commit, State: api.StateClean}
	if n.deleted {
		v.State = api.StateDeleted
	}
	if dn, ok := n.replicas[r.device]; ok {
		v.DeviceNote = &dn
	}
	return v, nil
}

func (r *fakeRemote) UpdateNote(ctx context.Context, id, commit int64, items []api.NoteContent) (*api.Commit, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	n, ok := r.l.notes[id]
	if !ok || n.deleted {
		return nil, common.ErrNotFound
	}
	if n.commit != commit {
		return nil, common.ErrCommitMismatch
	}
	if err := r.l.checkDevices(r.device, noteIDs(items)); err != nil {
		return nil, err
	}
	n.commit++
	for _, it := range items {
		n.replicas[it.DeviceID] = api.DeviceNote{SenderDeviceID: r.device, Title: it.Title, Text: it.Text}
		delete(r.l.noteReqs, reqKey{id, it.DeviceID})
	}
	delete(n.replicas, r.device)
	r.l.writes++
	return &api.Commit{NoteID: id, Commit: n.commit, State: api.StateClean}, nil
}

func (r *fakeRemote) DeleteNote(ctx context.Context, id int64) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	n, ok := r.l.notes[id]
	if !ok || n.deleted {
		return common.ErrNotFound
	}
	n.deleted = true
	n.replicas = map[int64]api.DeviceNote{}
	r.l.writes++
	return nil
}

func (r *fakeRemote) Requests(ctx context.Context) (*api.Requests, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	out := &api.Requests{}
	for k := range r.l.folderReqs {
		if k.device != r.device {
			out.FolderRequests = append(out.FolderRequests, api.FolderRequest{FolderID: k.id, DeviceID: k.device})
		}
	}
	for k := range r.l.noteReqs {
		if k.device != r.device {
			out.NoteRequests = append(out.NoteRequests, api.NoteRequest{NoteID: k.id, DeviceID: k.device})
		}
	}
	return out, nil
}

func (r *fakeRemote) CreateRequests(ctx context.Context, folderIDs, noteIDs []int64) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, id := range folderIDs {
		r.l.requested = append(r.l.requested, reqKey{id, r.device})
		if _, ok := r.l.folders[id].replicas[r.device]; !ok {
			r.l.folderReqs[reqKey{id, r.device}] = true
		}
	}
	for _, id := range noteIDs {
		r.l.requested = append(r.l.requested, reqKey{id, r.device})
		if _, ok := r.l.notes[id].replicas[r.device]; !ok {
			r.l.noteReqs[reqKey{id, r.device}] = true
		}
	}
	r.l.writes++
	return nil
}

func (r *fakeRemote) RespondRequests(ctx context.Context, a api.Answers) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, fa := range a.Folders {
		k := reqKey{fa.FolderID, a.DeviceID}
		if !r.l.folderReqs[k] {
			return common.ErrUnknownFolder
		}
		delete(r.l.folderReqs, k)
		r.l.folders[fa.FolderID].replicas[a.DeviceID] = api.DeviceFolder{SenderDeviceID: r.device, Name: fa.Name}
	}
	for _, na := range a.Notes {
		k := reqKey{na.NoteID, a.DeviceID}
		if !r.l.noteReqs[k] {
			return common.ErrUnknownNote
		}
		delete(r.l.noteReqs, k)
		r.l.notes[na.NoteID].replicas[a.DeviceID] = api.DeviceNote{SenderDeviceID: r.device, Title: na.Title, Text: na.Text}
	}
	r.l.writes++
	return nil
}
