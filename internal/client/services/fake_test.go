package services

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/gophnotes/internal/client/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/store"
	"github.com/dmitrijs2005/gophnotes/internal/client/syncer"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	triggers  atomic.Int32
	publishes atomic.Int32
}

func (f *fakeSyncer) Trigger() { f.triggers.Add(1) }

func (f *fakeSyncer) Publish(context.Context) error {
	f.publishes.Add(1)
	return nil
}

// fakeRemote implements the pairing half of Remote. Ledger calls go to the
// embedded nil syncer.Remote and panic.
type fakeRemote struct {
	syncer.Remote

	mu       sync.Mutex
	token    string
	relogin  api.ReloginFunc
	logins   int
	login    string
	added    []string
	deleted  int
	waitWith events.Event
	signUp   func(email, code, pubkey, password string) (string, error)
	pushed   chan events.Event
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		login:    "login-token",
		waitWith: events.NewAcceptPendingDevice(),
		pushed:   make(chan events.Event, 1),
	}
}

func tokenFor(t *testing.T, userID, deviceID int64) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   userID,
		"device_id": deviceID,
		"kind":      "device",
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

func (f *fakeRemote) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeRemote) SetRelogin(fn api.ReloginFunc) { f.relogin = fn }

func (f *fakeRemote) SendCode(ctx context.Context, email string) error {
	if email == "" {
		return common.ErrInvalidEmail
	}
	return nil
}

func (f *fakeRemote) SignUp(ctx context.Context, email, code, pubkey, password string) (string, error) {
	return f.signUp(email, code, pubkey, password)
}

func (f *fakeRemote) Login(ctx context.Context, email, pubkey, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.login, nil
}

func (f *fakeRemote) RequestVerification(ctx context.Context, email, pubkey, password string) (string, error) {
	return "pending-token", nil
}

func (f *fakeRemote) WaitVerification(ctx context.Context, pendingToken string) (events.Event, error) {
	return f.waitWith, nil
}

func (f *fakeRemote) AddDevice(ctx context.Context, pubkey string) (*api.Device, error) {
	f.added = append(f.added, pubkey)
	return &api.Device{ID: int64(len(f.added)) + 10, Pubkey: pubkey}, nil
}

func (f *fakeRemote) DeleteDevice(ctx context.Context) error {
	f.deleted++
	return nil
}

func (f *fakeRemote) Listen(ctx context.Context, handle func(events.Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-f.pushed:
			handle(ev)
		}
	}
}

type fixture struct {
	store    *store.Store
	remote   *fakeRemote
	syncer   *fakeSyncer
	sessions *Sessions
	dials    []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := &fixture{store: st, remote: newFakeRemote(), syncer: &fakeSyncer{}}
	f.sessions = NewSessions(st, func(serverURL string) (Remote, error) {
		f.dials = append(f.dials, serverURL)
		return f.remote, nil
	}, logging.Discard())
	return f
}
