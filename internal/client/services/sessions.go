// Package services holds the client application services: account pairing,
// local note editing and the per-account server sessions they share with
// the sync engine.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/client/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/store"
	"github.com/dmitrijs2005/gophnotes/internal/client/syncer"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

// Remote is everything the client needs from one server.
type Remote interface {
	syncer.Remote

	SetToken(token string)
	SetRelogin(fn api.ReloginFunc)

	SendCode(ctx context.Context, email string) error
	SignUp(ctx context.Context, email, code, pubkey, password string) (string, error)
	Login(ctx context.Context, email, pubkey, password string) (string, error)
	RequestVerification(ctx context.Context, email, pubkey, password string) (string, error)
	WaitVerification(ctx context.Context, pendingToken string) (events.Event, error)
	AddDevice(ctx context.Context, pubkey string) (*api.Device, error)
	DeleteDevice(ctx context.Context) error
	Listen(ctx context.Context, handle func(events.Event))
}

// Dialer returns an unauthenticated Remote for serverURL.
type Dialer func(serverURL string) (Remote, error)

// Sessions keeps one authenticated Remote per account. A rejected token is
// renewed by logging in again with the stored device credentials, and the
// new token is saved.
type Sessions struct {
	store  *store.Store
	dial   Dialer
	logger logging.Logger

	mu      sync.Mutex
	remotes map[int64]Remote
}

func NewSessions(st *store.Store, dial Dialer, logger logging.Logger) *Sessions {
	return &Sessions{
		store:   st,
		dial:    dial,
		logger:  logger.With("module", "sessions"),
		remotes: make(map[int64]Remote),
	}
}

// Connect satisfies syncer.Connector.
func (s *Sessions) Connect(ctx context.Context, acc *models.Account) (syncer.Remote, error) {
	return s.Remote(acc)
}

func (s *Sessions) Remote(acc *models.Account) (Remote, error) {
	if acc.Kind != models.KindRemote || acc.Credentials == nil {
		return nil, fmt.Errorf("account %d is not a remote account", acc.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.remotes[acc.ID]; ok {
		return r, nil
	}
	r, err := s.dial(acc.Credentials.ServerURL)
	if err != nil {
		return nil, err
	}
	r.SetToken(acc.Credentials.Token)
	r.SetRelogin(s.relogin(acc.ID, r))
	s.remotes[acc.ID] = r
	return r, nil
}

func (s *Sessions) relogin(accountID int64, r Remote) api.ReloginFunc {
	return func(ctx context.Context) (string, error) {
		acc, err := s.store.Accounts(s.store.DB()).Get(ctx, accountID)
		if err != nil {
			return "", err
		}
		creds := acc.Credentials
		pubkey, err := publicKeyOf(creds)
		if err != nil {
			return "", err
		}

		token, err := r.Login(ctx, creds.Email, pubkey, creds.Password)
		if err != nil {
			return "", fmt.Errorf("relogin: %w", err)
		}
		creds.Token = token
		if err := s.store.Accounts(s.store.DB()).UpdateCredentials(ctx, accountID, creds); err != nil {
			return "", err
		}
		s.logger.Info(ctx, "device token renewed", "account_id", accountID)
		return token, nil
	}
}

// Forget drops the cached session of an account.
func (s *Sessions) Forget(accountID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.remotes, accountID)
}

func publicKeyOf(c *models.Credentials) (string, error) {
	id, err := identityFromCredentials(c)
	if err != nil {
		return "", err
	}
	return id.PublicBase64(), nil
}

func identityFromCredentials(c *models.Credentials) (*cryptox.Identity, error) {
	raw, err := decodeKey(c.PrivateKey)
	if err != nil {
		return nil, err
	}
	return cryptox.IdentityFromPrivate(raw)
}
