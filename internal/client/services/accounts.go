package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/client/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/store"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

// Syncer is the part of the sync engine the services drive.
type Syncer interface {
	Publish(ctx context.Context) error
	Trigger()
}

// AccountService manages the accounts of this device.
//
//   - SignUp creates a server account with this device as its first member.
//   - RequestVerification and WaitVerification join an existing account: the
//     returned pubkey is approved on an already paired device with
//     ApproveDevice.
//   - CreateLocal creates an account that is never synced.
type AccountService interface {
	List(ctx context.Context) ([]models.Account, error)
	CreateLocal(ctx context.Context, name string) (int64, error)
	SendCode(ctx context.Context, serverURL, email string) error
	SignUp(ctx context.Context, name, serverURL, email, code string) (int64, error)
	RequestVerification(ctx context.Context, name, serverURL, email string) (*Pending, error)
	WaitVerification(ctx context.Context, p *Pending) (int64, error)
	ApproveDevice(ctx context.Context, accountID int64, pubkey string) error
	Devices(ctx context.Context, accountID int64) ([]models.Device, error)
	RemoveAccount(ctx context.Context, accountID int64, leaveServer bool) error
	// Listen keeps push channels open for every Remote account and triggers
	// a sync on each event, until ctx is done.
	Listen(ctx context.Context)
}

// Pending is a device waiting to be approved into an account.
type Pending struct {
	Name      string
	ServerURL string
	Email     string
	Pubkey    string
	Token     string

	privateKey string
	password   string
}

type accountService struct {
	store    *store.Store
	sessions *Sessions
	syncer   Syncer
	logger   logging.Logger

	// listenCtx is set by Listen; accounts paired later start listening
	// under it.
	mu        sync.Mutex
	listenCtx context.Context
	listeners map[int64]context.CancelFunc
}

func NewAccountService(st *store.Store, sessions *Sessions, s Syncer, logger logging.Logger) AccountService {
	return &accountService{
		store:     st,
		sessions:  sessions,
		syncer:    s,
		logger:    logger.With("module", "accounts"),
		listeners: make(map[int64]context.CancelFunc),
	}
}

func decodeKey(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode device key: %w", err)
	}
	return raw, nil
}

// newDeviceSecrets creates the identity key and device password of a new
// device.
func newDeviceSecrets() (*cryptox.Identity, string, error) {
	id, err := cryptox.GenerateIdentity()
	if err != nil {
		return nil, "", err
	}
	password, err := cryptox.GeneratePassword()
	if err != nil {
		return nil, "", err
	}
	return id, password, nil
}

func accountName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return email
}

func (s *accountService) List(ctx context.Context) ([]models.Account, error) {
	return s.store.Accounts(s.store.DB()).List(ctx)
}

func (s *accountService) CreateLocal(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: account name is empty", common.ErrBadRequest)
	}
	id, err := s.store.Accounts(s.store.DB()).Create(ctx, &models.Account{Name: name, Kind: models.KindLocalOnly})
	if err != nil {
		return 0, err
	}
	return id, s.syncer.Publish(ctx)
}

func (s *accountService) dial(serverURL string) (Remote, error) {
	return s.sessions.dial(serverURL)
}

func (s *accountService) SendCode(ctx context.Context, serverURL, email string) error {
	r, err := s.dial(serverURL)
	if err != nil {
		return err
	}
	return r.SendCode(ctx, email)
}

// saveRemote stores a freshly paired account and starts its first sync.
func (s *accountService) saveRemote(ctx context.Context, name string, creds *models.Credentials) (int64, error) {
	userID, deviceID, err := api.TokenScope(creds.Token)
	if err != nil {
		return 0, err
	}
	creds.UserID, creds.DeviceID = userID, deviceID

	acc := &models.Account{Name: accountName(name, creds.Email), Kind: models.KindRemote, Credentials: creds}
	id, err := s.store.Accounts(s.store.DB()).Create(ctx, acc)
	if err != nil {
		return 0, err
	}
	acc.ID = id
	s.logger.Info(ctx, "account paired", "account_id", id, "user_id", userID, "device_id", deviceID)
	s.listen(acc)
	s.syncer.Trigger()
	return id, s.syncer.Publish(ctx)
}

func (s *accountService) SignUp(ctx context.Context, name, serverURL, email, code string) (int64, error) {
	r, err := s.dial(serverURL)
	if err != nil {
		return 0, err
	}
	id, password, err := newDeviceSecrets()
	if err != nil {
		return 0, err
	}

	token, err := r.SignUp(ctx, email, strings.TrimSpace(code), id.PublicBase64(), password)
	if err != nil {
		return 0, err
	}
	return s.saveRemote(ctx, name, &models.Credentials{
		ServerURL:  serverURL,
		Email:      email,
		Token:      token,
		PrivateKey: base64.StdEncoding.EncodeToString(id.Private),
		Password:   password,
	})
}

func (s *accountService) RequestVerification(ctx context.Context, name, serverURL, email string) (*Pending, error) {
	r, err := s.dial(serverURL)
	if err != nil {
		return nil, err
	}
	id, password, err := newDeviceSecrets()
	if err != nil {
		return nil, err
	}

	token, err := r.RequestVerification(ctx, email, id.PublicBase64(), password)
	if err != nil {
		return nil, err
	}
	return &Pending{
		Name:       name,
		ServerURL:  serverURL,
		Email:      email,
		Pubkey:     id.PublicBase64(),
		Token:      token,
		privateKey: base64.StdEncoding.EncodeToString(id.Private),
		password:   password,
	}, nil
}

// WaitVerification blocks until another device approves p, then logs in and
// stores the account. A wait that times out yields common.ErrExpiredPubkey.
func (s *accountService) WaitVerification(ctx context.Context, p *Pending) (int64, error) {
	r, err := s.dial(p.ServerURL)
	if err != nil {
		return 0, err
	}

	ev, err := r.WaitVerification(ctx, p.Token)
	if err != nil {
		return 0, err
	}
	if ev.Type != events.AcceptPendingDevice {
		return 0, common.ErrExpiredPubkey
	}

	token, err := r.Login(ctx, p.Email, p.Pubkey, p.password)
	if err != nil {
		return 0, err
	}
	return s.saveRemote(ctx, p.Name, &models.Credentials{
		ServerURL:  p.ServerURL,
		Email:      p.Email,
		Token:      token,
		PrivateKey: p.privateKey,
		Password:   p.password,
	})
}

func (s *accountService) remote(ctx context.Context, accountID int64) (*models.Account, Remote, error) {
	acc, err := s.store.Accounts(s.store.DB()).Get(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	r, err := s.sessions.Remote(acc)
	if err != nil {
		return nil, nil, err
	}
	return acc, r, nil
}

func (s *accountService) ApproveDevice(ctx context.Context, accountID int64, pubkey string) error {
	_, r, err := s.remote(ctx, accountID)
	if err != nil {
		return err
	}
	d, err := r.AddDevice(ctx, strings.TrimSpace(pubkey))
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "device approved", "account_id", accountID, "device_id", d.ID)
	s.syncer.Trigger()
	return nil
}

func (s *accountService) Devices(ctx context.Context, accountID int64) ([]models.Device, error) {
	return s.store.Devices(s.store.DB()).List(ctx, accountID)
}

// RemoveAccount deletes the account from this device. With leaveServer the
// device is first removed from the server account; the last device of an
// account cannot leave.
func (s *accountService) RemoveAccount(ctx context.Context, accountID int64, leaveServer bool) error {
	acc, err := s.store.Accounts(s.store.DB()).Get(ctx, accountID)
	if err != nil {
		return err
	}
	if leaveServer && acc.Kind == models.KindRemote {
		r, err := s.sessions.Remote(acc)
		if err != nil {
			return err
		}
		if err := r.DeleteDevice(ctx); err != nil && !errors.Is(err, common.ErrNotFound) {
			return err
		}
	}

	s.stopListening(accountID)
	if err := s.store.RemoveAccount(ctx, accountID); err != nil {
		return err
	}
	s.sessions.Forget(accountID)
	return s.syncer.Publish(ctx)
}

func (s *accountService) Listen(ctx context.Context) {
	s.mu.Lock()
	s.listenCtx = ctx
	s.mu.Unlock()

	list, err := s.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "cannot list accounts", "error", err)
		return
	}
	for i := range list {
		if list[i].Kind == models.KindRemote {
			s.listen(&list[i])
		}
	}
}

// listen starts the push listener of acc unless Listen was never called or
// one is already running.
func (s *accountService) listen(acc *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listenCtx == nil || s.listeners[acc.ID] != nil {
		return
	}
	r, err := s.sessions.Remote(acc)
	if err != nil {
		s.logger.Warn(s.listenCtx, "cannot open session", "account_id", acc.ID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(s.listenCtx)
	s.listeners[acc.ID] = cancel
	go r.Listen(ctx, func(ev events.Event) {
		s.logger.Debug(ctx, "push event", "account_id", acc.ID, "type", ev.Type)
		s.syncer.Trigger()
	})
}

func (s *accountService) stopListening(accountID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.listeners[accountID]; ok {
		cancel()
		delete(s.listeners, accountID)
	}
}
