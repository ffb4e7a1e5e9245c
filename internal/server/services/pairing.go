package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/config"
	mailer "github.com/dmitrijs2005/gophnotes/internal/server/mail"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
)

const codeDigits = 8

// PairingService admits devices into accounts: sign-up with an emailed code,
// login, and the request_verification/add_device handshake between a new
// device and an already paired one.
type PairingService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      *auth.Issuer
	mailer      mailer.Mailer
	listen      Notifier
	pending     Notifier
	logger      logging.Logger

	pepper          []byte
	deviceTokenTTL  time.Duration
	pendingTokenTTL time.Duration
	codeLifetime    time.Duration
	pendingLifetime time.Duration
	now             func() time.Time
}

func NewPairingService(db *sql.DB, m repomanager.RepositoryManager, issuer *auth.Issuer, ml mailer.Mailer,
	listen, pending Notifier, cfg *config.Config, logger logging.Logger) *PairingService {
	return &PairingService{
		db:              db,
		repomanager:     m,
		issuer:          issuer,
		mailer:          ml,
		listen:          listen,
		pending:         pending,
		logger:          logger.With("module", "pairing"),
		pepper:          []byte(cfg.PasswordPepper),
		deviceTokenTTL:  cfg.DeviceTokenValidityDuration,
		pendingTokenTTL: cfg.PendingTokenValidityDuration,
		codeLifetime:    cfg.CodeLifetime,
		pendingLifetime: cfg.PendingLifetime,
		now:             time.Now,
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", common.ErrInvalidEmail
	}
	return email, nil
}

// validateCredentials checks the request shape before any store access.
func validateCredentials(email, pubkey, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if _, err := cryptox.ParsePublicKey(pubkey); err != nil {
		return "", err
	}
	if err := cryptox.ValidatePassword(password); err != nil {
		return "", err
	}
	return email, nil
}

func (s *PairingService) SendCode(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	users := s.repomanager.Users(s.db)
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return common.ErrEmailAlreadyUsed
	} else if !errors.Is(err, common.ErrNotFound) {
		return err
	}

	code, err := common.MakeRandDigits(codeDigits)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := users.UpsertPending(ctx, email, code, s.now()); err != nil {
		return err
	}
	return s.mailer.SendCode(ctx, email, code)
}

// registerDevice returns the device for pubkey, creating it when unknown.
// A known pubkey must come with the same password.
func (s *PairingService) registerDevice(ctx context.Context, tx dbx.DBTX, pubkey string, hash []byte) (*models.Device, error) {
	devices := s.repomanager.Devices(tx)

	d, err := devices.GetByPubkey(ctx, pubkey)
	if errors.Is(err, common.ErrNotFound) {
		return devices.Create(ctx, pubkey, hash)
	}
	if err != nil {
		return nil, err
	}
	if !cryptox.EqualHashes(d.PasswordHash, hash) {
		return nil, common.ErrDeviceExistsButPasswordsMismatch
	}
	return d, nil
}

func (s *PairingService) SignUp(ctx context.Context, email, code, pubkey, password string) (string, error) {
	email, err := validateCredentials(email, pubkey, password)
	if err != nil {
		return "", err
	}

	users := s.repomanager.Users(s.db)
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return "", common.ErrEmailAlreadyUsed
	} else if !errors.Is(err, common.ErrNotFound) {
		return "", err
	}

	p, err := users.GetPending(ctx, email)
	if err != nil {
		return "", mapNotFound(err, common.ErrInvalidCode)
	}
	if models.Expired(p.UpdatedAt, s.now(), s.codeLifetime) {
		return "", common.ErrExpiredCode
	}
	if !cryptox.EqualHashes([]byte(p.Code), []byte(code)) {
		return "", common.ErrInvalidCode
	}

	hash := cryptox.HashPassword([]byte(password), s.pepper)
	var userID, deviceID int64

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)

		d, err := s.registerDevice(ctx, tx, pubkey, hash)
		if err != nil {
			return err
		}
		if d.UserID != 0 {
			return common.ErrDeviceAlreadyExists
		}
		u, err := users.Create(ctx, email)
		if err != nil {
			return err
		}
		if err := s.repomanager.Devices(tx).Link(ctx, u.ID, d.ID); err != nil {
			return err
		}
		userID, deviceID = u.ID, d.ID
		return users.DeletePending(ctx, email)
	})
	if err != nil {
		return "", err
	}

	s.logger.Info(ctx, "user signed up", "user_id", userID, "device_id", deviceID)
	return s.issuer.Issue(userID, deviceID, auth.KindDevice, s.deviceTokenTTL)
}

func (s *PairingService) Login(ctx context.Context, email, pubkey, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", common.ErrInvalidCredentials
	}

	d, err := s.repomanager.Devices(s.db).FindForLogin(ctx, email, pubkey)
	if err != nil {
		return "", mapNotFound(err, common.ErrInvalidCredentials)
	}
	if !cryptox.EqualHashes(d.PasswordHash, cryptox.HashPassword([]byte(password), s.pepper)) {
		return "", common.ErrInvalidCredentials
	}

	return s.issuer.Issue(d.UserID, d.ID, auth.KindDevice, s.deviceTokenTTL)
}

// RequestVerification registers an unpaired device against the account of
// email and returns a short-lived PendingDevice token for the wait channel.
func (s *PairingService) RequestVerification(ctx context.Context, email, pubkey, password string) (string, error) {
	email, err := validateCredentials(email, pubkey, password)
	if err != nil {
		return "", err
	}

	hash := cryptox.HashPassword([]byte(password), s.pepper)
	var userID, deviceID int64

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		u, err := s.repomanager.Users(tx).GetByEmail(ctx, email)
		if err != nil {
			return mapNotFound(err, common.ErrEmailNotFound)
		}
		d, err := s.registerDevice(ctx, tx, pubkey, hash)
		if err != nil {
			return err
		}
		if d.UserID != 0 {
			return common.ErrDeviceAlreadyExists
		}
		userID, deviceID = u.ID, d.ID
		return s.repomanager.Devices(tx).UpsertPending(ctx, u.ID, d.ID, s.now())
	})
	if err != nil {
		return "", err
	}

	return s.issuer.Issue(userID, deviceID, auth.KindPendingDevice, s.pendingTokenTTL)
}

// AddDevice admits the pending device with pubkey into the caller's account
// and wakes the device's verification wait channel.
func (s *PairingService) AddDevice(ctx context.Context, c Caller, pubkey string) (*models.Device, error) {
	if _, err := cryptox.ParsePublicKey(pubkey); err != nil {
		return nil, err
	}

	var added *models.Device

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		devices := s.repomanager.Devices(tx)

		d, err := devices.GetByPubkey(ctx, pubkey)
		if err != nil {
			return err
		}
		// Devices of other accounts are reported as unknown.
		switch d.UserID {
		case 0:
		case c.UserID:
			return common.ErrDeviceAlreadyExists
		default:
			return common.ErrNotFound
		}

		p, err := devices.GetPending(ctx, c.UserID, d.ID)
		if err != nil {
			return err
		}
		if models.Expired(p.UpdatedAt, s.now(), s.pendingLifetime) {
			return common.ErrExpiredPubkey
		}

		if err := devices.DeletePending(ctx, c.UserID, d.ID); err != nil {
			return err
		}
		if err := devices.Link(ctx, c.UserID, d.ID); err != nil {
			return err
		}
		d.UserID = c.UserID
		added = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "device added", "user_id", c.UserID, "device_id", added.ID, "by", c.DeviceID)
	s.pending.SendToDevice(ctx, c.UserID, added.ID, events.NewAcceptPendingDevice())
	s.listen.BroadcastExcept(ctx, c.UserID, c.DeviceID, events.NewRefreshRemote())
	return added, nil
}
