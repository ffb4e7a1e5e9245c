package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
)

// DeviceService exposes the device roster of an account.
type DeviceService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    Notifier
}

func NewDeviceService(db *sql.DB, m repomanager.RepositoryManager, n Notifier) *DeviceService {
	return &DeviceService{db: db, repomanager: m, notifier: n}
}

// ListDevices returns the caller's other devices.
func (s *DeviceService) ListDevices(ctx context.Context, c Caller) ([]models.Device, error) {
	all, err := s.repomanager.Devices(s.db).ListByUser(ctx, c.UserID)
	if err != nil {
		return nil, err
	}

	others := make([]models.Device, 0, len(all))
	for _, d := range all {
		if d.ID != c.DeviceID {
			others = append(others, d)
		}
	}
	return others, nil
}

// DeleteDevice removes the calling device. Its replicas and requests go with
// it. The last device of an account cannot be removed.
func (s *DeviceService) DeleteDevice(ctx context.Context, c Caller) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		devices := s.repomanager.Devices(tx)

		all, err := devices.ListByUser(ctx, c.UserID)
		if err != nil {
			return err
		}
		if len(all) <= 1 {
			return common.ErrCannotDeleteOnlyDevice
		}
		return devices.Delete(ctx, c.DeviceID)
	})
	if err != nil {
		return err
	}

	s.notifier.BroadcastExcept(ctx, c.UserID, c.DeviceID, events.NewRefreshRemote())
	return nil
}
