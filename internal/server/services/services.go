// Package services implements the ledger, pairing and device operations on
// top of the repositories. Every mutating operation runs in one transaction
// and notifies the user's other devices only after it commits.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/events"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
)

// Notifier delivers push events to live device channels.
type Notifier interface {
	SendToDevice(ctx context.Context, userID, deviceID int64, ev events.Event) bool
	BroadcastExcept(ctx context.Context, userID, excluded int64, ev events.Event)
}

// Caller identifies the authenticated device issuing a request.
type Caller struct {
	UserID   int64
	DeviceID int64
}

// checkDevices enforces that ids names each of the caller's other devices
// exactly once.
func checkDevices(ctx context.Context, rm repomanager.RepositoryManager, db dbx.DBTX, c Caller, ids []int64) error {
	list, err := rm.Devices(db).ListByUser(ctx, c.UserID)
	if err != nil {
		return err
	}

	others := make(map[int64]bool, len(list))
	for _, d := range list {
		if d.ID != c.DeviceID {
			others[d.ID] = false
		}
	}
	if len(ids) != len(others) {
		return common.ErrDevicesMismatch
	}
	for _, id := range ids {
		seen, ok := others[id]
		if !ok || seen {
			return common.ErrDevicesMismatch
		}
		others[id] = true
	}
	return nil
}

// mapNotFound swaps common.ErrNotFound for a more specific error.
func mapNotFound(err, to error) error {
	if errors.Is(err, common.ErrNotFound) {
		return to
	}
	return err
}
