package devices

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	// GetByPubkey returns the device with its owner, UserID zero when unlinked.
	GetByPubkey(ctx context.Context, pubkey string) (*models.Device, error)
	Create(ctx context.Context, pubkey string, passwordHash []byte) (*models.Device, error)
	Link(ctx context.Context, userID, deviceID int64) error
	// ListByUser returns every device linked to the user, ordered by id.
	ListByUser(ctx context.Context, userID int64) ([]models.Device, error)
	// Delete removes the device with the replicas it received and sent.
	// Receivers of a removed sender hold no replica and must request again.
	Delete(ctx context.Context, deviceID int64) error
	// FindForLogin resolves the device by email and pubkey, only when linked.
	FindForLogin(ctx context.Context, email, pubkey string) (*models.Device, error)

	UpsertPending(ctx context.Context, userID, deviceID int64, now time.Time) error
	GetPending(ctx context.Context, userID, deviceID int64) (*models.PendingDevice, error)
	DeletePending(ctx context.Context, userID, deviceID int64) error
}
