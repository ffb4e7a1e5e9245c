package syncer

import (
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
)

// roster holds the account's other devices and the pairwise ciphers shared
// with them.
type roster struct {
	identity *cryptox.Identity
	devices  []models.Device
	pairs    map[int64]*cryptox.Pair
}

func identityOf(acc *models.Account) (*cryptox.Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(acc.Credentials.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("decode device key: %w", err)
	}
	return cryptox.IdentityFromPrivate(raw)
}

func (r *roster) pair(deviceID int64) (*cryptox.Pair, error) {
	if p, ok := r.pairs[deviceID]; ok {
		return p, nil
	}
	for _, d := range r.devices {
		if d.ID == deviceID {
			p, err := cryptox.NewPair(r.identity, d.Pubkey)
			if err != nil {
				return nil, fmt.Errorf("device %d: %w", deviceID, err)
			}
			r.pairs[deviceID] = p
			return p, nil
		}
	}
	return nil, fmt.Errorf("device %d is not in the roster", deviceID)
}

func (r *roster) seal(deviceID int64, plain string) (string, error) {
	p, err := r.pair(deviceID)
	if err != nil {
		return "", err
	}
	return p.Seal(plain)
}

func (r *roster) open(senderID int64, sealed string) (string, error) {
	p, err := r.pair(senderID)
	if err != nil {
		return "", err
	}
	return p.Open(sealed)
}

func (r *roster) sealOptional(deviceID int64, plain *string) (*string, error) {
	if plain == nil {
		return nil, nil
	}
	v, err := r.seal(deviceID, *plain)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *roster) openOptional(senderID int64, sealed *string) (*string, error) {
	if sealed == nil {
		return nil, nil
	}
	v, err := r.open(senderID, *sealed)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// refreshRoster replaces the cached device list with the server's. The cache
// is only written when the roster changed.
func (p *pass) refreshRoster(ctx context.Context) error {
	remote, err := p.remote.Devices(ctx)
	if err != nil {
		return err
	}
	list := make([]models.Device, 0, len(remote))
	for _, d := range remote {
		list = append(list, models.Device{ID: d.ID, AccountID: p.acc.ID, Pubkey: d.Pubkey})
	}
	slices.SortFunc(list, func(a, b models.Device) int { return cmp.Compare(a.ID, b.ID) })

	st := p.s.store
	cached, err := st.Devices(st.DB()).List(ctx, p.acc.ID)
	if err != nil {
		return err
	}
	if !slices.Equal(cached, list) {
		err = st.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			return st.Devices(tx).Replace(ctx, p.acc.ID, list)
		})
		if err != nil {
			return err
		}
	}

	p.roster.devices = list
	p.roster.pairs = make(map[int64]*cryptox.Pair, len(list))
	return nil
}
