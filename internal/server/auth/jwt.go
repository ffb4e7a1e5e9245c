// Package auth issues and verifies the bearer tokens that scope a request to
// one (user, device) pair.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Kind separates fully paired devices from devices waiting for approval.
type Kind string

const (
	KindDevice        Kind = "device"
	KindPendingDevice Kind = "pending_device"
)

// Claims carries the registered claims plus the device scope.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64 `json:"user_id"`
	DeviceID int64 `json:"device_id"`
	Kind     Kind  `json:"kind"`
}

// Issuer signs and parses HS256 tokens with one shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

func NewIssuer(secret []byte) *Issuer {
	return &Issuer{secret: secret, now: time.Now}
}

func (i *Issuer) Issue(userID, deviceID int64, kind Kind, ttl time.Duration) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:   userID,
		DeviceID: deviceID,
		Kind:     kind,
	})

	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

// Parse verifies the signature and expiry. Expired tokens yield
// common.ErrTokenExpired, anything else unusable common.ErrInvalidToken.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == 0 || claims.DeviceID == 0 {
		return nil, common.ErrInvalidToken
	}
	if claims.Kind != KindDevice && claims.Kind != KindPendingDevice {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
