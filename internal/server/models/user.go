// Package models defines the ledger rows persisted by the server.
package models

import "time"

type User struct {
	ID        int64
	Email     string
	CreatedAt time.Time
}

// PendingUser holds the one-time sign-up code mailed to an email address.
type PendingUser struct {
	Email     string
	Code      string
	UpdatedAt time.Time
}

// Device is an identity key registered with the ledger. UserID is zero until
// the device is linked to a user.
type Device struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"-"`
	Pubkey       string    `json:"pubkey"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingDevice is a device waiting for an already paired device to admit it.
type PendingDevice struct {
	UserID    int64
	DeviceID  int64
	UpdatedAt time.Time
}

// Expired reports whether t is older than lifetime at now.
func Expired(t, now time.Time, lifetime time.Duration) bool {
	return now.Sub(t) > lifetime
}
