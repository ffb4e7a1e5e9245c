// Package cryptox holds the device credential primitives: password hashing,
// X25519 identity keys and the pairwise cipher that seals content between two
// devices of the same account.
package cryptox

import (
	"crypto/subtle"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	MinPasswordLen = 32
	MaxPasswordLen = 64
)

// HashPassword derives the stored device password hash. It is deterministic
// for a given pepper so login can match the (email, pubkey, hash) triple.
func HashPassword(password, pepper []byte) []byte {
	return argon2.IDKey(password, pepper, 1, 64*1024, 4, 32)
}

// EqualHashes compares two password hashes in constant time.
func EqualHashes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// ValidatePassword checks the raw device password length.
func ValidatePassword(password string) error {
	if n := len(password); n < MinPasswordLen || n > MaxPasswordLen {
		return common.ErrInvalidPassword
	}
	return nil
}

// GeneratePassword returns a random device password of 48 hex characters.
func GeneratePassword() (string, error) {
	return common.MakeRandHexString(24)
}
