package cryptox

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	pepper := []byte("fixed-salt")

	h1 := HashPassword(password, pepper)
	h2 := HashPassword(password, pepper)

	if !bytes.Equal(h1, h2) {
		t.Errorf("expected same result for same inputs, got different")
	}

	expectedHex := "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39"
	if hex.EncodeToString(h1) != expectedHex {
		t.Errorf("expected %s, got %s", expectedHex, hex.EncodeToString(h1))
	}
}

func TestHashPassword_DifferentPepper(t *testing.T) {
	password := []byte("secret-password")

	h1 := HashPassword(password, []byte("pepper-1"))
	h2 := HashPassword(password, []byte("pepper-2"))

	assert.False(t, EqualHashes(h1, h2))
	assert.True(t, EqualHashes(h1, HashPassword(password, []byte("pepper-1"))))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name    string
		pw      string
		wantErr bool
	}{
		{"too short", strings.Repeat("a", 31), true},
		{"min", strings.Repeat("a", 32), false},
		{"max", strings.Repeat("a", 64), false},
		{"too long", strings.Repeat("a", 65), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.pw)
			if tt.wantErr {
				assert.ErrorIs(t, err, common.ErrInvalidPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGeneratePassword_Valid(t *testing.T) {
	pw, err := GeneratePassword()
	require.NoError(t, err)
	assert.NoError(t, ValidatePassword(pw))
}
