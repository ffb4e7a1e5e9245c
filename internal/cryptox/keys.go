package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the raw size of X25519 private and public keys.
const KeySize = curve25519.ScalarSize

var pairInfo = []byte("gophnotes device pair")

// ErrMalformedCiphertext is returned by Open for input that is not a framed
// ciphertext produced by Seal.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// Identity is a device's long-lived key pair.
type Identity struct {
	Private []byte
	Public  []byte
}

// GenerateIdentity creates a fresh X25519 key pair.
func GenerateIdentity() (*Identity, error) {
	priv := common.GenerateRandByteArray(KeySize)
	if priv == nil {
		return nil, errors.New("random source failed")
	}
	return IdentityFromPrivate(priv)
}

// IdentityFromPrivate recomputes the public half of a stored private key.
func IdentityFromPrivate(priv []byte) (*Identity, error) {
	if len(priv) != KeySize {
		return nil, fmt.Errorf("private key must be %d bytes", KeySize)
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	return &Identity{Private: append([]byte(nil), priv...), Public: pub}, nil
}

// PublicBase64 is the wire form of the public key.
func (id *Identity) PublicBase64() string {
	return base64.StdEncoding.EncodeToString(id.Public)
}

// ParsePublicKey decodes a base64 public key and checks it is exactly
// KeySize raw bytes.
func ParsePublicKey(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(raw) != KeySize {
		return nil, common.ErrInvalidPubkey
	}
	return raw, nil
}

// Pair seals and opens messages exchanged between one device pair. Both
// sides derive the same key: X25519(a.priv, b.pub) == X25519(b.priv, a.pub).
type Pair struct {
	aead cipher.AEAD
}

// NewPair derives the pairwise AES-256-GCM key from own private key and the
// peer's base64 public key.
func NewPair(own *Identity, peerPublic string) (*Pair, error) {
	peer, err := ParsePublicKey(peerPublic)
	if err != nil {
		return nil, err
	}
	shared, err := curve25519.X25519(own.Private, peer)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(shared)

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, pairInfo), key); err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Pair{aead: aead}, nil
}

// Seal encrypts plaintext under a random nonce and returns
// base64(nonce || ciphertext).
func (p *Pair) Seal(plaintext string) (string, error) {
	nonce := common.GenerateRandByteArray(p.aead.NonceSize())
	if nonce == nil {
		return "", errors.New("random source failed")
	}
	sealed := p.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (p *Pair) Open(framed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(framed)
	if err != nil || len(raw) < p.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}
	nonce, body := raw[:p.aead.NonceSize()], raw[p.aead.NonceSize():]
	plain, err := p.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
