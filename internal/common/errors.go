package common

import (
	"errors"
	"strings"
)

// Kind groups errors by how a caller is expected to react to them.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindExpired
	KindUnauthorized
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindExpired:
		return "expired"
	case KindUnauthorized:
		return "unauthorized"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Error is a taxonomy error with a stable machine-readable tag.
// Values are sentinels: compare with errors.Is and add detail by wrapping.
type Error struct {
	Kind Kind
	Tag  string
}

func (e *Error) Error() string {
	return strings.ReplaceAll(e.Tag, "_", " ")
}

var registry = map[string]*Error{}

func newError(kind Kind, tag string) *Error {
	e := &Error{Kind: kind, Tag: tag}
	registry[tag] = e
	return e
}

var (
	// Repository-level errors.
	ErrNotFound = newError(KindNotFound, "not_found")

	ErrInternal = newError(KindInternal, "internal_error")

	// Validation errors, rejected before any store access.
	ErrBadRequest         = newError(KindValidation, "bad_request")
	ErrInvalidPubkey      = newError(KindValidation, "invalid_pubkey")
	ErrInvalidPassword    = newError(KindValidation, "invalid_password")
	ErrInvalidEmail       = newError(KindValidation, "invalid_email")
	ErrNoRequestSpecified = newError(KindValidation, "no_request_specified")
	ErrDevicesMismatch    = newError(KindValidation, "devices_mismatch")
	ErrUnknownFolder      = newError(KindValidation, "unknown_folder")
	ErrUnknownNote        = newError(KindValidation, "unknown_note")
	ErrInvalidCode        = newError(KindValidation, "invalid_code")

	// Conflicts: the caller must re-fetch state and retry.
	ErrCommitMismatch                   = newError(KindConflict, "commit_mismatch")
	ErrDeviceAlreadyExists              = newError(KindConflict, "device_already_exists")
	ErrEmailAlreadyUsed                 = newError(KindConflict, "email_already_used")
	ErrDeviceExistsButPasswordsMismatch = newError(KindConflict, "device_exists_but_passwords_mismatch")
	ErrCannotDeleteOnlyDevice           = newError(KindConflict, "cannot_delete_only_remaining_device")

	ErrEmailNotFound = newError(KindNotFound, "email_not_found")

	ErrExpiredCode   = newError(KindExpired, "expired_code")
	ErrExpiredPubkey = newError(KindExpired, "expired_pubkey")

	// Auth errors.
	ErrInvalidCredentials = newError(KindUnauthorized, "invalid_credentials")
	ErrUnauthorized       = newError(KindUnauthorized, "unauthorized")
	ErrInvalidToken       = newError(KindUnauthorized, "invalid_token")
	ErrTokenExpired       = newError(KindUnauthorized, "token_expired")

	// Client boundary.
	ErrUnavailable = newError(KindTransport, "unavailable")
)

// KindOf reports the taxonomy kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// TagOf returns the stable tag of err, "internal_error" for foreign errors.
func TagOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Tag
	}
	return ErrInternal.Tag
}

// FromTag resolves a tag received over the wire back to its sentinel.
func FromTag(tag string) (*Error, bool) {
	e, ok := registry[tag]
	return e, ok
}
