// Package common defines shared constants and sentinel errors used across
// client and server layers of Privora. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Share ledger errors.
	ErrAccessDenied   = errors.New("access denied")
	ErrDuplicateGrant = errors.New("duplicate grant")
	ErrExpired        = errors.New("grant expired")
	ErrRevoked        = errors.New("grant revoked")
	ErrQuotaExceeded  = errors.New("access quota exceeded")

	// File errors.
	ErrFileTooLarge    = errors.New("file exceeds size limit")
	ErrVersionConflict = errors.New("version conflict")

	// Crypto errors. ErrDecryption means a wrong passphrase or a
	// malformed/truncated envelope, never a transport failure.
	ErrDecryption = errors.New("decryption failed")

	// Transfer errors.
	ErrDuplicateTransfer  = errors.New("duplicate transfer")
	ErrNetworkTimeout     = errors.New("network timeout")
	ErrRangeUnsupported   = errors.New("range requests unsupported")
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
