// Package common defines shared constants and sentinel errors used across
// FortiFile components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors. ErrorNotFound is also returned when the caller
	// is not allowed to see the record, so existence never leaks.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Cipher errors.
	ErrorDecryptionFailed = errors.New("decryption failed")
	ErrorKeyFormat        = errors.New("invalid key format")

	// Decryption-code exchange errors.
	ErrorDeliveryFailed   = errors.New("delivery failed")
	ErrorTooManyAttempts  = errors.New("too many attempts")
	ErrorCodeExpired      = errors.New("code expired")
	ErrorNoCode           = errors.New("no decryption code issued")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
