// Package common defines shared constants and sentinel errors used across
// the idkeeper server and client. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Request validation.
	ErrorValidation = errors.New("missing fields required")

	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorConflict      = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal           = errors.New("internal error")
	ErrorInvalidCredentials = errors.New("invalid credentials")
	ErrorUnauthenticated    = errors.New("unauthenticated")
	ErrorForbidden          = errors.New("forbidden")

	// Single-use secret lifecycle errors.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrMfaNotRequested       = errors.New("mfa not requested or expired")
	ErrInvalidOrExpiredMfa   = errors.New("invalid or expired mfa code")
	ErrAlreadyVerified       = errors.New("email already verified")

	// Session token errors (invalid or malformed token, expiry).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
