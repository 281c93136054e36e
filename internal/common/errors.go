// Package common defines shared constants and sentinel errors used across
// CardVault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when a credential exists but belongs to a
	// different user than the one presenting it.
	ErrForbidden = errors.New("forbidden")

	// Auth errors (invalid or malformed access token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")

	// User registration errors.
	ErrUserAlreadyExists = errors.New("user already exists")
)
