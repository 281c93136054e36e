package models

import "time"

// RefreshToken is the persisted half of a session. Only the SHA-256 hash of
// the opaque token value is stored; the raw value leaves the process exactly
// once, inside the Session returned to the caller.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	Revoked   bool
}
