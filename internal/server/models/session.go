package models

import "time"

// Session bundles one freshly minted access token with one refresh token.
// It is a return-only value: the two halves have independent lifecycles and
// the bundle itself is never persisted.
type Session struct {
	UserID           string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}
