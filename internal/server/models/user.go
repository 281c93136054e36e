// Package models holds the server-side data model for the auth core.
package models

import "time"

type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	CreatedAt    time.Time
}
