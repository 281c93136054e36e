// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/cardvault/internal/server/models"
)

// Repository defines operations for issuing, rotating, capping, and revoking
// refresh tokens. Lookups are by token hash: raw values are never stored.
type Repository interface {
	// Create stores a new refresh token row.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHashForUpdate looks a refresh token up by its stored hash and,
	// when running inside a transaction, locks the matched row so concurrent
	// rotations of the same value serialize on it. Absent hashes yield
	// common.ErrorNotFound.
	FindByHashForUpdate(ctx context.Context, hash string) (*models.RefreshToken, error)

	// Delete removes a refresh token row by id. Deleting a non-existent row
	// is not an error.
	Delete(ctx context.Context, id string) error

	// Revoke idempotently marks one row revoked.
	Revoke(ctx context.Context, id string) error

	// RevokeAllForUser idempotently marks all of a user's rows revoked.
	RevokeAllForUser(ctx context.Context, userID string) error

	// EnforceCap deletes the user's live (non-expired, non-revoked) rows
	// beyond max, oldest first. Runs after an insert, in the same tx.
	EnforceCap(ctx context.Context, userID string, max int) error

	// DeleteExpired physically removes rows whose expiry has passed and
	// returns the number removed. Storage hygiene only: expired rows are
	// already treated as invalid everywhere else.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
