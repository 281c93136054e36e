// Package refreshtokens provides a PostgreSQL-backed repository for managing
// refresh tokens used in the server's authentication flow.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cardvault/internal/common"
	"github.com/dmitrijs2005/cardvault/internal/dbx"
	"github.com/dmitrijs2005/cardvault/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new refresh token row.
func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// FindByHashForUpdate returns the refresh token row for the given hash,
// locking it for the duration of the surrounding transaction. If not found,
// it returns common.ErrorNotFound.
func (r *PostgresRepository) FindByHashForUpdate(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked
		FROM refresh_tokens
		WHERE token_hash = $1
		FOR UPDATE
	`
	token := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&token.ID, &token.UserID, &token.TokenHash,
		&token.CreatedAt, &token.ExpiresAt, &token.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// Delete removes a refresh token row by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Revoke marks one refresh token row revoked. Already-revoked rows are left
// as they are.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = true
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeAllForUser marks all of a user's refresh token rows revoked.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `
		UPDATE refresh_tokens
		SET revoked = true
		WHERE user_id = $1 AND revoked = false
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// EnforceCap deletes the user's live rows ranked past max by creation time,
// newest kept first. Must run after the new row is inserted so a session
// never evicts itself.
func (r *PostgresRepository) EnforceCap(ctx context.Context, userID string, max int) error {
	query := `
		DELETE FROM refresh_tokens
		WHERE id IN (
			SELECT id
			FROM refresh_tokens
			WHERE user_id = $1 AND revoked = false AND expires_at > now()
			ORDER BY created_at DESC
			OFFSET $2
		)
	`
	if _, err := r.db.ExecContext(ctx, query, userID, max); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose expires_at is before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
