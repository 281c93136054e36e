// Package services contains server-side business logic. This file implements
// SessionService, which owns the full refresh-token lifecycle: issuing
// sessions at registration/login, rotating refresh tokens, capping live
// tokens per user, revoking them, and validating access tokens.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cardvault/internal/common"
	"github.com/dmitrijs2005/cardvault/internal/dbx"
	"github.com/dmitrijs2005/cardvault/internal/logging"
	"github.com/dmitrijs2005/cardvault/internal/server/auth"
	"github.com/dmitrijs2005/cardvault/internal/server/config"
	"github.com/dmitrijs2005/cardvault/internal/server/models"
	"github.com/dmitrijs2005/cardvault/internal/server/repositories/repomanager"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// SessionService provides authentication-related operations:
//   - Register: create a user and their first session in one transaction
//   - Login: verify credentials and mint a session
//   - Refresh: rotate a refresh token and mint a new session
//   - RevokeOne / RevokeAll: invalidate stored refresh tokens
//   - Validate: stateless access-token verification
type SessionService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	logger                       logging.Logger
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	sessionCap                   int
}

// NewSessionService constructs a SessionService using repositories and server
// config. An empty signing secret is a configuration error: the server must
// refuse to start rather than issue unverifiable tokens.
func NewSessionService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) (*SessionService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session service config: %w", err)
	}
	return &SessionService{
		db:                           db,
		repomanager:                  m,
		logger:                       logger,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		sessionCap:                   cfg.SessionCap,
	}, nil
}

// Register creates a new user and issues their first session. The user row
// and the refresh-token row are written in the same transaction: either both
// succeed or neither does, so there are no accounts without a session.
func (s *SessionService) Register(ctx context.Context, username, password string) (*models.User, *models.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, common.ErrorInternal
	}

	var user *models.User
	var session *models.Session
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.Users(tx)
		u, err := repoTx.Create(ctx, &models.User{UserName: username, PasswordHash: hash})
		if err != nil {
			if errors.Is(err, common.ErrUserAlreadyExists) {
				return err
			}
			return fmt.Errorf("error creating user: %w", err)
		}
		user = u
		session, err = s.issueSession(ctx, user, tx)
		return err
	}); err != nil {
		return nil, nil, err
	}
	return user, session, nil
}

// Login verifies the provided password against the stored bcrypt hash and,
// on success, issues a new session. Unknown users and wrong passwords are
// indistinguishable to the caller.
func (s *SessionService) Login(ctx context.Context, username, password string) (*models.Session, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error looking up user: %w", err)
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}

	var session *models.Session
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var issueErr error
		session, issueErr = s.issueSession(ctx, user, tx)
		return issueErr
	}); err != nil {
		return nil, err
	}
	return session, nil
}

// Refresh validates a presented refresh token value and atomically replaces
// it with a new session. The matched row is locked for the duration of the
// transaction, so of two concurrent rotations presenting the same value
// exactly one succeeds; the other observes common.ErrorNotFound.
//
// Failure taxonomy, in check order: common.ErrorNotFound (no such token),
// common.ErrForbidden (token belongs to another user), then
// common.ErrRefreshTokenExpired, then common.ErrRefreshTokenRevoked.
func (s *SessionService) Refresh(ctx context.Context, userID, refreshValue string) (*models.Session, error) {
	hash := auth.HashRefreshToken(refreshValue)

	var session *models.Session
	if err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repomanager.RefreshTokens(tx)

		token, err := repoTx.FindByHashForUpdate(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorNotFound
			}
			return fmt.Errorf("error searching refresh token: %w", err)
		}
		if token.UserID != userID {
			// possible credential theft, keep a trace
			s.logger.Warn(ctx, "refresh token ownership mismatch",
				"user_id", userID, "token_user_id", token.UserID)
			return common.ErrForbidden
		}
		if token.ExpiresAt.Before(time.Now()) {
			return common.ErrRefreshTokenExpired
		}
		if token.Revoked {
			s.logger.Warn(ctx, "revoked refresh token presented", "user_id", userID)
			return common.ErrRefreshTokenRevoked
		}

		if err := repoTx.Delete(ctx, token.ID); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, token.UserID)
		if err != nil {
			return fmt.Errorf("error loading token owner: %w", err)
		}

		session, err = s.issueSession(ctx, user, tx)
		return err
	}); err != nil {
		return nil, err
	}
	return session, nil
}

// RevokeOne idempotently marks a single refresh token revoked.
func (s *SessionService) RevokeOne(ctx context.Context, refreshID string) error {
	repo := s.repomanager.RefreshTokens(s.db)
	if err := repo.Revoke(ctx, refreshID); err != nil {
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	return nil
}

// RevokeAll idempotently marks all of a user's refresh tokens revoked.
// Used for logout-all, password changes, or suspected compromise.
func (s *SessionService) RevokeAll(ctx context.Context, userID string) error {
	repo := s.repomanager.RefreshTokens(s.db)
	if err := repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("error revoking refresh tokens: %w", err)
	}
	return nil
}

// Validate verifies an access token's signature, expiry, and claim shape
// without touching the store. It never triggers a refresh itself; callers
// react to the failure.
func (s *SessionService) Validate(accessValue string) (*auth.Claims, error) {
	return auth.ParseToken(accessValue, s.jwtSecret)
}

// --- helpers below ---

// issueSession mints an access/refresh pair for user and persists the hashed
// refresh half on the given handle. Cap enforcement runs after the insert, in
// the same transaction, so the new session never evicts itself.
func (s *SessionService) issueSession(ctx context.Context, user *models.User, tx dbx.DBTX) (*models.Session, error) {
	now := time.Now()
	accessExpires := now.Add(s.accessTokenValidityDuration)
	refreshExpires := now.Add(s.refreshTokenValidityDuration)

	access, err := auth.GenerateToken(user.ID, user.UserName, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	refresh, err := auth.NewRefreshTokenValue()
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshRepo := s.repomanager.RefreshTokens(tx)
	if err := refreshRepo.Create(ctx, &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: auth.HashRefreshToken(refresh),
		ExpiresAt: refreshExpires,
	}); err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	if err := refreshRepo.EnforceCap(ctx, user.ID, s.sessionCap); err != nil {
		return nil, fmt.Errorf("error enforcing session cap: %w", err)
	}

	return &models.Session{
		UserID:           user.ID,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExpires,
		RefreshExpiresAt: refreshExpires,
	}, nil
}
