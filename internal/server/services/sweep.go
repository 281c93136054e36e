package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/cardvault/internal/logging"
	"github.com/dmitrijs2005/cardvault/internal/server/repositories/repomanager"
)

// Sweeper periodically removes expired refresh-token rows. This is storage
// hygiene only: rotation and validation already treat expired rows as
// invalid, so nothing depends on a sweep having run.
type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	interval    time.Duration
}

// NewSweeper constructs a Sweeper that fires every interval.
func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{db: db, repomanager: m, logger: logger, interval: interval}
}

// SweepOnce deletes rows whose expiry has passed and returns the count.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	repo := s.repomanager.RefreshTokens(s.db)
	return repo.DeleteExpired(ctx, time.Now())
}

// Run loops until ctx is cancelled, sweeping every interval. Errors are
// logged and the loop continues; the next tick retries.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error(ctx, "refresh token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info(ctx, "swept expired refresh tokens", "deleted", n)
			}
		}
	}
}
