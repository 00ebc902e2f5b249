package storage

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically prunes revocation rows whose tokens have expired.
// Without it the blacklist tables grow without bound; an entry past its
// token's exp claim can never matter again.
type Sweeper struct {
	store    *Store
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(store *Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, pruning once per interval.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := s.store.PruneExpiredTokens(ctx, time.Now())
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Error("token sweep failed", "error", err)
				}
				continue
			}
			if pruned > 0 {
				s.logger.Info("token sweep", "pruned", pruned)
			}
		}
	}
}
