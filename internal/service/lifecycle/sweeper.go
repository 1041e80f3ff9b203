// internal/service/lifecycle/sweeper.go
package lifecycle

import (
	"context"
	"time"

	"authcore-service/internal/obs"

	"go.uber.org/zap"
)

// Sweeper is the background reconciliation job: it writes status='expired'
// on overdue sessions so listings stay queryable, and prunes blacklist rows
// whose token has expired on its own. Authorization decisions never wait on
// it; a delayed sweep only affects analytics and storage growth.
type Sweeper struct {
	sessions  SessionStore
	blacklist BlacklistStore
	interval  time.Duration
	logger    *zap.Logger
}

func NewSweeper(sessions SessionStore, blacklist BlacklistStore, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		sessions:  sessions,
		blacklist: blacklist,
		interval:  interval,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled. Safe to run on multiple replicas:
// both sweep operations are monotonic.
func (w *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one pass.
func (w *Sweeper) Sweep(ctx context.Context) {
	now := time.Now()

	expired, err := w.sessions.MarkExpired(ctx, now)
	if err != nil {
		w.logger.Error("session expiry sweep failed", zap.Error(err))
	} else if expired > 0 {
		obs.SweeperExpired.Add(float64(expired))
		w.logger.Info("marked sessions expired", zap.Int64("count", expired))
	}

	purged, err := w.blacklist.Purge(ctx, now)
	if err != nil {
		w.logger.Error("blacklist purge failed", zap.Error(err))
	} else if purged > 0 {
		obs.SweeperPurged.Add(float64(purged))
		w.logger.Info("purged blacklist entries", zap.Int64("count", purged))
	}
}
