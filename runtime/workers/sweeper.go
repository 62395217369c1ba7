package workers

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredSweeper is satisfied by lifecycle.Manager.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// SweeperWorker removes expired messages from the store on a fixed interval.
// Running it in the relay centralizes a housekeeping participants may also do.
type SweeperWorker struct {
	log      *slog.Logger
	sweeper  ExpiredSweeper
	interval time.Duration
	onSwept  func(int)
}

// NewSweeperWorker calls onSwept, when not nil, with each non zero count.
func NewSweeperWorker(log *slog.Logger, sweeper ExpiredSweeper, interval time.Duration, onSwept func(int)) *SweeperWorker {
	return &SweeperWorker{log: log, sweeper: sweeper, interval: interval, onSwept: onSwept}
}

func (w *SweeperWorker) Run(ctx context.Context) error {
	w.log.Info("Starting sweeper worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			removed, err := w.sweeper.SweepExpired(ctx)
			if err != nil {
				w.log.Warn("Sweep failed", "error", err)
			}
			if removed > 0 {
				w.log.Debug("Expired messages swept", "count", removed)
				if w.onSwept != nil {
					w.onSwept(removed)
				}
			}
		}
	}
}
