package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/tourbook/internal/metrics"
	"github.com/robfig/cron/v3"
)

// ResetTokenStore is the subset of repository.UserRepository the reaper needs.
type ResetTokenStore interface {
	ClearExpiredResetTokens(ctx context.Context, now time.Time) (int, error)
}

// Reaper clears password reset tokens whose window has passed. Expired
// tokens are already unusable; this only keeps stale digests out of the
// table.
type Reaper struct {
	store    ResetTokenStore
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
}

// NewReaper parses spec as a standard cron expression or descriptor
// ("@every 5m", "@hourly").
func NewReaper(store ResetTokenStore, spec string, logger *slog.Logger) (*Reaper, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse reaper schedule %q: %w", spec, err)
	}
	return &Reaper{
		store:    store,
		schedule: sched,
		logger:   logger.With("component", "reaper"),
		now:      time.Now,
	}, nil
}

func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("reaper started")

	for {
		next := r.schedule.Next(r.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("reaper shut down")
			return
		case <-timer.C:
			r.Reap(ctx)
		}
	}
}

// Reap runs one cleanup cycle.
func (r *Reaper) Reap(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.ReaperCycleDuration.Observe(time.Since(start).Seconds())
	}()

	cleared, err := r.store.ClearExpiredResetTokens(ctx, r.now())
	if err != nil {
		r.logger.Error("clear expired reset tokens", "error", err)
		return
	}
	if cleared > 0 {
		metrics.ResetTokensClearedTotal.Add(float64(cleared))
		r.logger.Info("cleared expired reset tokens", "count", cleared)
	}
}
