package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/fitmeter/pkg/logger"
)

// DefaultRetentionInterval is how often RunRetention purges.
const DefaultRetentionInterval = 24 * time.Hour

// Purger deletes counters for months strictly before a month key.
// Implemented by PostgresStore.
type Purger interface {
	Purge(ctx context.Context, beforeMonthKey string) (int64, error)
}

// RetentionCutoff returns the oldest month key kept when retaining months
// months of history, including the month of now.
func RetentionCutoff(now time.Time, months int) string {
	keys := PreviousMonthKeys(now, max(months, 1))
	return keys[len(keys)-1]
}

// RetentionOption configures RunRetention.
type RetentionOption func(*retention)

type retention struct {
	interval time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func WithRetentionInterval(d time.Duration) RetentionOption {
	return func(r *retention) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRetentionLogger(l *slog.Logger) RetentionOption {
	return func(r *retention) {
		if l != nil {
			r.log = l
		}
	}
}

func WithRetentionClock(now func() time.Time) RetentionOption {
	return func(r *retention) {
		if now != nil {
			r.now = now
		}
	}
}

// RunRetention purges counters older than the last months months right away and
// then on every interval, until ctx is done. Failures are logged and retried on the
// next tick. Blocks; run it in its own goroutine.
func RunRetention(ctx context.Context, p Purger, months int, opts ...RetentionOption) {
	r := &retention{
		interval: DefaultRetentionInterval,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		cutoff := RetentionCutoff(r.now(), months)
		if n, err := p.Purge(ctx, cutoff); err != nil {
			r.log.WarnContext(ctx, "usage retention purge failed",
				slog.String("before_month", cutoff),
				logger.Error(err),
			)
		} else {
			r.log.InfoContext(ctx, "usage retention purge completed",
				slog.String("before_month", cutoff),
				slog.Int64("removed", n),
			)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
