package greeting

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// StartRotationJob launches a goroutine that deletes the previous day's
// greeting entries for every known channel shortly after midnight Istanbul time
// (00:30, like the original cron schedule). One channel failing does not abort
// the sweep. The goroutine exits when ctx is done.
func StartRotationJob(ctx context.Context, db *sql.DB) {
	ledger := NewLedger(db)
	go func() {
		for {
			next := nextRunAfter(time.Now())
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Until(next)):
			}
			sweepOnce(ctx, ledger)
		}
	}()
}

// nextRunAfter returns the next 00:30 Istanbul strictly after now.
func nextRunAfter(now time.Time) time.Time {
	local := now.In(istanbul)
	run := time.Date(local.Year(), local.Month(), local.Day(), 0, 30, 0, 0, istanbul)
	if !run.After(local) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}

func sweepOnce(ctx context.Context, ledger *Ledger) {
	prev := PreviousDayKey(time.Now())
	channels, err := ledger.Channels(ctx)
	if err != nil {
		slog.Error("greeting rotation: list channels", slog.Any("err", err))
		return
	}
	for _, ch := range channels {
		if err := ledger.Rotate(ctx, ch, prev); err != nil {
			slog.Warn("greeting rotation failed for channel", slog.String("channel", ch), slog.String("day", prev), slog.Any("err", err))
			continue
		}
		slog.Info("greeting entries rotated", slog.String("channel", ch), slog.String("day", prev))
	}
}
