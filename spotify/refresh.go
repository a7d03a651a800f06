package spotify

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// StartRefreshJob launches a goroutine that periodically refreshes every
// channel's access token so the pool stays warm between expiries. The interval
// should stay below the token lifetime (Spotify tokens live one hour; the
// original cron ran every 50 minutes). Startup and per-iteration jitter spread
// load across instances.
func StartRefreshJob(ctx context.Context, m *Manager, interval time.Duration) {
	if interval <= 0 {
		interval = 50 * time.Minute
	}
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 10)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			slog.Info("spotify refresh sweep starting")
			sweepCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			if err := m.RefreshAll(sweepCtx); err != nil {
				slog.Error("spotify refresh sweep failed", slog.Any("err", err))
			}
			cancel()

			// ±10% jitter keeps multiple instances from stampeding the token endpoint.
			jitterRange := int64(interval / 10)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			select {
			case <-ctx.Done():
				return
			case <-time.After(interval + jitter):
			}
		}
	}()
}
