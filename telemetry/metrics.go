// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesHandled         prometheus.Counter
	CommandsExecuted        prometheus.Counter
	CommandsRejected        prometheus.Counter
	CommandMutations        prometheus.Counter
	GreetingsSent           prometheus.Counter
	SpotifyRefreshSucceeded prometheus.Counter
	SpotifyRefreshFailed    prometheus.Counter

	// Histograms (seconds)
	DispatchDuration prometheus.Observer

	// Gauges
	ConnectedChannelsGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesHandled = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_messages_handled_total", Help: "Number of chat messages processed by the dispatcher"})
		CommandsExecuted = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_executed_total", Help: "Number of commands executed"})
		CommandsRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_commands_rejected_total", Help: "Number of command invocations rejected (permission or protection)"})
		CommandMutations = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_command_mutations_total", Help: "Number of command add/edit/delete operations applied"})
		GreetingsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_greetings_sent_total", Help: "Number of greeting replies sent"})
		SpotifyRefreshSucceeded = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_spotify_refresh_succeeded_total", Help: "Number of successful Spotify token refreshes"})
		SpotifyRefreshFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_spotify_refresh_failed_total", Help: "Number of failed Spotify token refreshes"})
		DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_dispatch_duration_seconds", Help: "Message dispatch duration seconds", Buckets: prometheus.DefBuckets})
		ConnectedChannelsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_connected_channels", Help: "Number of channels the bot has joined"})
	})
}

// CountMessageHandled records one dispatched chat message.
func CountMessageHandled() {
	if MessagesHandled != nil {
		MessagesHandled.Inc()
	}
}

// CountCommandExecuted records one executed command.
func CountCommandExecuted() {
	if CommandsExecuted != nil {
		CommandsExecuted.Inc()
	}
}

// CountCommandRejected records one rejected command invocation.
func CountCommandRejected() {
	if CommandsRejected != nil {
		CommandsRejected.Inc()
	}
}

// CountMutation records one applied command mutation.
func CountMutation() {
	if CommandMutations != nil {
		CommandMutations.Inc()
	}
}

// CountGreeting records one greeting reply.
func CountGreeting() {
	if GreetingsSent != nil {
		GreetingsSent.Inc()
	}
}

// CountSpotifyRefresh records a refresh outcome if metrics are initialized.
func CountSpotifyRefresh(ok bool) {
	if ok {
		if SpotifyRefreshSucceeded != nil {
			SpotifyRefreshSucceeded.Inc()
		}
		return
	}
	if SpotifyRefreshFailed != nil {
		SpotifyRefreshFailed.Inc()
	}
}

// SetConnectedChannels records the current joined-channel count.
func SetConnectedChannels(n int) {
	if ConnectedChannelsGauge != nil {
		ConnectedChannelsGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or an empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if one is present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
