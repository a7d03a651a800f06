package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestHelpersSafeBeforeInit(t *testing.T) {
	// Helpers must be no-ops before Init registers the collectors.
	CountMessageHandled()
	CountCommandExecuted()
	CountCommandRejected()
	CountMutation()
	CountGreeting()
	CountSpotifyRefresh(true)
	CountSpotifyRefresh(false)
	SetConnectedChannels(3)
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // second call must not re-register and panic
	if MessagesHandled == nil {
		t.Fatal("Init did not register counters")
	}
	CountMessageHandled()
}

func TestTimeFunc(t *testing.T) {
	ran := false
	d := TimeFunc(nil, func() {
		ran = true
		time.Sleep(time.Millisecond)
	})
	if !ran {
		t.Fatal("TimeFunc did not run fn")
	}
	if d < time.Millisecond {
		t.Errorf("duration = %v, want >= 1ms", d)
	}
}

func TestCorrelationRoundtrip(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("GetCorrelation on empty ctx = %q, want empty", got)
	}
	ctx = WithCorrelation(ctx, "abc-123")
	if got := GetCorrelation(ctx); got != "abc-123" {
		t.Errorf("GetCorrelation = %q, want abc-123", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
