package greeting

import (
	"context"
	"testing"
	"time"

	"github.com/emircodes/automagic/testutil"
)

func TestDayKeyFixedTimezone(t *testing.T) {
	// 23:30 UTC on 1 Jan is already 02:30 on 2 Jan in Istanbul (UTC+3).
	utc := time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC)
	if got := DayKey(utc); got != "02012025" {
		t.Errorf("DayKey = %q, want 02012025", got)
	}
	if got := PreviousDayKey(utc); got != "01012025" {
		t.Errorf("PreviousDayKey = %q, want 01012025", got)
	}
}

func TestDayKeyAgreesAcrossZones(t *testing.T) {
	instant := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	if DayKey(instant) != DayKey(instant.In(ny)) {
		t.Error("DayKey must not depend on the input's location")
	}
}

func TestRecordIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()
	day := DayKey(time.Now())

	if err := ledger.Record(ctx, "foo", day, "alice"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := ledger.Record(ctx, "foo", day, "alice"); err != nil {
		t.Fatalf("second Record: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM greetings WHERE channel='foo' AND day_key=$1 AND username='alice'`, day).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("entry count = %d, want 1", count)
	}

	greeted, err := ledger.HasGreeted(ctx, "foo", day, "alice")
	if err != nil {
		t.Fatalf("HasGreeted: %v", err)
	}
	if !greeted {
		t.Error("HasGreeted should be true after Record")
	}
}

func TestRotateOnlyTargetDay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()

	today := DayKey(time.Now())
	yesterday := PreviousDayKey(time.Now())

	for _, e := range []struct{ day, user string }{
		{yesterday, "alice"},
		{yesterday, "bob"},
		{today, "carol"},
	} {
		if err := ledger.Record(ctx, "foo", e.day, e.user); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	if err := ledger.Record(ctx, "otherchan", yesterday, "dave"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	if err := ledger.Rotate(ctx, "foo", yesterday); err != nil {
		t.Fatalf("Rotate: %v", err)
	}

	if greeted, _ := ledger.HasGreeted(ctx, "foo", yesterday, "alice"); greeted {
		t.Error("yesterday's entry should be gone after Rotate")
	}
	if greeted, _ := ledger.HasGreeted(ctx, "foo", today, "carol"); !greeted {
		t.Error("today's entry must survive Rotate of yesterday")
	}
	if greeted, _ := ledger.HasGreeted(ctx, "otherchan", yesterday, "dave"); !greeted {
		t.Error("other channel's entries must survive Rotate")
	}
}

func TestNextRunAfter(t *testing.T) {
	beforeRun := time.Date(2025, 3, 10, 0, 0, 0, 0, istanbul)
	run := nextRunAfter(beforeRun)
	if run.Day() != 10 || run.Hour() != 0 || run.Minute() != 30 {
		t.Errorf("run before 00:30 should land same day at 00:30, got %v", run)
	}

	afterRun := time.Date(2025, 3, 10, 1, 0, 0, 0, istanbul)
	run = nextRunAfter(afterRun)
	if run.Day() != 11 {
		t.Errorf("run after 00:30 should land next day, got %v", run)
	}
}

func TestChannels(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ledger := NewLedger(db)
	ctx := context.Background()
	day := DayKey(time.Now())

	for _, ch := range []string{"zeta", "alpha", "alpha"} {
		if err := ledger.Record(ctx, ch, day, "user"); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	channels, err := ledger.Channels(ctx)
	if err != nil {
		t.Fatalf("Channels: %v", err)
	}
	if len(channels) != 2 || channels[0] != "alpha" || channels[1] != "zeta" {
		t.Errorf("Channels = %v, want [alpha zeta]", channels)
	}
}
