package audit

import (
	"context"
	"testing"

	"github.com/emircodes/automagic/testutil"
)

func TestInsertAndRecent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := NewLog(db)
	ctx := context.Background()

	if err := log.Insert(ctx, "foo", "alice", "moderator", ActionAdded, "!hello"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := log.Insert(ctx, "foo", "bob", "everyone", ActionExecuted, "!hello"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := log.Insert(ctx, "bar", "carol", "broadcaster", ActionDeleted, "!bye"); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	entries, err := log.Recent(ctx, "foo", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}
	newest := entries[0]
	if newest.Actor != "bob" || newest.Action != ActionExecuted {
		t.Errorf("newest entry = %+v, want bob/executed", newest)
	}
	for _, e := range entries {
		if e.Channel != "foo" {
			t.Errorf("entry leaked from channel %q", e.Channel)
		}
	}
}

func TestRecentDefaultLimit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	log := NewLog(db)

	if _, err := log.Recent(context.Background(), "empty", 0); err != nil {
		t.Fatalf("Recent with zero limit: %v", err)
	}
}
