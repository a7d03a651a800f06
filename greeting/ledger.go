// Package greeting tracks which users already received a greeting reply today.
// Entries are keyed by (channel, day, username) where the day is computed in a
// single fixed timezone, so recording and rotation always agree regardless of
// where the process runs.
package greeting

import (
	"context"
	"database/sql"
	"time"
)

// Entries rotate on the Istanbul calendar day, matching the audience the bot serves.
const TimezoneName = "Europe/Istanbul"

// dayKeyLayout renders 24 December 2025 as "24122025".
const dayKeyLayout = "02012006"

var istanbul = mustLoadLocation()

func mustLoadLocation() *time.Location {
	loc, err := time.LoadLocation(TimezoneName)
	if err != nil {
		// The IANA name is a compile-time constant; failure means a broken tzdata install.
		panic("greeting: load timezone: " + err.Error())
	}
	return loc
}

// DayKey returns the day key for t in the fixed timezone.
func DayKey(t time.Time) string { return t.In(istanbul).Format(dayKeyLayout) }

// PreviousDayKey returns the day key for the calendar day before t.
func PreviousDayKey(t time.Time) string { return DayKey(t.In(istanbul).AddDate(0, 0, -1)) }

// Ledger stores greeting entries in the greetings table.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger { return &Ledger{db: db} }

// HasGreeted reports whether username was already greeted in channel on dayKey.
func (l *Ledger) HasGreeted(ctx context.Context, channel, dayKey, username string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM greetings WHERE channel=$1 AND day_key=$2 AND username=$3)`,
		channel, dayKey, username).Scan(&exists)
	return exists, err
}

// Record marks username as greeted. Recording the same key twice is a no-op.
func (l *Ledger) Record(ctx context.Context, channel, dayKey, username string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO greetings(channel, day_key, username) VALUES($1,$2,$3)
		 ON CONFLICT (channel, day_key, username) DO NOTHING`, channel, dayKey, username)
	return err
}

// Rotate deletes every entry for the given channel and day. It is called by the
// daily sweep for the previous day only, never for the current one.
func (l *Ledger) Rotate(ctx context.Context, channel, dayKey string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM greetings WHERE channel=$1 AND day_key=$2`, channel, dayKey)
	return err
}

// Channels lists every channel with at least one greeting entry on record.
func (l *Ledger) Channels(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT DISTINCT channel FROM greetings ORDER BY channel`)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var channels []string
	for rows.Next() {
		var ch string
		if err := rows.Scan(&ch); err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}
