// Package audit writes the append-only command audit trail. Entries are never
// updated or deleted by the bot.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Actions recorded in the audit log.
const (
	ActionAdded    = "added"
	ActionEdited   = "edited"
	ActionDeleted  = "deleted"
	ActionExecuted = "executed"
)

type Log struct {
	db *sql.DB
}

func NewLog(db *sql.DB) *Log { return &Log{db: db} }

// Insert appends one audit entry. Rejected attempts are recorded with the same
// action the actor attempted, so tampering with protected commands leaves a trace.
func (l *Log) Insert(ctx context.Context, channel, actor, actorLevel, action, commandName string) error {
	description := fmt.Sprintf("%s has %s command %s", actor, action, commandName)
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO audit_logs(channel, actor, actor_level, action, command_name, description)
		 VALUES($1,$2,$3,$4,$5,$6)`,
		channel, actor, actorLevel, action, commandName, description)
	return err
}

// Entry is one row of the audit trail, as read back by Recent.
type Entry struct {
	Channel     string
	Actor       string
	ActorLevel  string
	Action      string
	CommandName string
	CreatedAt   time.Time
}

// Recent returns the newest entries for a channel, most recent first.
func (l *Log) Recent(ctx context.Context, channel string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT channel, actor, actor_level, action, command_name, created_at
		 FROM audit_logs WHERE channel=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Channel, &e.Actor, &e.ActorLevel, &e.Action, &e.CommandName, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
