// Package command implements the per-channel chat command store. Protected
// "core" commands and user-defined "custom" commands live in separate tables so
// a generic insert can never shadow a core command name; callers still check
// IsProtected before mutations to produce the right rejection message.
package command

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sigil is the reserved prefix every command name must start with.
const Sigil = "!"

// Command is one channel-scoped command definition.
type Command struct {
	Channel     string
	Name        string
	Description string
	UserLevel   string
}

// coreSeed is the fixed core-command set installed lazily per channel. The
// names stay immutable to the mutation verbs regardless of the caller's level.
var coreSeed = []struct {
	Name      string
	Usage     string
	UserLevel string
}{
	{"!botkomutları", "!botkomutları", "everyone"},
	{"!komutekle", "!komutekle !<komut_ismi> <mesaj>", "modUp"},
	{"!komutdüzenle", "!komutdüzenle !<komut_ismi> <yeni_mesaj>", "modUp"},
	{"!komutsil", "!komutsil !<komut_ismi>", "modUp"},
	{"!komutlar", "!komutlar", "everyone"},
	{"!tümkomutlarısil", "!tümkomutlarısil", "broadcaster"},
}

// Store provides channel-scoped CRUD over the command tables.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// Find returns the custom command matching name exactly, or (nil, nil) when no
// such command exists. Core commands are not consulted.
func (s *Store) Find(ctx context.Context, channel, name string) (*Command, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT channel, name, description, user_level FROM commands WHERE channel=$1 AND name=$2`, channel, name)
	var c Command
	err := row.Scan(&c.Channel, &c.Name, &c.Description, &c.UserLevel)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// IsProtected reports whether name is a core command in the channel. The core
// set is seeded on first call for channels that have none recorded yet.
func (s *Store) IsProtected(ctx context.Context, channel, name string) (bool, error) {
	seeded, err := s.hasCoreCommands(ctx, channel)
	if err != nil {
		return false, err
	}
	if !seeded {
		if err := s.seedCoreCommands(ctx, channel); err != nil {
			return false, err
		}
	}
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM core_commands WHERE channel=$1 AND name=$2)`, channel, name).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *Store) hasCoreCommands(ctx context.Context, channel string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM core_commands WHERE channel=$1)`, channel).Scan(&exists)
	return exists, err
}

func (s *Store) seedCoreCommands(ctx context.Context, channel string) error {
	for _, c := range coreSeed {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO core_commands(channel, name, usage, user_level) VALUES($1,$2,$3,$4)
			 ON CONFLICT (channel, name) DO NOTHING`, channel, c.Name, c.Usage, c.UserLevel); err != nil {
			return fmt.Errorf("seed core command %s: %w", c.Name, err)
		}
	}
	return nil
}

// Add inserts a custom command. It returns false without mutation when the name
// is already taken or does not start with the command sigil.
func (s *Store) Add(ctx context.Context, channel, name, description, userLevel string) (bool, error) {
	if !strings.HasPrefix(name, Sigil) {
		return false, nil
	}
	if userLevel == "" {
		userLevel = "everyone"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO commands(channel, name, description, user_level) VALUES($1,$2,$3,$4)
		 ON CONFLICT (channel, name) DO NOTHING`, channel, name, description, userLevel)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Edit replaces a custom command's description in place. Returns false when the
// command does not exist.
func (s *Store) Edit(ctx context.Context, channel, name, description string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE commands SET description=$1, updated_at=NOW() WHERE channel=$2 AND name=$3`, description, channel, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Delete removes a custom command. Returns false when it was already absent.
func (s *Store) Delete(ctx context.Context, channel, name string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM commands WHERE channel=$1 AND name=$2`, channel, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteAll irreversibly removes every custom command in the channel. Core
// commands are untouched.
func (s *Store) DeleteAll(ctx context.Context, channel string) (bool, error) {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE channel=$1`, channel); err != nil {
		return false, err
	}
	return true, nil
}

// ListCustom returns all custom command names sorted with Turkish collation.
func (s *Store) ListCustom(ctx context.Context, channel string) ([]string, error) {
	return s.listNames(ctx, `SELECT name FROM commands WHERE channel=$1`, channel)
}

// ListCore returns the core command names, excluding the self-referential
// listing command itself.
func (s *Store) ListCore(ctx context.Context, channel string) ([]string, error) {
	return s.listNames(ctx, `SELECT name FROM core_commands WHERE channel=$1 AND name <> '!botkomutları'`, channel)
}

func (s *Store) listNames(ctx context.Context, query, channel string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, channel)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Matches the tr-TR localeCompare ordering viewers see in the channel.
	collate.New(language.Turkish).SortStrings(names)
	return names, nil
}
