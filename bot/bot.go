// Package bot implements the command dispatcher: it classifies each incoming
// chat message, enforces the permission model, delegates to the command store
// and the external collaborators, and produces at most one reply per message.
// The transport (IRC connection) and the backing store are injected; the
// dispatcher holds no process-wide state of its own.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/emircodes/automagic/audit"
	"github.com/emircodes/automagic/command"
	"github.com/emircodes/automagic/greeting"
	"github.com/emircodes/automagic/permission"
	"github.com/emircodes/automagic/spotify"
	"github.com/emircodes/automagic/telemetry"
)

// Mutation verbs and the two reserved dynamic command names.
const (
	verbAdd       = "!komutekle"
	verbEdit      = "!komutdüzenle"
	verbDelete    = "!komutsil"
	verbDeleteAll = "!tümkomutlarısil"
	verbListCore  = "!botkomutları"
	verbListAll   = "!komutlar"

	whisperVerbToken = "!spotifytoken"

	dynamicPrice    = "!btc"
	dynamicTrack    = "!şarkı"
	dynamicPlaylist = "!playlist"
)

// CommandStore is the channel-scoped command CRUD surface the dispatcher needs.
type CommandStore interface {
	Find(ctx context.Context, channel, name string) (*command.Command, error)
	IsProtected(ctx context.Context, channel, name string) (bool, error)
	Add(ctx context.Context, channel, name, description, userLevel string) (bool, error)
	Edit(ctx context.Context, channel, name, description string) (bool, error)
	Delete(ctx context.Context, channel, name string) (bool, error)
	DeleteAll(ctx context.Context, channel string) (bool, error)
	ListCustom(ctx context.Context, channel string) ([]string, error)
	ListCore(ctx context.Context, channel string) ([]string, error)
}

// GreetingLedger tracks which users were already greeted today.
type GreetingLedger interface {
	HasGreeted(ctx context.Context, channel, dayKey, username string) (bool, error)
	Record(ctx context.Context, channel, dayKey, username string) error
}

// AuditLog appends command audit entries.
type AuditLog interface {
	Insert(ctx context.Context, channel, actor, actorLevel, action, commandName string) error
}

// MusicPlayer is the Spotify token lifecycle manager surface.
type MusicPlayer interface {
	SetAuthorizationCode(ctx context.Context, channel, code string) error
	CurrentlyPlaying(ctx context.Context, channel string) (string, error)
	CurrentlyPlayingPlaylist(ctx context.Context, channel string) (string, error)
}

// PriceQuoter returns the current BTC quote in TRY.
type PriceQuoter interface {
	BTCQuote(ctx context.Context) (float64, error)
}

// PriceFormatter renders a quote for chat. Split from PriceQuoter so tests can
// pin the formatting independently of the lookup.
type PriceFormatter func(float64) string

// Bot is the dispatcher. All collaborators are required except Music and Price,
// which may be nil when the respective feature is not configured; their dynamic
// commands then answer with the generic try-again message.
type Bot struct {
	Commands  CommandStore
	Greetings GreetingLedger
	Audit     AuditLog
	Music     MusicPlayer
	Price     PriceQuoter
	FormatTRY PriceFormatter

	// AdminUser resolves to broadcaster in every channel.
	AdminUser string
}

// HandleChatMessage processes one channel message and returns the reply to
// send, or "" for a silent no-op. The method never returns an error: every
// failure path resolves to a reply or a logged no-op.
func (b *Bot) HandleChatMessage(ctx context.Context, channel string, user twitch.User, message string) string {
	telemetry.CountMessageHandled()
	msg := strings.TrimSpace(message)
	level := permission.Resolve(user, channel, b.AdminUser)

	if strings.HasPrefix(msg, command.Sigil) {
		if reply, handled := b.dispatchCommand(ctx, channel, user.DisplayName, level, msg); handled {
			return reply
		}
	}
	return b.handleGreeting(ctx, channel, user.DisplayName, msg)
}

// HandleWhisper processes one private message. Whispers are scoped to the
// sender's own channel: a channel owner installs their Spotify authorization
// code by whispering the bot directly.
func (b *Bot) HandleWhisper(ctx context.Context, user twitch.User, message string) string {
	fields := strings.Fields(strings.TrimSpace(message))
	if len(fields) < 2 || strings.ToLower(fields[0]) != whisperVerbToken {
		return ""
	}
	if b.Music == nil {
		return addressed(user.DisplayName, replyTryAgainLater)
	}
	channel := strings.ToLower(user.Name)
	if err := b.Music.SetAuthorizationCode(ctx, channel, fields[1]); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("store spotify authorization code", slog.String("channel", channel), slog.Any("err", err))
		return addressed(user.DisplayName, replyTryAgainLater)
	}
	b.writeAudit(ctx, channel, user.DisplayName, permission.Broadcaster.String(), audit.ActionAdded, whisperVerbToken)
	return addressed(user.DisplayName, replyTokenAdded)
}

// dispatchCommand walks the verb table and the command lookup. The second
// return value reports whether a branch consumed the message; unhandled
// messages fall through to greeting handling.
func (b *Bot) dispatchCommand(ctx context.Context, channel, displayName string, level permission.Level, msg string) (string, bool) {
	fields := strings.Fields(msg)
	verb := fields[0]

	switch {
	case verb == verbAdd && level.Satisfies(permission.Moderator):
		return b.handleAdd(ctx, channel, displayName, level, msg, fields), true
	case verb == verbEdit && level.Satisfies(permission.Moderator):
		return b.handleEdit(ctx, channel, displayName, level, msg, fields), true
	case verb == verbDelete && level.Satisfies(permission.Moderator):
		return b.handleDelete(ctx, channel, displayName, level, fields), true
	case verb == verbDeleteAll && level.Satisfies(permission.Broadcaster):
		return b.handleDeleteAll(ctx, channel, displayName, level), true
	case verb == verbListCore && level.Satisfies(permission.Moderator):
		return b.handleListCore(ctx, channel, displayName, level), true
	case verb == verbListAll:
		return b.handleListCustom(ctx, channel, displayName, level), true
	}

	// Exact lookup of the full message against the custom set.
	cmd, err := b.Commands.Find(ctx, channel, msg)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("command lookup failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater), true
	}
	if cmd == nil {
		return "", false
	}

	switch cmd.Name {
	case dynamicPrice:
		return b.handlePrice(ctx, channel, displayName, level), true
	case dynamicTrack:
		return b.handleTrack(ctx, channel, displayName, level), true
	case dynamicPlaylist:
		return b.handlePlaylist(ctx, channel, displayName, level), true
	}

	if !level.Satisfies(permission.Parse(cmd.UserLevel)) {
		// Below the command's tier: fall through silently, same as an unknown name.
		telemetry.CountCommandRejected()
		return "", false
	}
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionExecuted, cmd.Name)
	telemetry.CountCommandExecuted()
	return addressed(displayName, cmd.Description), true
}

func (b *Bot) handleAdd(ctx context.Context, channel, displayName string, level permission.Level, msg string, fields []string) string {
	if len(fields) < 3 {
		return addressed(displayName, replyBadUsage)
	}
	name := fields[1]
	if reply, protected := b.rejectProtected(ctx, channel, displayName, level, name, audit.ActionAdded, replyCannotAddCore); protected {
		return reply
	}
	ok, err := b.Commands.Add(ctx, channel, name, descriptionAfter(msg, fields[0], name), "everyone")
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("add command failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionAdded, name)
	if ok {
		telemetry.CountMutation()
	}
	return addressed(displayName, replyAdded(name, ok))
}

func (b *Bot) handleEdit(ctx context.Context, channel, displayName string, level permission.Level, msg string, fields []string) string {
	if len(fields) < 3 {
		return addressed(displayName, replyBadUsage)
	}
	name := fields[1]
	if reply, protected := b.rejectProtected(ctx, channel, displayName, level, name, audit.ActionEdited, replyCannotEditCore); protected {
		return reply
	}
	ok, err := b.Commands.Edit(ctx, channel, name, descriptionAfter(msg, fields[0], name))
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("edit command failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionEdited, name)
	if ok {
		telemetry.CountMutation()
	}
	return addressed(displayName, replyEdited(name, ok))
}

func (b *Bot) handleDelete(ctx context.Context, channel, displayName string, level permission.Level, fields []string) string {
	if len(fields) < 2 {
		return addressed(displayName, replyBadUsage)
	}
	name := fields[1]
	if reply, protected := b.rejectProtected(ctx, channel, displayName, level, name, audit.ActionDeleted, replyCannotDelCore); protected {
		return reply
	}
	ok, err := b.Commands.Delete(ctx, channel, name)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("delete command failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionDeleted, name)
	if ok {
		telemetry.CountMutation()
	}
	return addressed(displayName, replyDeleted(name, ok))
}

func (b *Bot) handleDeleteAll(ctx context.Context, channel, displayName string, level permission.Level) string {
	ok, err := b.Commands.DeleteAll(ctx, channel)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("delete all commands failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionExecuted, verbDeleteAll)
	if !ok {
		return addressed(displayName, replyTryAgainLater)
	}
	telemetry.CountMutation()
	return addressed(displayName, replyAllDeleted)
}

func (b *Bot) handleListCore(ctx context.Context, channel, displayName string, level permission.Level) string {
	names, err := b.Commands.ListCore(ctx, channel)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("list core commands failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionExecuted, verbListCore)
	if len(names) == 0 {
		return addressed(displayName, replyTryAgainLater)
	}
	return addressed(displayName, replyCoreList(strings.Join(names, ", ")))
}

func (b *Bot) handleListCustom(ctx context.Context, channel, displayName string, level permission.Level) string {
	names, err := b.Commands.ListCustom(ctx, channel)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("list commands failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionExecuted, verbListAll)
	if len(names) == 0 {
		return addressed(displayName, replyNoCommands)
	}
	return addressed(displayName, replyCustomList(strings.Join(names, ", ")))
}

func (b *Bot) handlePrice(ctx context.Context, channel, displayName string, level permission.Level) string {
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionExecuted, dynamicPrice)
	if b.Price == nil || b.FormatTRY == nil {
		return addressed(displayName, replyTryAgainLater)
	}
	quote, err := b.Price.BTCQuote(ctx)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("btc quote failed", slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	telemetry.CountCommandExecuted()
	return addressed(displayName, replyBTC(b.FormatTRY(quote)))
}

func (b *Bot) handleTrack(ctx context.Context, channel, displayName string, level permission.Level) string {
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionExecuted, dynamicTrack)
	if b.Music == nil {
		return addressed(displayName, replyTokenMissing)
	}
	track, err := b.Music.CurrentlyPlaying(ctx, channel)
	switch {
	case errors.Is(err, spotify.ErrNoAuthorization):
		return addressed(displayName, replyTokenMissing)
	case errors.Is(err, spotify.ErrNoTrack):
		return addressed(displayName, replyNoTrack)
	case err != nil:
		telemetry.LoggerWithCorr(ctx).Error("currently playing lookup failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	telemetry.CountCommandExecuted()
	return addressed(displayName, replyTrack(track))
}

func (b *Bot) handlePlaylist(ctx context.Context, channel, displayName string, level permission.Level) string {
	b.writeAudit(ctx, channel, displayName, level.String(), audit.ActionExecuted, dynamicPlaylist)
	if b.Music == nil {
		return addressed(displayName, replyTokenMissing)
	}
	link, err := b.Music.CurrentlyPlayingPlaylist(ctx, channel)
	switch {
	case errors.Is(err, spotify.ErrNoAuthorization):
		return addressed(displayName, replyTokenMissing)
	case errors.Is(err, spotify.ErrNotAPlaylist):
		return addressed(displayName, replyNotPlaylist)
	case errors.Is(err, spotify.ErrNoTrack):
		return addressed(displayName, replyNoTrack)
	case err != nil:
		telemetry.LoggerWithCorr(ctx).Error("playlist lookup failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater)
	}
	telemetry.CountCommandExecuted()
	return addressed(displayName, replyPlaylist(link))
}

// rejectProtected checks the core-command namespace before a named-target
// mutation. Tampering attempts get a verb-specific rejection and are still
// audit-logged as the attempted action.
func (b *Bot) rejectProtected(ctx context.Context, channel, displayName string, level permission.Level, name, action, rejection string) (string, bool) {
	protected, err := b.Commands.IsProtected(ctx, channel, name)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("protection check failed", slog.String("channel", channel), slog.Any("err", err))
		return addressed(displayName, replyTryAgainLater), true
	}
	if !protected {
		return "", false
	}
	b.writeAudit(ctx, channel, displayName, level.String(), action, name)
	telemetry.CountCommandRejected()
	return addressed(displayName, rejection), true
}

func (b *Bot) writeAudit(ctx context.Context, channel, actor, actorLevel, action, commandName string) {
	if err := b.Audit.Insert(ctx, channel, actor, actorLevel, action, commandName); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("audit insert failed", slog.String("channel", channel), slog.Any("err", err))
	}
}

type greetingKind int

const (
	greetNone greetingKind = iota
	greetSA
	greetSelam
	greetMerhaba
)

func classifyGreeting(msg string) greetingKind {
	for _, word := range strings.Fields(strings.ToLower(msg)) {
		switch word {
		case "sa":
			return greetSA
		case "selam", "selamlar":
			return greetSelam
		case "merhaba":
			return greetMerhaba
		}
	}
	return greetNone
}

// handleGreeting replies to greeting words at most once per user per channel
// per Istanbul calendar day.
func (b *Bot) handleGreeting(ctx context.Context, channel, displayName, msg string) string {
	kind := classifyGreeting(msg)
	if kind == greetNone {
		return ""
	}
	username := strings.ToLower(displayName)
	day := greeting.DayKey(time.Now())
	greeted, err := b.Greetings.HasGreeted(ctx, channel, day, username)
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Error("greeting lookup failed", slog.String("channel", channel), slog.Any("err", err))
		return ""
	}
	if greeted {
		return ""
	}
	if err := b.Greetings.Record(ctx, channel, day, username); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("greeting record failed", slog.String("channel", channel), slog.Any("err", err))
	}
	telemetry.CountGreeting()
	return greetingReply(kind, displayName)
}

// descriptionAfter returns everything in msg after the verb and name tokens,
// preserving the description's own internal spacing.
func descriptionAfter(msg, verb, name string) string {
	prefix := len(verb) + 1 + len(name) + 1
	if prefix >= len(msg) {
		return ""
	}
	return msg[prefix:]
}
