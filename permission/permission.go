// Package permission implements the ordered user-level model used for command
// gating and audit logging: everyone < vip < moderator < broadcaster.
//
// The vip level exists only so the audit log records it faithfully; no command
// is gated on it and it satisfies nothing above everyone.
package permission

import (
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// Level is an ordered permission tier.
type Level int

const (
	Everyone Level = iota
	VIP
	Moderator
	Broadcaster
)

func (l Level) String() string {
	switch l {
	case Broadcaster:
		return "broadcaster"
	case Moderator:
		return "moderator"
	case VIP:
		return "vip"
	default:
		return "everyone"
	}
}

// Satisfies reports whether an actor holding l passes a check requiring required.
// Levels are totally ordered, so a broadcaster passes every check and vip passes
// only everyone-level checks.
func (l Level) Satisfies(required Level) bool { return l >= required }

// Resolve derives a user's effective level in a channel from the IRC badge set,
// the channel owner identity, and the configured admin override. The channel
// owner is always broadcaster even without a broadcaster badge (e.g. when the
// message arrives through a relay that strips badges).
func Resolve(user twitch.User, channel, adminUser string) Level {
	if strings.EqualFold(user.Name, channel) || strings.EqualFold(user.DisplayName, adminUser) {
		return Broadcaster
	}
	if user.Badges["broadcaster"] > 0 {
		return Broadcaster
	}
	if user.Badges["moderator"] > 0 {
		return Moderator
	}
	if user.Badges["vip"] > 0 {
		return VIP
	}
	return Everyone
}

// Parse maps a stored user_level string onto the canonical enum. The command
// tables hold "everyone", "modUp" (legacy spelling kept for seeded rows) and
// "broadcaster"; anything unrecognized degrades to everyone so a corrupted row
// never locks a command tighter than intended.
func Parse(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "broadcaster":
		return Broadcaster
	case "moderator", "mod", "modup":
		return Moderator
	case "vip":
		return VIP
	default:
		return Everyone
	}
}
