// Package chat wires the dispatcher to Twitch IRC. It owns the gempir client,
// joins the configured channels, and routes channel messages and whispers into
// the bot. Replies go back through the same connection.
//
// Credentials: the IRC client requires a bot username and an OAuth token with
// chat:read/chat:edit scopes, plus whispers:read for the Spotify code install
// flow.
package chat

import (
	"context"
	"log/slog"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/emircodes/automagic/bot"
	"github.com/emircodes/automagic/config"
	"github.com/emircodes/automagic/telemetry"
)

// Run connects to Twitch IRC and blocks until ctx is cancelled or the
// connection fails. Each inbound message is dispatched on its own goroutine so
// a slow external lookup (Spotify, CoinMarketCap) never stalls the read loop.
func Run(ctx context.Context, cfg config.Config, b *bot.Bot) error {
	client := twitch.NewClient(cfg.BotUsername, cfg.OAuthToken)

	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		go func() {
			mctx := telemetry.WithCorrelation(ctx, uuid.NewString())
			channel := strings.ToLower(msg.Channel)
			var reply string
			telemetry.TimeFunc(telemetry.DispatchDuration, func() {
				reply = b.HandleChatMessage(mctx, channel, msg.User, msg.Message)
			})
			if reply != "" {
				client.Say(channel, reply)
			}
		}()
	})

	client.OnWhisperMessage(func(msg twitch.WhisperMessage) {
		go func() {
			mctx := telemetry.WithCorrelation(ctx, uuid.NewString())
			if reply := b.HandleWhisper(mctx, msg.User, msg.Message); reply != "" {
				client.Whisper(msg.User.Name, reply)
			}
		}()
	})

	client.OnConnect(func() {
		slog.Info("connected to twitch irc",
			slog.String("username", cfg.BotUsername),
			slog.Int("channels", len(cfg.Channels)))
		telemetry.SetConnectedChannels(len(cfg.Channels))
	})

	// Handle context cancellation by closing the client
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := client.Disconnect(); err != nil {
			slog.Warn("twitch chat disconnect", slog.Any("err", err))
		}
		close(done)
	}()

	client.Join(cfg.Channels...)
	err := client.Connect()
	if err != nil && ctx.Err() == nil {
		slog.Error("twitch chat connect error", slog.Any("err", err))
		return err
	}
	<-done
	telemetry.SetConnectedChannels(0)
	return nil
}
