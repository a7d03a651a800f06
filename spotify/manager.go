package spotify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/emircodes/automagic/db"
	"github.com/emircodes/automagic/telemetry"
)

// Manager owns the per-channel token lifecycle: authorization code intake,
// code exchange, expiry detection, and the single refresh-and-retry rule.
type Manager struct {
	db     *sql.DB
	client *Client
}

func NewManager(database *sql.DB, client *Client) *Manager {
	return &Manager{db: database, client: client}
}

// SetAuthorizationCode stores a channel's authorization code. The first code a
// channel ever supplies triggers an immediate exchange attempt; replacing an
// existing code only updates the stored value, since the channel may already
// hold a working token pair. An exchange failure is logged and leaves the
// token state unchanged; the code itself is kept either way.
func (m *Manager) SetAuthorizationCode(ctx context.Context, channel, code string) error {
	creds, err := db.GetSpotifyCredentials(ctx, m.db, channel)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil {
		if err := db.InsertSpotifyCredentials(ctx, m.db, channel, code); err != nil {
			return fmt.Errorf("store authorization code: %w", err)
		}
		if _, err := m.exchangeCode(ctx, channel, code); err != nil {
			slog.Warn("initial spotify code exchange failed", slog.String("channel", channel), slog.Any("err", err))
		}
		return nil
	}
	return db.UpdateSpotifyAuthorizationCode(ctx, m.db, channel, code)
}

// exchangeCode performs the code exchange and persists the resulting token pair.
func (m *Manager) exchangeCode(ctx context.Context, channel, code string) (string, error) {
	access, refresh, err := m.client.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	if err := db.UpdateSpotifyTokens(ctx, m.db, channel, access, refresh); err != nil {
		return "", fmt.Errorf("persist tokens: %w", err)
	}
	slog.Info("spotify tokens acquired", slog.String("channel", channel))
	return access, nil
}

// accessToken returns a usable access token for the channel, running the code
// exchange synchronously when a code is on file but no token is.
func (m *Manager) accessToken(ctx context.Context, channel string) (string, error) {
	creds, err := db.GetSpotifyCredentials(ctx, m.db, channel)
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil || creds.AuthorizationCode == "" {
		return "", ErrNoAuthorization
	}
	if creds.AccessToken != "" {
		return creds.AccessToken, nil
	}
	access, err := m.exchangeCode(ctx, channel, creds.AuthorizationCode)
	if err != nil {
		return "", fmt.Errorf("%w: code exchange failed: %v", ErrNoAuthorization, err)
	}
	return access, nil
}

// refreshChannel refreshes a channel's access token using its stored refresh
// token and persists the result. The refresh token itself is reused.
func (m *Manager) refreshChannel(ctx context.Context, channel string) (string, error) {
	creds, err := db.GetSpotifyCredentials(ctx, m.db, channel)
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}
	if creds == nil || creds.RefreshToken == "" {
		return "", errors.New("no refresh token on file")
	}
	access, err := m.client.Refresh(ctx, creds.RefreshToken)
	if err != nil {
		telemetry.CountSpotifyRefresh(false)
		return "", err
	}
	if err := db.UpdateSpotifyTokens(ctx, m.db, channel, access, ""); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	telemetry.CountSpotifyRefresh(true)
	return access, nil
}

// playback runs the currently-playing read with the bounded retry rule: a
// 401-class rejection triggers exactly one refresh and one retry; a second
// rejection surfaces as ErrNoAuthorization instead of another attempt.
func (m *Manager) playback(ctx context.Context, channel string) (*Playback, error) {
	token, err := m.accessToken(ctx, channel)
	if err != nil {
		return nil, err
	}
	for attempt := 0; ; attempt++ {
		pb, err := m.client.CurrentlyPlaying(ctx, token)
		if err == nil {
			return pb, nil
		}
		if !errors.Is(err, errTokenExpired) {
			return nil, err
		}
		if attempt > 0 {
			// The refreshed token was rejected too; the refresh token is dead.
			return nil, fmt.Errorf("%w: token rejected after refresh", ErrNoAuthorization)
		}
		token, err = m.refreshChannel(ctx, channel)
		if err != nil {
			return nil, fmt.Errorf("%w: refresh failed: %v", ErrNoAuthorization, err)
		}
	}
}

// CurrentlyPlaying returns the playing track as "artist, artist - title".
// ErrNoTrack when nothing is playing, ErrNoAuthorization when the channel has
// no usable credentials.
func (m *Manager) CurrentlyPlaying(ctx context.Context, channel string) (string, error) {
	pb, err := m.playback(ctx, channel)
	if err != nil {
		return "", err
	}
	if !pb.Playing {
		return "", ErrNoTrack
	}
	return pb.Track, nil
}

// CurrentlyPlayingPlaylist returns the external URL of the playlist the current
// track is playing from. ErrNotAPlaylist when a track plays outside a playlist
// context, ErrNoTrack when nothing is playing.
func (m *Manager) CurrentlyPlayingPlaylist(ctx context.Context, channel string) (string, error) {
	pb, err := m.playback(ctx, channel)
	if err != nil {
		return "", err
	}
	if !pb.Playing {
		return "", ErrNoTrack
	}
	if pb.ContextURL == "" || !strings.Contains(pb.ContextURL, "playlist") {
		return "", ErrNotAPlaylist
	}
	return pb.ContextURL, nil
}

// RefreshAll refreshes the access token of every channel with stored
// credentials. Channels are refreshed independently; one channel's failure is
// logged and does not abort the sweep.
func (m *Manager) RefreshAll(ctx context.Context) error {
	channels, err := db.ListSpotifyChannels(ctx, m.db)
	if err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, channel := range channels {
		ch := channel
		g.Go(func() error {
			if _, err := m.refreshChannel(gctx, ch); err != nil {
				slog.Warn("spotify token refresh failed", slog.String("channel", ch), slog.Any("err", err))
				return nil
			}
			slog.Info("spotify token refreshed", slog.String("channel", ch))
			return nil
		})
	}
	return g.Wait()
}
