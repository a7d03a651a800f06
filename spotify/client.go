// Package spotify owns the per-channel Spotify OAuth lifecycle and the
// currently-playing lookups backing the !şarkı and !playlist commands.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	spotifyoauth "golang.org/x/oauth2/spotify"
)

// Sentinel results the dispatcher maps to user-facing messages.
var (
	// ErrNoAuthorization: no usable credentials, or the refresh token itself was rejected.
	ErrNoAuthorization = errors.New("spotify: no authorization")
	// ErrNoTrack: the account has no active playback.
	ErrNoTrack = errors.New("spotify: nothing playing")
	// ErrNotAPlaylist: a track is playing but not from a playlist context.
	ErrNotAPlaylist = errors.New("spotify: not playing from a playlist")
)

// errTokenExpired signals a 401 from the player API; the manager turns it into
// a single refresh-and-retry.
var errTokenExpired = errors.New("spotify: access token rejected")

// Client wraps the three Spotify Web API calls the bot needs: authorization
// code exchange, token refresh, and the currently-playing read.
// AuthURL/TokenURL/APIBaseURL default to the real endpoints and exist for tests.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthURL    string
	TokenURL   string
	APIBaseURL string
	HTTPClient *http.Client
}

func (c *Client) oauthConfig() *oauth2.Config {
	endpoint := spotifyoauth.Endpoint
	if c.TokenURL != "" {
		endpoint = oauth2.Endpoint{AuthURL: c.AuthURL, TokenURL: c.TokenURL}
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURI,
		Endpoint:     endpoint,
	}
}

func (c *Client) httpContext(ctx context.Context) context.Context {
	if c.HTTPClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	return ctx
}

func (c *Client) apiBase() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	return "https://api.spotify.com"
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Exchange trades an authorization code for an access/refresh token pair.
func (c *Client) Exchange(ctx context.Context, code string) (access, refresh string, err error) {
	if c.ClientID == "" || c.ClientSecret == "" || code == "" {
		return "", "", errors.New("missing client id/secret or authorization code")
	}
	tok, err := c.oauthConfig().Exchange(c.httpContext(ctx), code)
	if err != nil {
		return "", "", fmt.Errorf("spotify auth code exchange failed: %w", err)
	}
	return tok.AccessToken, tok.RefreshToken, nil
}

// Refresh exchanges a refresh token for a new access token. Spotify reuses the
// refresh token indefinitely, so only the access token is returned.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if c.ClientID == "" || c.ClientSecret == "" || refreshToken == "" {
		return "", errors.New("missing client id/secret or refresh token")
	}
	ts := c.oauthConfig().TokenSource(c.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("spotify refresh failed: %w", err)
	}
	return tok.AccessToken, nil
}

// Playback is the decoded currently-playing state.
type Playback struct {
	Playing bool
	// Track is rendered as "artist, artist - title".
	Track string
	// ContextURL is the external URL of the playback context (playlist, album),
	// empty when playback has no context.
	ContextURL string
}

// CurrentlyPlaying reads the player state with the given access token.
// Returns errTokenExpired on a 401-class response so the caller can refresh.
func (c *Client) CurrentlyPlaying(ctx context.Context, accessToken string) (*Playback, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase()+"/v1/me/player/currently-playing?market=TR", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	switch resp.StatusCode {
	case http.StatusNoContent:
		return &Playback{Playing: false}, nil
	case http.StatusUnauthorized:
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return nil, errTokenExpired
	case http.StatusOK:
		// decoded below
	default:
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("spotify currently-playing failed: %s: %s", resp.Status, string(b))
	}

	var body struct {
		IsPlaying bool `json:"is_playing"`
		Item      struct {
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"item"`
		Context *struct {
			ExternalURLs struct {
				Spotify string `json:"spotify"`
			} `json:"external_urls"`
		} `json:"context"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	pb := &Playback{Playing: body.IsPlaying}
	if body.IsPlaying {
		artists := make([]string, 0, len(body.Item.Artists))
		for _, a := range body.Item.Artists {
			artists = append(artists, a.Name)
		}
		pb.Track = strings.Join(artists, ", ") + " - " + body.Item.Name
	}
	if body.Context != nil {
		pb.ContextURL = body.Context.ExternalURLs.Spotify
	}
	return pb, nil
}
