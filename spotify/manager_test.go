package spotify

import (
	"context"
	"errors"
	"testing"

	"github.com/emircodes/automagic/db"
	"github.com/emircodes/automagic/testutil"
)

func newTestManager(t *testing.T) (*Manager, *testutil.MockSpotifyServer) {
	t.Helper()
	database := testutil.SetupTestDB(t)
	srv := testutil.NewMockSpotifyServer(t)
	client := &Client{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURI:  "https://emir.codes",
		AuthURL:      srv.URL + "/authorize",
		TokenURL:     srv.URL + "/api/token",
		APIBaseURL:   srv.URL,
	}
	return NewManager(database, client), srv
}

// seedTokens installs a channel with a working-looking token pair, bypassing
// the exchange flow.
func seedTokens(t *testing.T, m *Manager, channel, access, refresh string) {
	t.Helper()
	ctx := context.Background()
	if err := db.InsertSpotifyCredentials(ctx, m.db, channel, "seed-code"); err != nil {
		t.Fatalf("insert credentials: %v", err)
	}
	if err := db.UpdateSpotifyTokens(ctx, m.db, channel, access, refresh); err != nil {
		t.Fatalf("seed tokens: %v", err)
	}
}

func TestCurrentlyPlayingNoCredentials(t *testing.T) {
	m, srv := newTestManager(t)

	_, err := m.CurrentlyPlaying(context.Background(), "emir")
	if !errors.Is(err, ErrNoAuthorization) {
		t.Fatalf("err = %v, want ErrNoAuthorization", err)
	}
	if n := srv.PlayerRequests.Load(); n != 0 {
		t.Errorf("player requests = %d, want 0 without credentials", n)
	}
}

func TestSetAuthorizationCodeExchangesFirstCode(t *testing.T) {
	m, srv := newTestManager(t)
	srv.MockTokenResponse("at1", "rt1")
	ctx := context.Background()

	if err := m.SetAuthorizationCode(ctx, "emir", "the-code"); err != nil {
		t.Fatalf("SetAuthorizationCode: %v", err)
	}
	if n := srv.TokenRequests.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1 (first code triggers exchange)", n)
	}

	creds, err := db.GetSpotifyCredentials(ctx, m.db, "emir")
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if creds == nil || creds.AccessToken != "at1" || creds.RefreshToken != "rt1" {
		t.Errorf("credentials = %+v, want exchanged token pair", creds)
	}
}

func TestSetAuthorizationCodeReplaceKeepsTokens(t *testing.T) {
	m, srv := newTestManager(t)
	srv.MockTokenResponse("at1", "rt1")
	ctx := context.Background()

	if err := m.SetAuthorizationCode(ctx, "emir", "code-one"); err != nil {
		t.Fatalf("first code: %v", err)
	}
	if err := m.SetAuthorizationCode(ctx, "emir", "code-two"); err != nil {
		t.Fatalf("second code: %v", err)
	}
	// Replacing the code must not re-run the exchange.
	if n := srv.TokenRequests.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
	creds, err := db.GetSpotifyCredentials(ctx, m.db, "emir")
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if creds.AuthorizationCode != "code-two" {
		t.Errorf("authorization code = %q, want code-two", creds.AuthorizationCode)
	}
	if creds.AccessToken != "at1" {
		t.Errorf("access token = %q, want at1 preserved", creds.AccessToken)
	}
}

func TestSetAuthorizationCodeKeepsCodeOnExchangeFailure(t *testing.T) {
	m, srv := newTestManager(t)
	srv.MockTokenError(400)
	ctx := context.Background()

	if err := m.SetAuthorizationCode(ctx, "emir", "bad-code"); err != nil {
		t.Fatalf("SetAuthorizationCode: %v", err)
	}
	creds, err := db.GetSpotifyCredentials(ctx, m.db, "emir")
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if creds == nil || creds.AuthorizationCode != "bad-code" {
		t.Fatalf("credentials = %+v, want stored code despite failed exchange", creds)
	}
	if creds.AccessToken != "" {
		t.Errorf("access token = %q, want empty after failed exchange", creds.AccessToken)
	}
}

func TestPlaybackRefreshesOnceOn401(t *testing.T) {
	m, srv := newTestManager(t)
	seedTokens(t, m, "emir", "stale", "rt1")
	srv.MockTokenResponse("fresh", "rt1")
	srv.MockPlayerSequence(
		testutil.PlayerUnauthorized,
		testutil.PlayerPlaying("A", "T", "https://open.spotify.com/playlist/xyz"),
	)

	track, err := m.CurrentlyPlaying(context.Background(), "emir")
	if err != nil {
		t.Fatalf("CurrentlyPlaying: %v", err)
	}
	if want := "A - T"; track != want {
		t.Errorf("track = %q, want %q", track, want)
	}
	if n := srv.TokenRequests.Load(); n != 1 {
		t.Errorf("token requests = %d, want exactly 1 refresh", n)
	}
	if n := srv.PlayerRequests.Load(); n != 2 {
		t.Errorf("player requests = %d, want original + one retry", n)
	}

	creds, err := db.GetSpotifyCredentials(context.Background(), m.db, "emir")
	if err != nil {
		t.Fatalf("load credentials: %v", err)
	}
	if creds.AccessToken != "fresh" {
		t.Errorf("access token = %q, want refreshed value persisted", creds.AccessToken)
	}
	if creds.RefreshToken != "rt1" {
		t.Errorf("refresh token = %q, want rt1 retained", creds.RefreshToken)
	}
}

func TestPlaybackGivesUpAfterSecond401(t *testing.T) {
	m, srv := newTestManager(t)
	seedTokens(t, m, "emir", "stale", "rt1")
	srv.MockTokenResponse("still-bad", "rt1")
	srv.MockPlayerSequence(testutil.PlayerUnauthorized, testutil.PlayerUnauthorized)

	_, err := m.CurrentlyPlaying(context.Background(), "emir")
	if !errors.Is(err, ErrNoAuthorization) {
		t.Fatalf("err = %v, want ErrNoAuthorization", err)
	}
	// One refresh, two player calls, and no third attempt.
	if n := srv.TokenRequests.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
	if n := srv.PlayerRequests.Load(); n != 2 {
		t.Errorf("player requests = %d, want 2", n)
	}
}

func TestPlaybackRefreshFailure(t *testing.T) {
	m, srv := newTestManager(t)
	seedTokens(t, m, "emir", "stale", "rt1")
	srv.MockTokenError(400)
	srv.MockPlayerSequence(testutil.PlayerUnauthorized)

	_, err := m.CurrentlyPlaying(context.Background(), "emir")
	if !errors.Is(err, ErrNoAuthorization) {
		t.Fatalf("err = %v, want ErrNoAuthorization when refresh fails", err)
	}
}

func TestCurrentlyPlayingNothingPlaying(t *testing.T) {
	m, srv := newTestManager(t)
	seedTokens(t, m, "emir", "at", "rt")
	srv.MockPlayerNothing()

	_, err := m.CurrentlyPlaying(context.Background(), "emir")
	if !errors.Is(err, ErrNoTrack) {
		t.Fatalf("err = %v, want ErrNoTrack", err)
	}
}

func TestCurrentlyPlayingPlaylist(t *testing.T) {
	m, srv := newTestManager(t)
	seedTokens(t, m, "emir", "at", "rt")
	srv.MockCurrentlyPlaying(true, "A", "T", "https://open.spotify.com/playlist/xyz")

	link, err := m.CurrentlyPlayingPlaylist(context.Background(), "emir")
	if err != nil {
		t.Fatalf("CurrentlyPlayingPlaylist: %v", err)
	}
	if want := "https://open.spotify.com/playlist/xyz"; link != want {
		t.Errorf("link = %q, want %q", link, want)
	}
}

func TestCurrentlyPlayingPlaylistFromAlbum(t *testing.T) {
	m, srv := newTestManager(t)
	seedTokens(t, m, "emir", "at", "rt")
	srv.MockCurrentlyPlaying(true, "A", "T", "https://open.spotify.com/album/xyz")

	_, err := m.CurrentlyPlayingPlaylist(context.Background(), "emir")
	if !errors.Is(err, ErrNotAPlaylist) {
		t.Fatalf("err = %v, want ErrNotAPlaylist", err)
	}
}

func TestRefreshAllIsolatesFailures(t *testing.T) {
	m, srv := newTestManager(t)
	seedTokens(t, m, "alpha", "at-a", "rt-a")
	seedTokens(t, m, "beta", "at-b", "")
	srv.MockTokenResponse("fresh", "rt-a")

	if err := m.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll: %v", err)
	}

	ctx := context.Background()
	alpha, err := db.GetSpotifyCredentials(ctx, m.db, "alpha")
	if err != nil {
		t.Fatalf("load alpha: %v", err)
	}
	if alpha.AccessToken != "fresh" {
		t.Errorf("alpha access token = %q, want fresh", alpha.AccessToken)
	}
	// beta has no refresh token; it is skipped, not fatal.
	beta, err := db.GetSpotifyCredentials(ctx, m.db, "beta")
	if err != nil {
		t.Fatalf("load beta: %v", err)
	}
	if beta.AccessToken != "at-b" {
		t.Errorf("beta access token = %q, want untouched", beta.AccessToken)
	}
}
