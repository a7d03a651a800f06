package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// MockSpotifyServer creates a test server that mocks the Spotify accounts and
// Web API endpoints used by the token lifecycle.
type MockSpotifyServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	// Request counters for asserting retry behaviour.
	TokenRequests  atomic.Int64
	PlayerRequests atomic.Int64
}

// NewMockSpotifyServer creates a new mock Spotify server
func NewMockSpotifyServer(t *testing.T) *MockSpotifyServer {
	t.Helper()
	m := &MockSpotifyServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/token":
			m.TokenRequests.Add(1)
		case "/v1/me/player/currently-playing":
			m.PlayerRequests.Add(1)
		}
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockTokenResponse adds a handler for the /api/token endpoint that grants
// the same token pair for both authorization_code and refresh_token grants.
func (m *MockSpotifyServer) MockTokenResponse(accessToken, refreshToken string) {
	m.Handlers["/api/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
			"token_type":    "Bearer",
			"expires_in":    3600,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockTokenError makes the /api/token endpoint reject every grant.
func (m *MockSpotifyServer) MockTokenError(status int) {
	m.Handlers["/api/token"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"}) //nolint:errcheck // test mock response
	}
}

// MockCurrentlyPlaying adds a handler for the currently-playing endpoint.
func (m *MockSpotifyServer) MockCurrentlyPlaying(isPlaying bool, artist, title, contextURL string) {
	m.Handlers["/v1/me/player/currently-playing"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"is_playing": isPlaying,
			"item": map[string]interface{}{
				"name": title,
				"artists": []map[string]string{
					{"name": artist},
				},
			},
			"context": map[string]interface{}{
				"external_urls": map[string]string{"spotify": contextURL},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockPlayerNothing makes the currently-playing endpoint return 204 No Content.
func (m *MockSpotifyServer) MockPlayerNothing() {
	m.Handlers["/v1/me/player/currently-playing"] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// MockPlayerSequence serves the given handlers one per request, repeating the
// last one once the sequence is exhausted. Used to simulate a 401 followed by
// a success after refresh.
func (m *MockSpotifyServer) MockPlayerSequence(handlers ...http.HandlerFunc) {
	var i atomic.Int64
	m.Handlers["/v1/me/player/currently-playing"] = func(w http.ResponseWriter, r *http.Request) {
		n := int(i.Add(1)) - 1
		if n >= len(handlers) {
			n = len(handlers) - 1
		}
		handlers[n](w, r)
	}
}

// PlayerUnauthorized is a handler that answers 401, as Spotify does for an
// expired access token.
func PlayerUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck // test mock response
		"error": map[string]interface{}{"status": 401, "message": "The access token expired"},
	})
}

// PlayerPlaying returns a handler that answers 200 with one playing track.
func PlayerPlaying(artist, title, contextURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"is_playing": true,
			"item": map[string]interface{}{
				"name": title,
				"artists": []map[string]string{
					{"name": artist},
				},
			},
			"context": map[string]interface{}{
				"external_urls": map[string]string{"spotify": contextURL},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}
