package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/emircodes/automagic/config"
	"github.com/emircodes/automagic/db"
)

// Handlers holds the dependencies shared by the HTTP endpoints.
type Handlers struct {
	db      *sql.DB
	cfg     config.Config
	started time.Time
}

// HandleHealthz responds to liveness probe requests by checking database connectivity.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz responds to readiness probe requests with detailed checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error { return h.db.PingContext(r.Context()) }},
		{"twitch_credentials", func() error {
			if err := h.cfg.ValidateChatReady(); err != nil {
				return fmt.Errorf("chat not configured: %w", err)
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus reports a coarse operational snapshot: joined channels, which
// of them have Spotify linked, stored command count, and uptime.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	spotifyChannels, err := db.ListSpotifyChannels(ctx, h.db)
	if err != nil {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}

	var commandCount int
	if err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM commands`).Scan(&commandCount); err != nil {
		http.Error(w, "status query failed", http.StatusInternalServerError)
		return
	}

	payload := map[string]any{
		"channels":         h.cfg.Channels,
		"spotify_channels": spotifyChannels,
		"custom_commands":  commandCount,
		"uptime_seconds":   int(time.Since(h.started).Seconds()),
	}
	if version, dirty, err := db.GetMigrationVersion(h.db); err == nil {
		payload["migration_version"] = version
		payload["migration_dirty"] = dirty
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}
