package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/internal/services/events"
	"github.com/jwebster45206/boss-rush/pkg/api"
)

// SceneQueue is the prefetched-scene store the handlers read and schedule.
type SceneQueue interface {
	PopForBoss(ctx context.Context, sessionID string, bossIndex int) (arena.Scene, bool, error)
	Clear(ctx context.Context, sessionID string) error
	Depth(ctx context.Context, sessionID string) (int, error)
	RequestFill(ctx context.Context, sessionID string) (bool, error)
	Filling(ctx context.Context, sessionID string) (bool, error)
}

// EventPublisher receives run events for the live feed.
type EventPublisher interface {
	Publish(ctx context.Context, sessionID string, typ events.EventType, data map[string]any) error
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, api.ErrorResponse{Error: msg})
}

// writeGameError maps a rules refusal to 400 and anything else to 500.
func writeGameError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var rule arena.RuleError
	if errors.As(err, &rule) {
		logger.Debug("Request refused", "path", r.URL.Path, "reason", rule.Error())
		writeError(w, logger, http.StatusBadRequest, rule.Error())
		return
	}
	logger.Error("Request failed", "path", r.URL.Path, "error", err)
	writeError(w, logger, http.StatusInternalServerError, "Internal server error")
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// lookupGame resolves the session named by the request header, writing the
// error response itself when it cannot.
func lookupGame(w http.ResponseWriter, r *http.Request, store *arena.Store, logger *slog.Logger) (*arena.Game, bool) {
	id := r.Header.Get(api.SessionHeader)
	if id == "" {
		writeError(w, logger, http.StatusBadRequest, "Missing "+api.SessionHeader+" header.")
		return nil, false
	}
	g, err := store.Get(r.Context(), id)
	if errors.Is(err, arena.ErrNotFound) {
		writeError(w, logger, http.StatusNotFound, "Game not started.")
		return nil, false
	}
	if err != nil {
		writeGameError(w, r, logger, err)
		return nil, false
	}
	return g, true
}
