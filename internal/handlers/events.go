package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/internal/services/events"
	"github.com/jwebster45206/boss-rush/pkg/api"
)

const keepaliveInterval = 30 * time.Second

// EventsHandler serves a session's run events as Server-Sent Events.
type EventsHandler struct {
	store       *arena.Store
	broadcaster *events.Broadcaster
	keepalive   time.Duration
	logger      *slog.Logger
}

func NewEventsHandler(store *arena.Store, broadcaster *events.Broadcaster, log *slog.Logger) *EventsHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &EventsHandler{
		store:       store,
		broadcaster: broadcaster,
		keepalive:   keepaliveInterval,
		logger:      log,
	}
}

func (h *EventsHandler) Register(mux *http.ServeMux) {
	mux.Handle("GET /api/events", h)
}

// ServeHTTP streams events for the session named by the X-Session-ID header
// or, for browsers' EventSource, the session_id query parameter.
// GET /api/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(api.SessionHeader)
	if sessionID == "" {
		sessionID = r.URL.Query().Get("session_id")
	}
	if sessionID == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Missing "+api.SessionHeader+" header.")
		return
	}
	if _, err := h.store.Get(r.Context(), sessionID); err != nil {
		if errors.Is(err, arena.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "Game not started.")
			return
		}
		writeGameError(w, r, h.logger, err)
		return
	}

	pubsub, err := h.broadcaster.Subscribe(r.Context(), sessionID)
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}
	defer func() {
		if err := pubsub.Close(); err != nil {
			h.logger.Error("Failed to close pubsub", "error", err)
		}
	}()

	h.logger.Info("SSE connection established", "session_id", sessionID, "remote_addr", r.RemoteAddr)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if err := h.sendSSE(w, "connected", map[string]any{"session_id": sessionID}); err != nil {
		return
	}

	msgChan := pubsub.Channel()
	keepaliveTicker := time.NewTicker(h.keepalive)
	defer keepaliveTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("SSE client disconnected", "session_id", sessionID)
			return

		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			event, err := events.Decode(msg.Payload)
			if err != nil {
				h.logger.Error("Dropping undecodable event", "error", err, "payload", msg.Payload)
				continue
			}
			if err := h.sendSSE(w, string(event.Type), event.Data); err != nil {
				return
			}

		case <-keepaliveTicker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				h.logger.Debug("Failed to write keepalive", "error", err)
				return
			}
			flush(w)
		}
	}
}

func (h *EventsHandler) sendSSE(w http.ResponseWriter, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("Failed to marshal SSE data", "error", err)
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		h.logger.Debug("Failed to write SSE event", "error", err)
		return err
	}
	flush(w)
	return nil
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
