package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/pkg/api"
)

const (
	triggerEvery = time.Second
	triggerBurst = 3
)

// PrefetchHandler lets clients nudge and inspect their scene queue.
type PrefetchHandler struct {
	store  *arena.Store
	scenes SceneQueue
	target int
	logger *slog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewPrefetchHandler(store *arena.Store, scenes SceneQueue, target int, log *slog.Logger) *PrefetchHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &PrefetchHandler{
		store:    store,
		scenes:   scenes,
		target:   target,
		logger:   log,
		limiters: map[string]*rate.Limiter{},
	}
}

func (h *PrefetchHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/trigger_prefetch", h.handleTrigger)
	mux.HandleFunc("GET /api/prefetch_status", h.handleStatus)
}

func (h *PrefetchHandler) limiter(sessionID string) *rate.Limiter {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(rate.Every(triggerEvery), triggerBurst)
		h.limiters[sessionID] = l
	}
	return l
}

func (h *PrefetchHandler) forget(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.limiters, sessionID)
}

// handleTrigger answers with the queue depth. Callers over their rate still
// get the depth but no new fill request.
func (h *PrefetchHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r, h.store, h.logger)
	if !ok {
		return
	}
	if active, _ := g.Status(); !active {
		h.forget(g.ID())
		writeJSON(w, h.logger, http.StatusOK, api.PrefetchResponse{Status: "inactive", Target: h.target})
		return
	}

	status := "ok"
	if h.limiter(g.ID()).Allow() {
		if _, err := h.scenes.RequestFill(r.Context(), g.ID()); err != nil {
			h.logger.Warn("Failed to request scene prefetch", "error", err, "session_id", g.ID())
		}
	} else {
		status = "throttled"
	}

	depth, err := h.scenes.Depth(r.Context(), g.ID())
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, api.PrefetchResponse{Status: status, QueueSize: depth, Target: h.target})
}

func (h *PrefetchHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r, h.store, h.logger)
	if !ok {
		return
	}
	depth, err := h.scenes.Depth(r.Context(), g.ID())
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}
	filling, err := h.scenes.Filling(r.Context(), g.ID())
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}
	active, boss := g.Status()
	writeJSON(w, h.logger, http.StatusOK, api.PrefetchStatus{
		QueueSize:   depth,
		Target:      h.target,
		Running:     filling,
		QueueFull:   depth >= h.target,
		GameActive:  active,
		CurrentBoss: boss,
	})
}
