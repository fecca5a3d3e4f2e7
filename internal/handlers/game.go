package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/internal/logger"
	"github.com/jwebster45206/boss-rush/internal/services/events"
	"github.com/jwebster45206/boss-rush/pkg/api"
)

// GameHandler serves the endpoints that create and advance a run.
type GameHandler struct {
	store       *arena.Store
	scenes      SceneQueue
	events      EventPublisher
	streamDelay time.Duration
	logger      *slog.Logger
}

// NewGameHandler builds the handler. publisher may be nil.
func NewGameHandler(store *arena.Store, scenes SceneQueue, publisher EventPublisher, streamDelay time.Duration, log *slog.Logger) *GameHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &GameHandler{
		store:       store,
		scenes:      scenes,
		events:      publisher,
		streamDelay: streamDelay,
		logger:      log,
	}
}

// Register mounts the game routes on mux.
func (h *GameHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/start", h.handleStart)
	mux.HandleFunc("POST /api/scene", h.handleScene)
	mux.HandleFunc("GET /api/scene/stream", h.handleSceneStream)
	mux.HandleFunc("POST /api/apply_choice", h.handleApplyChoice)
	mux.HandleFunc("POST /api/use_item", h.handleUseItem)
	mux.HandleFunc("POST /api/claim_reward", h.handleClaimReward)
}

func (h *GameHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req api.StartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
		return
	}

	g, err := h.store.Create(r.Context(), req.Username, req.Difficulty)
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}
	resp := g.StartResponse()
	log := logger.WithSession(h.logger, g.ID())
	log.Info("Game started", "username", resp.Username, "difficulty", resp.Difficulty, "first_boss", resp.Boss.Name)

	h.requestFill(r.Context(), log, g.ID())
	h.publish(r.Context(), log, g.ID(), events.EventGameStarted, map[string]any{
		"username":   resp.Username,
		"difficulty": resp.Difficulty,
		"boss":       resp.Boss.Name,
	})
	w.Header().Set(api.SessionHeader, g.ID())
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *GameHandler) handleScene(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r, h.store, h.logger)
	if !ok {
		return
	}
	var req api.SceneRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
		return
	}
	resp, err := g.Scene(req.BossIndex)
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// handleSceneStream sends the current scene as "data: {json}" lines: one
// chunk frame per word, then a complete frame carrying the whole scene.
func (h *GameHandler) handleSceneStream(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r, h.store, h.logger)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(r.URL.Query().Get("boss_index"))
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "boss_index must be an integer.")
		return
	}
	resp, err := g.Scene(idx)
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	var timer *time.Timer
	if h.streamDelay > 0 {
		timer = time.NewTimer(h.streamDelay)
		defer timer.Stop()
	}
	for _, word := range strings.SplitAfter(resp.Scene, " ") {
		if word == "" {
			continue
		}
		if err := h.sendFrame(w, api.StreamEvent{Type: api.StreamChunk, Text: word}); err != nil {
			h.logger.Debug("Scene stream aborted", "error", err, "session_id", g.ID())
			return
		}
		if timer == nil {
			continue
		}
		select {
		case <-r.Context().Done():
			h.logger.Debug("Scene stream client disconnected", "session_id", g.ID())
			return
		case <-timer.C:
			timer.Reset(h.streamDelay)
		}
	}
	if err := h.sendFrame(w, api.StreamEvent{Type: api.StreamComplete, SceneResponse: &resp}); err != nil {
		h.logger.Debug("Scene stream aborted", "error", err, "session_id", g.ID())
	}
}

func (h *GameHandler) sendFrame(w http.ResponseWriter, ev api.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal stream frame: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n", data); err != nil {
		return fmt.Errorf("failed to write stream frame: %w", err)
	}
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

func (h *GameHandler) handleApplyChoice(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r, h.store, h.logger)
	if !ok {
		return
	}
	var req api.ChoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
		return
	}
	log := logger.WithSession(h.logger, g.ID())

	ctx := r.Context()
	resp, err := g.ApplyChoice(req.ChoiceID, func(bossIndex int) (arena.Scene, bool) {
		scene, found, err := h.scenes.PopForBoss(ctx, g.ID(), bossIndex)
		if err != nil {
			log.Warn("Prefetched scene unavailable", "error", err)
			return arena.Scene{}, false
		}
		return scene, found
	})
	if err != nil {
		writeGameError(w, r, log, err)
		return
	}

	log.Info("Choice resolved", "choice_id", req.ChoiceID, "outcome", resp.Outcome, "was_sustainable", resp.WasSustainable)
	if resp.Outcome == string(api.OutcomeContinue) {
		h.requestFill(ctx, log, g.ID())
	} else {
		h.clearScenes(ctx, log, g.ID())
	}
	h.publish(ctx, log, g.ID(), turnEvent(resp.Outcome), map[string]any{
		"outcome":         resp.Outcome,
		"was_sustainable": resp.WasSustainable,
		"wins":            resp.Wins,
		"boss_index":      resp.BossIndex,
	})
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *GameHandler) handleUseItem(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r, h.store, h.logger)
	if !ok {
		return
	}
	var req api.ItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
		return
	}
	resp, err := g.UseItem(req.ItemID)
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}
	log := logger.WithSession(h.logger, g.ID())
	log.Info("Item used", "item_id", resp.ItemID)
	h.publish(r.Context(), log, g.ID(), events.EventItemUsed, map[string]any{"item_id": resp.ItemID})
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *GameHandler) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	g, ok := lookupGame(w, r, h.store, h.logger)
	if !ok {
		return
	}
	var req api.RewardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body.")
		return
	}
	resp, err := g.ClaimReward(req.RewardID)
	if err != nil {
		writeGameError(w, r, h.logger, err)
		return
	}

	log := logger.WithSession(h.logger, g.ID())
	log.Info("Reward claimed", "reward_id", resp.RewardID, "next_boss", resp.Boss.Name)
	// Scenes queued for the defeated boss are useless now.
	h.clearScenes(r.Context(), log, g.ID())
	h.requestFill(r.Context(), log, g.ID())
	h.publish(r.Context(), log, g.ID(), events.EventRewardClaimed, map[string]any{
		"reward_id": resp.RewardID,
		"next_boss": resp.Boss.Name,
	})
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *GameHandler) requestFill(ctx context.Context, log *slog.Logger, sessionID string) {
	if _, err := h.scenes.RequestFill(ctx, sessionID); err != nil {
		log.Warn("Failed to request scene prefetch", "error", err)
	}
}

func (h *GameHandler) clearScenes(ctx context.Context, log *slog.Logger, sessionID string) {
	if err := h.scenes.Clear(ctx, sessionID); err != nil {
		log.Warn("Failed to clear prefetched scenes", "error", err)
	}
}

func (h *GameHandler) publish(ctx context.Context, log *slog.Logger, sessionID string, typ events.EventType, data map[string]any) {
	if h.events == nil {
		return
	}
	if err := h.events.Publish(ctx, sessionID, typ, data); err != nil {
		log.Warn("Failed to publish event", "error", err, "event_type", typ)
	}
}

func turnEvent(outcome string) events.EventType {
	switch api.Outcome(outcome) {
	case api.OutcomeBossDefeated:
		return events.EventBossDefeated
	case api.OutcomeVictory, api.OutcomePlayerDefeated:
		return events.EventGameOver
	default:
		return events.EventTurnResolved
	}
}
