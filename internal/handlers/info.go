package handlers

import (
	"log/slog"
	"net/http"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/pkg/api"
)

// InfoHandler serves read-only content: facts and the boss roster.
type InfoHandler struct {
	content *arena.Content
	logger  *slog.Logger
}

func NewInfoHandler(content *arena.Content, log *slog.Logger) *InfoHandler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &InfoHandler{content: content, logger: log}
}

func (h *InfoHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/fact", h.handleFact)
	mux.HandleFunc("GET /api/boss_list", h.handleBossList)
}

func (h *InfoHandler) handleFact(w http.ResponseWriter, r *http.Request) {
	fact := h.content.Fact(r.URL.Query().Get("topic"), nil)
	writeJSON(w, h.logger, http.StatusOK, api.FactResponse{Fact: fact})
}

func (h *InfoHandler) handleBossList(w http.ResponseWriter, r *http.Request) {
	bosses := make([]api.BossInfo, 0, len(h.content.Bosses))
	for _, b := range h.content.Bosses {
		bosses = append(bosses, api.BossInfo{Name: b.Name, Category: b.Category})
	}
	writeJSON(w, h.logger, http.StatusOK, api.BossListResponse{Bosses: bosses})
}
