package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/internal/services/events"
)

type RouterConfig struct {
	Store          *arena.Store
	Scenes         SceneQueue
	Redis          Pinger
	Events         *events.Broadcaster // Optional; enables GET /api/events
	PrefetchTarget int
	StreamDelay    time.Duration
	Logger         *slog.Logger
}

// NewRouter mounts every endpoint of the game service.
func NewRouter(cfg RouterConfig) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /health", NewHealthHandler(cfg.Redis, cfg.Store, cfg.Logger))

	var publisher EventPublisher
	if cfg.Events != nil {
		publisher = cfg.Events
		NewEventsHandler(cfg.Store, cfg.Events, cfg.Logger).Register(mux)
	}
	NewGameHandler(cfg.Store, cfg.Scenes, publisher, cfg.StreamDelay, cfg.Logger).Register(mux)
	NewPrefetchHandler(cfg.Store, cfg.Scenes, cfg.PrefetchTarget, cfg.Logger).Register(mux)
	NewInfoHandler(cfg.Store.Content(), cfg.Logger).Register(mux)
	return mux
}
