package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/internal/config"
	"github.com/jwebster45206/boss-rush/internal/handlers"
	"github.com/jwebster45206/boss-rush/internal/logger"
	"github.com/jwebster45206/boss-rush/internal/middleware"
	"github.com/jwebster45206/boss-rush/internal/services/events"
	"github.com/jwebster45206/boss-rush/internal/services/queue"
	"github.com/jwebster45206/boss-rush/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting Boss Rush API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"prefetch_target", cfg.PrefetchTarget,
		"prefetch_workers", cfg.PrefetchWorkers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, connectCancel := context.WithTimeout(ctx, 30*time.Second)
	queueClient, err := queue.NewClient(connectCtx, cfg.RedisURL, log)
	connectCancel()
	if err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	log.Info("Redis connection established successfully")

	content, err := loadContent(cfg.ContentFile)
	if err != nil {
		log.Error("Failed to load game content", "error", err)
		os.Exit(1)
	}
	store := arena.NewStore(content)
	scenes := queue.NewSceneQueue(queueClient)
	broadcaster := events.NewBroadcaster(queueClient.Redis(), log)

	router := handlers.NewRouter(handlers.RouterConfig{
		Store:          store,
		Scenes:         scenes,
		Redis:          queueClient,
		Events:         broadcaster,
		PrefetchTarget: cfg.PrefetchTarget,
		StreamDelay:    cfg.StreamDelay,
		Logger:         log,
	})
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.Logger(log)(router),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the scene stream paces itself.
		IdleTimeout: 60 * time.Second,
	}
	// Event feeds never finish on their own; end them when shutdown begins.
	requestCtx, cancelRequests := context.WithCancel(context.Background())
	server.BaseContext = func(net.Listener) context.Context { return requestCtx }
	server.RegisterOnShutdown(cancelRequests)

	workers := make([]*worker.Worker, cfg.PrefetchWorkers)
	for i := range workers {
		workers[i] = worker.New(scenes, store, queueClient.Redis(), cfg.PrefetchTarget, log, "", worker.WithEvents(broadcaster))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	for _, w := range workers {
		g.Go(w.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Server is shutting down...")
		for _, w := range workers {
			w.Stop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("Server exited")
}

func loadContent(path string) (*arena.Content, error) {
	if path == "" {
		return arena.DefaultContent()
	}
	return arena.LoadContent(path)
}
