package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/internal/services/events"
	"github.com/jwebster45206/boss-rush/internal/services/queue"
)

const (
	defaultPollTimeout = 5 * time.Second
	lockTTL            = 30 * time.Second
)

// Only delete if we own the lock
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// GameSource looks up live games by session id.
type GameSource interface {
	Get(ctx context.Context, id string) (*arena.Game, error)
}

// Worker tops up per-session scene queues on request, so a resolved choice
// can usually be answered with a scene that is already generated.
type Worker struct {
	id          string
	queue       *queue.SceneQueue
	games       GameSource
	redisClient *redis.Client
	target      int
	pollTimeout time.Duration
	events      *events.Broadcaster
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

type Option func(*Worker)

// WithPollTimeout bounds each wait for a fill request, and so how long Stop
// may take to be noticed.
func WithPollTimeout(d time.Duration) Option {
	return func(w *Worker) {
		w.pollTimeout = d
	}
}

// WithEvents announces every fill that pushed scenes on the session's feed.
func WithEvents(b *events.Broadcaster) Option {
	return func(w *Worker) {
		w.events = b
	}
}

// New creates a new worker instance
func New(q *queue.SceneQueue, games GameSource, redisClient *redis.Client, target int, log *slog.Logger, workerID string, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	w := &Worker{
		id:          workerID,
		queue:       q,
		games:       games,
		redisClient: redisClient,
		target:      target,
		pollTimeout: defaultPollTimeout,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start processes fill requests until Stop is called.
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id, "target", w.target)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				if w.ctx.Err() != nil {
					continue
				}
				w.log.Error("Error processing fill request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop gracefully shuts down the worker
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest waits for the next fill request and serves it.
func (w *Worker) processNextRequest() error {
	sessionID, err := w.queue.NextFill(w.ctx, w.pollTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue fill request: %w", err)
	}
	if sessionID == "" {
		// Timed out; normal when idle.
		return nil
	}

	locked, err := w.acquireFillLock(sessionID)
	if err != nil {
		return fmt.Errorf("failed to acquire fill lock: %w", err)
	}
	if !locked {
		// Whoever holds the lock fills to the same target.
		w.log.Debug("Session already being filled", "worker_id", w.id, "session_id", sessionID)
		return nil
	}
	defer w.releaseFillLock(sessionID)

	start := time.Now()
	pushed, err := w.fill(sessionID)
	if err != nil {
		return fmt.Errorf("failed to fill session %s: %w", sessionID, err)
	}
	w.log.Debug("Filled scene queue",
		"worker_id", w.id,
		"session_id", sessionID,
		"pushed", pushed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if pushed > 0 && w.events != nil {
		_ = w.events.Publish(w.ctx, sessionID, events.EventScenesReady, map[string]any{
			"pushed": pushed,
			"target": w.target,
		})
	}
	return nil
}

// fill generates scenes for the session's current boss until the queue
// reaches the target, the run stops taking turns, or the boss changes.
func (w *Worker) fill(sessionID string) (int, error) {
	game, err := w.games.Get(w.ctx, sessionID)
	if errors.Is(err, arena.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	pushed := 0
	for w.ctx.Err() == nil {
		depth, err := w.queue.Depth(w.ctx, sessionID)
		if err != nil {
			return pushed, err
		}
		if depth >= w.target {
			break
		}
		scene, ok := game.PrefetchScene()
		if !ok || game.BossIndex() != scene.BossIndex {
			break
		}
		if err := w.queue.Push(w.ctx, sessionID, scene); err != nil {
			return pushed, err
		}
		pushed++
	}
	return pushed, nil
}

// acquireFillLock reports false if another worker holds the session's lock.
func (w *Worker) acquireFillLock(sessionID string) (bool, error) {
	return w.redisClient.SetNX(w.ctx, queue.LockKey(sessionID), w.id, lockTTL).Result()
}

func (w *Worker) releaseFillLock(sessionID string) {
	// Release even when shutting down.
	ctx := context.WithoutCancel(w.ctx)
	if err := releaseScript.Run(ctx, w.redisClient, []string{queue.LockKey(sessionID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release fill lock", "error", err, "session_id", sessionID)
	}
}
