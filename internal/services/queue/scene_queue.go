package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/boss-rush/internal/arena"
)

const (
	fillRequestsKey = "prefetch-requests"
	fillPendingKey  = "prefetch-pending"

	// Scenes for abandoned sessions age out.
	sceneTTL = time.Hour
)

// SceneQueue keeps prefetched scenes per session, and a global list of
// sessions waiting for a fill.
type SceneQueue struct {
	client *Client
}

func NewSceneQueue(client *Client) *SceneQueue {
	return &SceneQueue{client: client}
}

func sceneKey(sessionID string) string {
	return fmt.Sprintf("prefetch:%s", sessionID)
}

// LockKey is held by the worker filling a session's queue.
func LockKey(sessionID string) string {
	return fmt.Sprintf("prefetch-lock:%s", sessionID)
}

// Push appends a scene to the end of the session's queue.
func (q *SceneQueue) Push(ctx context.Context, sessionID string, scene arena.Scene) error {
	data, err := json.Marshal(scene)
	if err != nil {
		return fmt.Errorf("failed to serialize scene: %w", err)
	}
	key := sceneKey(sessionID)
	pipe := q.client.rdb.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, sceneTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue scene: %w", err)
	}
	return nil
}

// PopForBoss removes and returns the oldest scene generated for bossIndex.
// Scenes left over from earlier bosses are discarded on the way; scenes for
// later bosses stay queued.
func (q *SceneQueue) PopForBoss(ctx context.Context, sessionID string, bossIndex int) (arena.Scene, bool, error) {
	key := sceneKey(sessionID)
	raw, err := q.client.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return arena.Scene{}, false, fmt.Errorf("failed to read scene queue: %w", err)
	}

	for _, item := range raw {
		var scene arena.Scene
		if err := json.Unmarshal([]byte(item), &scene); err != nil {
			q.client.logger.Warn("Dropping unreadable prefetched scene", "error", err, "session_id", sessionID)
			q.discard(ctx, key, sessionID, item)
			continue
		}
		if scene.BossIndex < bossIndex {
			q.client.logger.Debug("Dropping stale prefetched scene",
				"session_id", sessionID,
				"scene_boss", scene.BossIndex,
				"boss_index", bossIndex)
			q.discard(ctx, key, sessionID, item)
			continue
		}
		if scene.BossIndex != bossIndex {
			continue
		}
		removed, err := q.client.rdb.LRem(ctx, key, 1, item).Result()
		if err != nil {
			return arena.Scene{}, false, fmt.Errorf("failed to remove scene: %w", err)
		}
		if removed == 0 {
			// Taken by a concurrent pop.
			continue
		}
		return scene, true, nil
	}
	return arena.Scene{}, false, nil
}

func (q *SceneQueue) discard(ctx context.Context, key, sessionID, item string) {
	if err := q.client.rdb.LRem(ctx, key, 1, item).Err(); err != nil {
		q.client.logger.Error("Failed to discard prefetched scene", "error", err, "session_id", sessionID)
	}
}

// Depth returns the number of scenes queued for a session.
func (q *SceneQueue) Depth(ctx context.Context, sessionID string) (int, error) {
	count, err := q.client.rdb.LLen(ctx, sceneKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get queue depth: %w", err)
	}
	return int(count), nil
}

// Clear removes all queued scenes for a session.
func (q *SceneQueue) Clear(ctx context.Context, sessionID string) error {
	if err := q.client.rdb.Del(ctx, sceneKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear scene queue: %w", err)
	}
	return nil
}

// Filling reports whether a worker currently holds the session's fill lock.
func (q *SceneQueue) Filling(ctx context.Context, sessionID string) (bool, error) {
	n, err := q.client.rdb.Exists(ctx, LockKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check fill lock: %w", err)
	}
	return n > 0, nil
}

// RequestFill asks a worker to top up the session's queue. A session already
// waiting is not queued twice; the return value reports whether it was added.
func (q *SceneQueue) RequestFill(ctx context.Context, sessionID string) (bool, error) {
	added, err := q.client.rdb.SAdd(ctx, fillPendingKey, sessionID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark fill pending: %w", err)
	}
	if added == 0 {
		return false, nil
	}
	if err := q.client.rdb.RPush(ctx, fillRequestsKey, sessionID).Err(); err != nil {
		q.client.rdb.SRem(ctx, fillPendingKey, sessionID)
		return false, fmt.Errorf("failed to enqueue fill request: %w", err)
	}
	return true, nil
}

// NextFill blocks up to timeout for a fill request. It returns "" when the
// wait times out.
func (q *SceneQueue) NextFill(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, fillRequestsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to dequeue fill request: %w", err)
	}

	// BLPop returns [key, value]
	if len(result) != 2 {
		return "", fmt.Errorf("unexpected BLPop result: %v", result)
	}
	sessionID := result[1]
	if err := q.client.rdb.SRem(ctx, fillPendingKey, sessionID).Err(); err != nil {
		return "", fmt.Errorf("failed to clear fill pending: %w", err)
	}
	return sessionID, nil
}

// PendingFills returns the number of sessions waiting for a worker.
func (q *SceneQueue) PendingFills(ctx context.Context) (int, error) {
	count, err := q.client.rdb.LLen(ctx, fillRequestsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get fill request depth: %w", err)
	}
	return int(count), nil
}
