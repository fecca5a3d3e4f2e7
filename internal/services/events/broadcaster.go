package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// EventType names something that happened in a run.
type EventType string

const (
	EventGameStarted   EventType = "game.started"
	EventTurnResolved  EventType = "turn.resolved"
	EventBossDefeated  EventType = "boss.defeated"
	EventGameOver      EventType = "game.over"
	EventItemUsed      EventType = "item.used"
	EventRewardClaimed EventType = "reward.claimed"
	EventScenesReady   EventType = "scenes.ready"
)

// Event is the payload published on a session's channel.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Broadcaster publishes run events to Redis Pub/Sub for the SSE feed.
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Channel is the Pub/Sub channel carrying one session's events.
func Channel(sessionID string) string {
	return "game-events:" + sessionID
}

// Publish sends an event to the session's channel. Nobody listening is not an
// error.
func (b *Broadcaster) Publish(ctx context.Context, sessionID string, typ EventType, data map[string]any) error {
	event := Event{Type: typ, SessionID: sessionID, Data: data}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := Channel(sessionID)
	if err := b.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", typ)
	return nil
}

// Subscribe listens on the session's channel and waits until Redis has
// confirmed the subscription, so no event published afterwards is missed.
func (b *Broadcaster) Subscribe(ctx context.Context, sessionID string) (*redis.PubSub, error) {
	pubsub := b.redisClient.Subscribe(ctx, Channel(sessionID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}
	return pubsub, nil
}

// Decode parses a message received on an event channel.
func Decode(payload string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Event{}, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return e, nil
}
