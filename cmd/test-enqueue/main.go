package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jwebster45206/boss-rush/internal/services/queue"
)

// Queues a prefetch fill for a live session and reports what the workers
// make of it. Handy when poking at a local stack by hand.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <session-id>\n", os.Args[0])
		os.Exit(1)
	}
	sessionID := os.Args[1]

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := queue.NewClient(ctx, redisURL, nil)
	if err != nil {
		log.Fatal("Failed to connect to Redis: ", err)
	}
	defer client.Close()
	fmt.Println("Connected to Redis successfully!")

	scenes := queue.NewSceneQueue(client)
	before, err := scenes.Depth(ctx, sessionID)
	if err != nil {
		log.Fatal("Failed to read queue depth: ", err)
	}

	added, err := scenes.RequestFill(ctx, sessionID)
	if err != nil {
		log.Fatal("Failed to request fill: ", err)
	}
	if added {
		fmt.Printf("✅ Fill requested for %s\n", sessionID)
	} else {
		fmt.Printf("⏳ A fill for %s is already pending\n", sessionID)
	}

	pending, err := scenes.PendingFills(ctx)
	if err != nil {
		log.Fatal("Failed to read pending fills: ", err)
	}
	fmt.Printf("\n📊 Scenes queued: %d, fill requests pending: %d\n", before, pending)

	// Give a running worker a moment, then report what changed.
	time.Sleep(2 * time.Second)
	after, err := scenes.Depth(ctx, sessionID)
	if err != nil {
		log.Fatal("Failed to read queue depth: ", err)
	}
	filling, err := scenes.Filling(ctx, sessionID)
	if err != nil {
		log.Fatal("Failed to read fill lock: ", err)
	}
	fmt.Printf("📊 Scenes queued now: %d (worker filling: %v)\n", after, filling)
	if after == before && pending > 0 {
		fmt.Println("\n💡 Nothing was consumed. Is the API (which runs the workers) up?")
		fmt.Println("   Run: go run ./cmd/api")
	}
}
