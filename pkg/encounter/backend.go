package encounter

import (
	"context"

	"github.com/jwebster45206/boss-rush/pkg/api"
	"github.com/jwebster45206/boss-rush/pkg/prefetch"
)

// Backend is the game service. Failures should be *TransportError or
// *DecodingError; any other error is treated as a transport failure.
type Backend interface {
	Start(ctx context.Context, player string, difficulty api.Difficulty) (*api.StartResponse, error)
	ResolveChoice(ctx context.Context, choiceID string) (*api.TurnResponse, error)
	UseItem(ctx context.Context, item api.ItemID) (*api.ItemResponse, error)
	ClaimReward(ctx context.Context, rewardID string) (*api.RewardResponse, error)

	// Scene fetches the current scene for a boss in one response.
	Scene(ctx context.Context, bossIndex int) (*api.SceneResponse, error)
	// StreamScene fetches the same scene incrementally, calling onChunk with
	// each piece of text as it arrives.
	StreamScene(ctx context.Context, bossIndex int, onChunk func(text string)) (*api.SceneResponse, error)

	FetchFact(ctx context.Context, topic string) (string, error)
	TriggerPrefetch(ctx context.Context) (*api.PrefetchResponse, error)
}

// Prefetcher is the background readiness loop. Stop must be idempotent.
type Prefetcher interface {
	Start(ctx context.Context)
	Stop()
}

var _ Prefetcher = (*prefetch.Scheduler)(nil)

// PrefetchTrigger adapts a Backend to the scheduler's trigger signature.
func PrefetchTrigger(b Backend) prefetch.TriggerFunc {
	return func(ctx context.Context) (prefetch.Status, error) {
		resp, err := b.TriggerPrefetch(ctx)
		if err != nil {
			return prefetch.Status{}, err
		}
		return prefetch.Status{QueueSize: resp.QueueSize, Target: resp.Target}, nil
	}
}

type noopPrefetcher struct{}

func (noopPrefetcher) Start(context.Context) {}
func (noopPrefetcher) Stop()                 {}
