package worker

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/boss-rush/internal/arena"
	"github.com/jwebster45206/boss-rush/internal/services/events"
	"github.com/jwebster45206/boss-rush/internal/services/queue"
	"github.com/jwebster45206/boss-rush/pkg/api"
)

type fixture struct {
	mr     *miniredis.Miniredis
	client *queue.Client
	queue  *queue.SceneQueue
	store  *arena.Store
	worker *Worker
}

func setup(t *testing.T, target int) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := queue.NewClient(context.Background(), "redis://"+mr.Addr(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	content, err := arena.DefaultContent()
	require.NoError(t, err)
	store := arena.NewStore(content, arena.WithRand(func() *rand.Rand {
		return rand.New(rand.NewPCG(3, 4))
	}))

	q := queue.NewSceneQueue(client)
	w := New(q, store, client.Redis(), target, nil, "worker-test", WithPollTimeout(time.Second))
	t.Cleanup(w.Stop)
	return &fixture{mr: mr, client: client, queue: q, store: store, worker: w}
}

func (f *fixture) newGame(t *testing.T) *arena.Game {
	t.Helper()
	g, err := f.store.Create(context.Background(), "Ada", api.DifficultyMedium)
	require.NoError(t, err)
	return g
}

func TestWorker_FillsToTarget(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()
	g := f.newGame(t)

	_, err := f.queue.RequestFill(ctx, g.ID())
	require.NoError(t, err)
	require.NoError(t, f.worker.processNextRequest())

	depth, err := f.queue.Depth(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
	assert.False(t, f.mr.Exists(queue.LockKey(g.ID())), "lock released after fill")

	scene, ok, err := f.queue.PopForBoss(ctx, g.ID(), 0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, scene.Choices, 4)

	// Only the missing scene is generated on the next request.
	_, err = f.queue.RequestFill(ctx, g.ID())
	require.NoError(t, err)
	require.NoError(t, f.worker.processNextRequest())
	depth, err = f.queue.Depth(ctx, g.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, depth)
}

func TestWorker_SkipsLockedSession(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()
	g := f.newGame(t)
	require.NoError(t, f.mr.Set(queue.LockKey(g.ID()), "someone-else"))

	_, err := f.queue.RequestFill(ctx, g.ID())
	require.NoError(t, err)
	require.NoError(t, f.worker.processNextRequest())

	depth, err := f.queue.Depth(ctx, g.ID())
	require.NoError(t, err)
	assert.Zero(t, depth)

	owner, err := f.mr.Get(queue.LockKey(g.ID()))
	require.NoError(t, err)
	assert.Equal(t, "someone-else", owner, "a foreign lock is never released")
}

func TestWorker_UnknownSession(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()

	_, err := f.queue.RequestFill(ctx, "gone")
	require.NoError(t, err)
	assert.NoError(t, f.worker.processNextRequest())
}

func TestWorker_SkipsGameNotTakingTurns(t *testing.T) {
	f := setup(t, 3)
	ctx := context.Background()
	g := f.newGame(t)

	// Play the last option until the run ends or waits on a reward.
	for range 200 {
		resp, err := g.Scene(g.BossIndex())
		if err != nil {
			break
		}
		if _, err := g.ApplyChoice(resp.Choices[len(resp.Choices)-1].ID, nil); err != nil {
			break
		}
	}
	_, ok := g.PrefetchScene()
	require.False(t, ok)

	_, err := f.queue.RequestFill(ctx, g.ID())
	require.NoError(t, err)
	require.NoError(t, f.worker.processNextRequest())
	depth, err := f.queue.Depth(ctx, g.ID())
	require.NoError(t, err)
	assert.Zero(t, depth)
}

func TestWorker_IdleTimeout(t *testing.T) {
	f := setup(t, 3)
	assert.NoError(t, f.worker.processNextRequest())
}

func TestWorker_StartStop(t *testing.T) {
	f := setup(t, 2)
	ctx := context.Background()
	g := f.newGame(t)

	done := make(chan error, 1)
	go func() { done <- f.worker.Start() }()

	_, err := f.queue.RequestFill(ctx, g.ID())
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		depth, err := f.queue.Depth(ctx, g.ID())
		return err == nil && depth == 2
	}, 3*time.Second, 20*time.Millisecond)

	f.worker.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_AnnouncesFill(t *testing.T) {
	f := setup(t, 2)
	b := events.NewBroadcaster(f.client.Redis(), nil)
	WithEvents(b)(f.worker)
	g := f.newGame(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pubsub, err := b.Subscribe(ctx, g.ID())
	require.NoError(t, err)
	defer pubsub.Close()

	_, err = f.queue.RequestFill(ctx, g.ID())
	require.NoError(t, err)
	require.NoError(t, f.worker.processNextRequest())

	msg, err := pubsub.ReceiveMessage(ctx)
	require.NoError(t, err)
	event, err := events.Decode(msg.Payload)
	require.NoError(t, err)
	assert.Equal(t, events.EventScenesReady, event.Type)
	assert.EqualValues(t, 2, event.Data["pushed"])
}
