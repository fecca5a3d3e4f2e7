package encounter

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

// MockBackend is a Backend for tests. Each call is recorded before the
// matching Func runs, so a Func may block without holding the lock.
type MockBackend struct {
	StartFunc           func(ctx context.Context, player string, difficulty api.Difficulty) (*api.StartResponse, error)
	ResolveChoiceFunc   func(ctx context.Context, choiceID string) (*api.TurnResponse, error)
	UseItemFunc         func(ctx context.Context, item api.ItemID) (*api.ItemResponse, error)
	ClaimRewardFunc     func(ctx context.Context, rewardID string) (*api.RewardResponse, error)
	SceneFunc           func(ctx context.Context, bossIndex int) (*api.SceneResponse, error)
	StreamSceneFunc     func(ctx context.Context, bossIndex int, onChunk func(string)) (*api.SceneResponse, error)
	FetchFactFunc       func(ctx context.Context, topic string) (string, error)
	TriggerPrefetchFunc func(ctx context.Context) (*api.PrefetchResponse, error)

	// Calls holds every call in order, plus anything added with Record.
	Calls []MockCall

	mu sync.Mutex // protects Calls
}

type MockCall struct {
	Op  string
	Arg string
}

var _ Backend = (*MockBackend)(nil)

func NewMockBackend() *MockBackend {
	return &MockBackend{Calls: make([]MockCall, 0)}
}

// Record appends an entry to the call log. Tests use it to interleave other
// collaborators' events with backend calls.
func (m *MockBackend) Record(op, arg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, MockCall{Op: op, Arg: arg})
}

// CallLog returns a copy of the recorded calls.
func (m *MockBackend) CallLog() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.Calls...)
}

// Count returns how many calls of op were made.
func (m *MockBackend) Count(op string) int {
	n := 0
	for _, c := range m.CallLog() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (m *MockBackend) Start(ctx context.Context, player string, difficulty api.Difficulty) (*api.StartResponse, error) {
	m.Record("start", player)
	if m.StartFunc != nil {
		return m.StartFunc(ctx, player, difficulty)
	}
	return &api.StartResponse{
		SessionID:  "session-1",
		Username:   player,
		Difficulty: difficulty,
		Encounter:  MockEncounter(0, "Carbon King", 45, 0, 5),
		Vitals:     api.Vitals{PlayerHP: api.IntPtr(7), PlayerMaxHP: api.IntPtr(7)},
	}, nil
}

func (m *MockBackend) ResolveChoice(ctx context.Context, choiceID string) (*api.TurnResponse, error) {
	m.Record("resolve_choice", choiceID)
	if m.ResolveChoiceFunc != nil {
		return m.ResolveChoiceFunc(ctx, choiceID)
	}
	return &api.TurnResponse{
		Outcome:   string(api.OutcomeContinue),
		Message:   "The boss staggers.",
		Encounter: MockEncounter(0, "Carbon King", 40, 0, 5),
		Vitals:    api.Vitals{PlayerHP: api.IntPtr(7)},
	}, nil
}

func (m *MockBackend) UseItem(ctx context.Context, item api.ItemID) (*api.ItemResponse, error) {
	m.Record("use_item", string(item))
	if m.UseItemFunc != nil {
		return m.UseItemFunc(ctx, item)
	}
	return &api.ItemResponse{
		Outcome: string(api.OutcomeItemUsed),
		ItemID:  item,
		Message: fmt.Sprintf("You used %s.", item),
		Vitals:  api.Vitals{PlayerHP: api.IntPtr(7)},
	}, nil
}

func (m *MockBackend) ClaimReward(ctx context.Context, rewardID string) (*api.RewardResponse, error) {
	m.Record("claim_reward", rewardID)
	if m.ClaimRewardFunc != nil {
		return m.ClaimRewardFunc(ctx, rewardID)
	}
	return &api.RewardResponse{
		Outcome:       string(api.OutcomeRewardClaimed),
		RewardID:      rewardID,
		RewardMessage: "Reward claimed.",
		Encounter:     MockEncounter(1, "Plastic Hydra", 45, 1, 5),
		Vitals:        api.Vitals{PlayerHP: api.IntPtr(7)},
	}, nil
}

func (m *MockBackend) Scene(ctx context.Context, bossIndex int) (*api.SceneResponse, error) {
	m.Record("scene", fmt.Sprint(bossIndex))
	if m.SceneFunc != nil {
		return m.SceneFunc(ctx, bossIndex)
	}
	return &api.SceneResponse{Encounter: MockEncounter(bossIndex, "Carbon King", 45, 0, 5)}, nil
}

func (m *MockBackend) StreamScene(ctx context.Context, bossIndex int, onChunk func(string)) (*api.SceneResponse, error) {
	m.Record("stream_scene", fmt.Sprint(bossIndex))
	if m.StreamSceneFunc != nil {
		return m.StreamSceneFunc(ctx, bossIndex, onChunk)
	}
	enc := MockEncounter(bossIndex, "Carbon King", 45, 0, 5)
	for _, word := range strings.SplitAfter(enc.Scene, " ") {
		onChunk(word)
	}
	return &api.SceneResponse{Encounter: enc}, nil
}

func (m *MockBackend) FetchFact(ctx context.Context, topic string) (string, error) {
	m.Record("fetch_fact", topic)
	if m.FetchFactFunc != nil {
		return m.FetchFactFunc(ctx, topic)
	}
	return "Trees absorb carbon.", nil
}

func (m *MockBackend) TriggerPrefetch(ctx context.Context) (*api.PrefetchResponse, error) {
	m.Record("trigger_prefetch", "")
	if m.TriggerPrefetchFunc != nil {
		return m.TriggerPrefetchFunc(ctx)
	}
	return &api.PrefetchResponse{Status: "queued", QueueSize: 1, Target: 8}, nil
}

// MockEncounter builds an encounter block with four choices A to D.
func MockEncounter(index int, boss string, bossHP, wins, required int) api.Encounter {
	return api.Encounter{
		Wins:         wins,
		RequiredWins: required,
		BossIndex:    index,
		Boss:         &api.Boss{Name: boss, Category: "climate", HP: bossHP},
		Scene:        fmt.Sprintf("%s blocks the road ahead.", boss),
		Choices: []api.Choice{
			{ID: "A", Text: "Plant a forest"},
			{ID: "B", Text: "Build a coal plant"},
			{ID: "C", Text: "Ride a bike"},
			{ID: "D", Text: "Burn the tires"},
		},
	}
}
