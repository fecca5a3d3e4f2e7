// Package encounter is the turn controller for a boss-rush session. It owns
// the session state, admits one mutating call at a time through its Gate and
// drives phase transitions from server-reported outcomes.
package encounter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

const (
	msgTurnFailed  = "Something went wrong. Try again."
	msgStartFailed = "Could not start game. Please try again."
	msgNeedName    = "Please enter your name."
	msgNeedLevel   = "Please choose a difficulty."
)

type Option func(*Machine)

// WithPrefetcher sets the loop paused around every mutating call.
func WithPrefetcher(p Prefetcher) Option {
	return func(m *Machine) {
		if p != nil {
			m.prefetch = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// WithStreaming reveals the opening scene of each boss through the streamed
// scene call instead of showing it all at once.
func WithStreaming(on bool) Option {
	return func(m *Machine) {
		m.streaming = on
	}
}

type Machine struct {
	backend   Backend
	prefetch  Prefetcher
	log       *slog.Logger
	streaming bool

	gate Gate

	mu    sync.Mutex
	state *SessionState
	view  display
	subs  []chan Snapshot

	bg sync.WaitGroup
}

func New(backend Backend, opts ...Option) *Machine {
	m := &Machine{
		backend:  backend,
		prefetch: noopPrefetcher{},
		log:      slog.New(slog.DiscardHandler),
		state:    newSession(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dispatch is the single entry point for player intents. A mutating intent
// that arrives while another is outstanding is dropped and Dispatch returns
// nil. Errors are always one of the package's typed errors or a ledger error
// for an item that cannot be used.
func (m *Machine) Dispatch(ctx context.Context, in Intent) error {
	if lf, ok := in.(LoadFact); ok {
		m.loadFact(ctx, lf.Topic)
		return nil
	}

	release, ok := m.gate.TryAcquire()
	if !ok {
		m.log.Debug("Intent dropped", "intent", in.intent(), "reason", ErrDuplicateIntent)
		return nil
	}
	defer release()
	m.publish()

	var err error
	switch in := in.(type) {
	case Start:
		err = m.start(ctx, in)
	case Choose:
		err = m.choose(ctx, in)
	case UseItem:
		err = m.useItem(ctx, in)
	case ClaimReward:
		err = m.claimReward(ctx, in)
	case Restart:
		m.restart()
	default:
		err = fmt.Errorf("%w: %T", ErrIllegalIntent, in)
	}

	release()
	m.publish()
	return err
}

// Snapshot returns the current read model.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return newSnapshot(m.state, m.view, m.gate.Held())
}

// State returns a deep copy of the session state.
func (m *Machine) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.state.clone()
}

// Subscribe returns a channel that always holds the most recent snapshot.
// Slow readers skip intermediate snapshots rather than blocking the machine.
func (m *Machine) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, ch)
	ch <- newSnapshot(m.state, m.view, m.gate.Held())
	return ch
}

// Wait blocks until background fact lookups have finished.
func (m *Machine) Wait() {
	m.bg.Wait()
}

func (m *Machine) current() *SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) publish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishLocked()
}

func (m *Machine) publishLocked() {
	snap := newSnapshot(m.state, m.view, m.gate.Held())
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// swap installs next and applies edit to the display state in one step.
func (m *Machine) swap(next *SessionState, edit func(v *display)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = next
	if edit != nil {
		edit(&m.view)
	}
	m.publishLocked()
}

func (m *Machine) edit(fn func(v *display)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.view)
	m.publishLocked()
}

func setMessage(msg string) func(v *display) {
	return func(v *display) { v.message = msg }
}

func (m *Machine) start(ctx context.Context, in Start) error {
	prev := m.current()
	if prev.Phase != PhaseIdle {
		return &PhaseError{Intent: in.intent(), Phase: prev.Phase}
	}
	player := strings.TrimSpace(in.Player)
	if player == "" {
		m.edit(setMessage(msgNeedName))
		return &ValidationError{Field: "player"}
	}
	if !in.Difficulty.Valid() {
		m.edit(setMessage(msgNeedLevel))
		return &ValidationError{Field: "difficulty"}
	}

	interim := newSession()
	interim.Player = player
	interim.Difficulty = in.Difficulty
	interim.Phase = PhaseStarting
	m.prefetch.Stop()
	m.swap(interim, func(v *display) { *v = display{} })

	resp, err := m.backend.Start(ctx, player, in.Difficulty)
	var next *SessionState
	if err == nil {
		next, err = seed(interim, resp)
	}
	if err != nil {
		err = classify(opStart, err)
		m.log.Warn("Failed to start game", "player", player, "difficulty", in.Difficulty, "error", err)
		m.swap(prev, setMessage(msgStartFailed))
		return err
	}

	m.swap(next, setMessage(resp.Message))
	m.log.Info("Game started",
		"session_id", next.SessionID,
		"difficulty", next.Difficulty,
		"required_wins", next.RequiredWins,
		"boss", next.Boss.Name,
	)
	m.reveal(ctx)
	m.prefetch.Start(context.WithoutCancel(ctx))
	return nil
}

func (m *Machine) choose(ctx context.Context, in Choose) error {
	prev := m.current()
	if prev.Phase != PhaseInTurn {
		return &PhaseError{Intent: in.intent(), Phase: prev.Phase}
	}
	if !prev.hasChoice(in.ID) {
		return &InvalidChoiceError{ID: in.ID}
	}

	m.prefetch.Stop()
	interim := prev.clone()
	interim.Phase = PhaseResolving
	m.swap(interim, setMessage(""))

	resp, err := m.backend.ResolveChoice(ctx, in.ID)
	var next *SessionState
	var bossChanged bool
	if err == nil {
		next, bossChanged, err = applyTurn(prev, resp)
	}
	if err != nil {
		err = classify(opChoice, err)
		m.log.Warn("Failed to resolve choice", "session_id", prev.SessionID, "choice_id", in.ID, "error", err)
		m.swap(prev, setMessage(msgTurnFailed))
		m.prefetch.Start(context.WithoutCancel(ctx))
		return err
	}

	m.swap(next, func(v *display) {
		v.message = resp.Message
		if bossChanged {
			v.fact = ""
		}
	})
	m.log.Debug("Turn resolved",
		"session_id", next.SessionID,
		"outcome", resp.Outcome,
		"player_hp", next.PlayerHP,
		"boss_hp", next.BossHP,
		"wins", next.Wins,
	)
	m.afterTurn(ctx, next.Phase)
	return nil
}

// afterTurn starts whatever background work the new phase wants.
func (m *Machine) afterTurn(ctx context.Context, p Phase) {
	switch p {
	case PhaseInTurn:
		m.prefetch.Start(context.WithoutCancel(ctx))
	case PhaseRewardPending, PhaseVictory, PhaseDefeat:
		bg := context.WithoutCancel(ctx)
		m.bg.Go(func() { m.loadFact(bg, "") })
	}
}

func (m *Machine) useItem(ctx context.Context, in UseItem) error {
	prev := m.current()
	if prev.Phase != PhaseInTurn {
		return &PhaseError{Intent: in.intent(), Phase: prev.Phase}
	}

	interim := prev.clone()
	if err := interim.Ledger.Begin(in.Item); err != nil {
		return fmt.Errorf("cannot use %s: %w", in.Item, err)
	}
	m.prefetch.Stop()
	m.swap(interim, setMessage(""))

	resp, err := m.backend.UseItem(ctx, in.Item)
	var next *SessionState
	if err == nil {
		next, err = applyItem(prev, resp)
	}
	if err != nil {
		err = classify(opItem, err)
		m.log.Warn("Failed to use item", "session_id", prev.SessionID, "item", in.Item, "error", err)
		m.swap(prev, setMessage(msgTurnFailed))
		m.prefetch.Start(context.WithoutCancel(ctx))
		return err
	}

	m.swap(next, setMessage(resp.Message))
	m.log.Debug("Item used", "session_id", next.SessionID, "item", in.Item, "removed_choice_id", resp.RemovedChoiceID)
	m.prefetch.Start(context.WithoutCancel(ctx))
	return nil
}

func (m *Machine) claimReward(ctx context.Context, in ClaimReward) error {
	prev := m.current()
	if prev.Phase != PhaseRewardPending {
		return &PhaseError{Intent: in.intent(), Phase: prev.Phase}
	}
	if !prev.hasReward(in.ID) {
		return &InvalidChoiceError{ID: in.ID}
	}

	m.prefetch.Stop()
	m.edit(setMessage(""))

	resp, err := m.backend.ClaimReward(ctx, in.ID)
	var next *SessionState
	var bossChanged bool
	if err == nil {
		next, bossChanged, err = applyReward(prev, resp)
	}
	if err != nil {
		err = classify(opReward, err)
		m.log.Warn("Failed to claim reward", "session_id", prev.SessionID, "reward_id", in.ID, "error", err)
		m.swap(prev, setMessage(msgTurnFailed))
		return err
	}

	m.swap(next, func(v *display) {
		v.message = resp.RewardMessage
		if bossChanged {
			v.fact = ""
		}
	})
	m.log.Info("Reward claimed", "session_id", next.SessionID, "reward_id", in.ID, "boss", next.Boss.Name)
	m.reveal(ctx)
	m.prefetch.Start(context.WithoutCancel(ctx))
	return nil
}

func (m *Machine) restart() {
	m.prefetch.Stop()
	m.swap(newSession(), func(v *display) { *v = display{} })
	m.log.Debug("Session discarded")
}

// reveal replays the current boss's scene through the stream, falling back to
// a single fetch on transport failure. Only the scene text and choices are
// replaced; if both calls fail the scene already installed stays.
func (m *Machine) reveal(ctx context.Context) {
	if !m.streaming {
		return
	}
	cur := m.current()
	idx := cur.BossIndex

	m.edit(func(v *display) {
		v.streaming = ""
		v.revealing = true
	})
	done := func(v *display) {
		v.streaming = ""
		v.revealing = false
	}

	resp, err := m.backend.StreamScene(ctx, idx, func(text string) {
		m.edit(func(v *display) { v.streaming += text })
	})
	if err != nil {
		err = classify(opScene, err)
		var te *TransportError
		if errors.As(err, &te) {
			m.log.Warn("Scene stream failed, fetching whole scene", "boss_index", idx, "error", err)
			resp, err = m.backend.Scene(ctx, idx)
		}
	}
	if err != nil {
		m.log.Warn("Failed to refresh scene", "boss_index", idx, "error", err)
		m.edit(done)
		return
	}
	if resp == nil || resp.BossIndex != idx || len(resp.Choices) == 0 {
		m.log.Warn("Discarding scene for another encounter", "boss_index", idx)
		m.edit(done)
		return
	}

	next := m.current().clone()
	if resp.Scene != "" {
		next.Scene = resp.Scene
	}
	next.Choices = slices.Clone(resp.Choices)
	m.swap(next, done)
}

// loadFact fetches a fact for the current boss. A fact that arrives after the
// boss changed is dropped.
func (m *Machine) loadFact(ctx context.Context, topic string) {
	cur := m.current()
	if cur.BossIdentity == "" {
		return
	}
	if topic == "" {
		topic = cur.Boss.Category
	}

	fact, err := m.backend.FetchFact(ctx, topic)
	if err != nil {
		m.log.Debug("Fact lookup failed", "op", opFact, "topic", topic, "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.BossIdentity != cur.BossIdentity {
		m.log.Debug("Discarding fact for previous boss", "topic", topic)
		return
	}
	m.view.fact = fact
	m.publishLocked()
}
