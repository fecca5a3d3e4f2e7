package encounter

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jwebster45206/boss-rush/pkg/api"
	"github.com/jwebster45206/boss-rush/pkg/ledger"
)

// SessionState is the single source of truth for one session. The machine
// never edits an installed state in place: every change is made on a clone
// and swapped in whole.
type SessionState struct {
	SessionID  string
	Player     string
	Difficulty api.Difficulty
	Phase      Phase

	PlayerHP    int
	MaxPlayerHP int
	BossHP      int
	MaxBossHP   int

	BossIdentity string // Opaque, only compared for equality
	Boss         api.Boss
	BossIndex    int

	Wins         int
	RequiredWins int

	Scene   string
	Choices []api.Choice // Only meaningful while in turn
	Rewards []api.Reward // Only meaningful while a reward is pending

	Ledger *ledger.Ledger
}

func newSession() *SessionState {
	return &SessionState{Ledger: ledger.New()}
}

func (s *SessionState) clone() *SessionState {
	c := *s
	c.Choices = slices.Clone(s.Choices)
	c.Rewards = slices.Clone(s.Rewards)
	c.Ledger = s.Ledger.Clone()
	return &c
}

func (s *SessionState) hasChoice(id string) bool {
	return slices.ContainsFunc(s.Choices, func(c api.Choice) bool { return c.ID == id })
}

func (s *SessionState) hasReward(id string) bool {
	return slices.ContainsFunc(s.Rewards, func(r api.Reward) bool { return r.ID == id })
}

// applyVitals keeps hp non-negative and max hp non-decreasing.
func (s *SessionState) applyVitals(v api.Vitals) {
	if v.PlayerMaxHP != nil {
		s.MaxPlayerHP = max(s.MaxPlayerHP, *v.PlayerMaxHP)
	}
	if v.PlayerHP != nil {
		s.PlayerHP = max(*v.PlayerHP, 0)
		s.MaxPlayerHP = max(s.MaxPlayerHP, s.PlayerHP)
	}
	s.MaxPlayerHP = max(s.MaxPlayerHP, 1)
}

// install copies an encounter block in and reports whether a new boss became
// current. The boss hp baseline only resets on that transition.
func (s *SessionState) install(enc api.Encounter) bool {
	s.Wins = max(s.Wins, enc.Wins)

	changed := false
	if enc.Boss != nil {
		id := bossIdentity(enc.BossIndex, *enc.Boss)
		if id != s.BossIdentity {
			s.BossIdentity = id
			s.MaxBossHP = max(enc.Boss.HP, 1)
			changed = true
		}
		s.Boss = *enc.Boss
		s.BossIndex = enc.BossIndex
		s.BossHP = max(enc.Boss.HP, 0)
		s.MaxBossHP = max(s.MaxBossHP, s.BossHP)
	}
	if enc.Scene != "" {
		s.Scene = enc.Scene
	}
	s.Choices = slices.Clone(enc.Choices)
	return changed
}

func bossIdentity(index int, b api.Boss) string {
	if b.ID != "" {
		return b.ID
	}
	return fmt.Sprintf("%d:%s", index, b.Name)
}

const (
	opStart  = "start game"
	opChoice = "resolve choice"
	opItem   = "use item"
	opReward = "claim reward"
	opScene  = "fetch scene"
	opFact   = "fetch fact"
)

func seed(base *SessionState, resp *api.StartResponse) (*SessionState, error) {
	switch {
	case resp == nil:
		return nil, &DecodingError{Op: opStart, Err: errors.New("empty response")}
	case resp.Boss == nil:
		return nil, &DecodingError{Op: opStart, Err: errors.New("response has no boss")}
	case len(resp.Choices) == 0:
		return nil, &DecodingError{Op: opStart, Err: errors.New("response offers no choices")}
	case resp.PlayerHP == nil:
		return nil, &DecodingError{Op: opStart, Err: errors.New("response has no player hp")}
	}

	next := base.clone()
	next.SessionID = resp.SessionID
	if resp.Difficulty.Valid() {
		next.Difficulty = resp.Difficulty
	}
	next.RequiredWins = max(resp.RequiredWins, 0)
	next.Ledger.Reconcile(resp.PlayerStats)
	next.applyVitals(resp.Vitals)
	next.install(resp.Encounter)
	next.Phase = PhaseInTurn
	return next, nil
}

// applyTurn computes the successor of prev for a resolved choice.
func applyTurn(prev *SessionState, resp *api.TurnResponse) (next *SessionState, bossChanged bool, err error) {
	if resp == nil {
		return nil, false, &DecodingError{Op: opChoice, Err: errors.New("empty response")}
	}
	outcome, err := api.ParseTurnOutcome(resp.Outcome)
	if err != nil {
		return nil, false, &DecodingError{Op: opChoice, Err: err}
	}

	next = prev.clone()
	next.Ledger.Reconcile(resp.PlayerStats)
	next.applyVitals(resp.Vitals)

	switch outcome {
	case api.OutcomeContinue:
		if len(resp.Choices) == 0 {
			return nil, false, &DecodingError{Op: opChoice, Err: errors.New("turn continues without choices")}
		}
		bossChanged = next.install(resp.Encounter)
		next.Phase = PhaseInTurn
	case api.OutcomeBossDefeated:
		if len(resp.Rewards) == 0 {
			return nil, false, &DecodingError{Op: opChoice, Err: errors.New("boss defeated without rewards")}
		}
		bossChanged = next.install(resp.Encounter)
		next.Choices = nil
		next.Rewards = slices.Clone(resp.Rewards)
		next.Phase = PhaseRewardPending
	case api.OutcomeVictory:
		bossChanged = next.install(resp.Encounter)
		next.Choices = nil
		next.Phase = PhaseVictory
	case api.OutcomePlayerDefeated:
		bossChanged = next.install(resp.Encounter)
		next.PlayerHP = 0
		next.Choices = nil
		next.Phase = PhaseDefeat
	default:
		return nil, false, &DecodingError{Op: opChoice, Err: fmt.Errorf("unhandled outcome %q", outcome)}
	}
	return next, bossChanged, nil
}

func applyItem(prev *SessionState, resp *api.ItemResponse) (*SessionState, error) {
	if resp == nil {
		return nil, &DecodingError{Op: opItem, Err: errors.New("empty response")}
	}
	if api.Outcome(resp.Outcome) != api.OutcomeItemUsed {
		return nil, &DecodingError{Op: opItem, Err: fmt.Errorf("unexpected outcome %q", resp.Outcome)}
	}

	next := prev.clone()
	next.Ledger.Reconcile(resp.PlayerStats)
	next.applyVitals(resp.Vitals)

	switch {
	case len(resp.Choices) > 0:
		next.Choices = slices.Clone(resp.Choices)
		if resp.Scene != "" {
			next.Scene = resp.Scene
		}
	case resp.RemovedChoiceID != "":
		next.Choices = slices.DeleteFunc(next.Choices, func(c api.Choice) bool {
			return c.ID == resp.RemovedChoiceID
		})
	}
	if len(next.Choices) == 0 {
		return nil, &DecodingError{Op: opItem, Err: errors.New("item left no choices")}
	}
	next.Phase = PhaseInTurn
	return next, nil
}

func applyReward(prev *SessionState, resp *api.RewardResponse) (next *SessionState, bossChanged bool, err error) {
	switch {
	case resp == nil:
		return nil, false, &DecodingError{Op: opReward, Err: errors.New("empty response")}
	case api.Outcome(resp.Outcome) != api.OutcomeRewardClaimed:
		return nil, false, &DecodingError{Op: opReward, Err: fmt.Errorf("unexpected outcome %q", resp.Outcome)}
	case resp.Boss == nil || len(resp.Choices) == 0:
		return nil, false, &DecodingError{Op: opReward, Err: errors.New("response has no next encounter")}
	}

	next = prev.clone()
	next.Ledger.Reconcile(resp.PlayerStats)
	next.applyVitals(resp.Vitals)
	bossChanged = next.install(resp.Encounter)
	next.Rewards = nil
	next.Phase = PhaseInTurn
	return next, bossChanged, nil
}

// Snapshot is an immutable read model of the session for presentation.
type Snapshot struct {
	Phase      Phase
	SessionID  string
	Player     string
	Difficulty api.Difficulty

	PlayerHP    int
	MaxPlayerHP int
	BossHP      int
	MaxBossHP   int
	Boss        api.Boss
	BossIndex   int

	Wins         int
	RequiredWins int

	Scene   string
	Choices []api.Choice
	Rewards []api.Reward

	Items    []ledger.ItemView
	Passives ledger.Passives

	Message   string // Transient feedback for the last intent
	Fact      string // Cleared whenever a new boss becomes current
	Streaming string // Scene text received so far while Revealing
	Revealing bool
	Busy      bool // A mutating call is outstanding
}

// newSnapshot builds the read model. While busy no item is usable, whatever
// the ledger says.
func newSnapshot(s *SessionState, v display, busy bool) Snapshot {
	items := s.Ledger.Views()
	if busy {
		for i := range items {
			items[i].Usable = false
		}
	}
	return Snapshot{
		Phase:        s.Phase,
		SessionID:    s.SessionID,
		Player:       s.Player,
		Difficulty:   s.Difficulty,
		PlayerHP:     s.PlayerHP,
		MaxPlayerHP:  s.MaxPlayerHP,
		BossHP:       s.BossHP,
		MaxBossHP:    s.MaxBossHP,
		Boss:         s.Boss,
		BossIndex:    s.BossIndex,
		Wins:         s.Wins,
		RequiredWins: s.RequiredWins,
		Scene:        s.Scene,
		Choices:      slices.Clone(s.Choices),
		Rewards:      slices.Clone(s.Rewards),
		Items:        items,
		Passives:     s.Ledger.Passives(),
		Message:      v.message,
		Fact:         v.fact,
		Streaming:    v.streaming,
		Revealing:    v.revealing,
		Busy:         busy,
	}
}

// display is presentation state that travels with the session but is not
// part of it. It is swapped under the same lock as SessionState.
type display struct {
	message   string
	fact      string
	streaming string
	revealing bool
}
