package encounter

// Phase is the position of the session in the encounter state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseStarting
	PhaseInTurn
	PhaseResolving
	PhaseRewardPending
	PhaseVictory
	PhaseDefeat
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseInTurn:
		return "in_turn"
	case PhaseResolving:
		return "resolving"
	case PhaseRewardPending:
		return "reward_pending"
	case PhaseVictory:
		return "victory"
	case PhaseDefeat:
		return "defeat"
	default:
		return "unknown"
	}
}

// Terminal reports whether only a restart can leave this phase.
func (p Phase) Terminal() bool {
	return p == PhaseVictory || p == PhaseDefeat
}
