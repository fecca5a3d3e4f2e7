// Package api holds the wire contract spoken between the boss-rush client and
// the game service. The same types are used by the reference backend.
package api

import "fmt"

// SessionHeader carries the session id issued by /api/start on every later call.
const SessionHeader = "X-Session-ID"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the accepted difficulties in menu order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Outcome is the server-reported result of a mutating call.
type Outcome string

const (
	OutcomeContinue       Outcome = "continue"
	OutcomeBossDefeated   Outcome = "boss_defeated_choose_reward"
	OutcomeVictory        Outcome = "victory"
	OutcomePlayerDefeated Outcome = "player_defeated"
	OutcomeItemUsed       Outcome = "item_used"
	OutcomeRewardClaimed  Outcome = "reward_claimed"
)

// ParseTurnOutcome accepts only the outcomes a choice resolution may report.
func ParseTurnOutcome(s string) (Outcome, error) {
	switch o := Outcome(s); o {
	case OutcomeContinue, OutcomeBossDefeated, OutcomeVictory, OutcomePlayerDefeated:
		return o, nil
	}
	return "", fmt.Errorf("unknown turn outcome %q", s)
}

// ItemID identifies an activatable inventory item.
type ItemID string

const (
	ItemNoodles    ItemID = "noodles"     // +attack and crit chance
	ItemAegis      ItemID = "aegis"       // one-shot, permanent damage reduction
	ItemSpell      ItemID = "spell"       // timed force field
	ItemEcoBlaster ItemID = "eco_blaster" // prunes a wrong choice
)

// Items lists every activatable item in display order.
var Items = []ItemID{ItemNoodles, ItemAegis, ItemSpell, ItemEcoBlaster}

const (
	RewardShieldBoost   = "shield_boost"
	RewardHealthRestore = "health_restore"
	RewardAttackPower   = "attack_power"
	RewardNoodles       = "noodles"
	RewardAegis         = "aegis"
	RewardSpell         = "spell"
	RewardEcoBlaster    = "eco_blaster"
)

type Boss struct {
	ID       string `json:"id,omitempty"` // Opaque identity, stable for one boss in one session
	Name     string `json:"name"`
	Category string `json:"category"`
	HP       int    `json:"hp"`
}

type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Reward struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

// Vitals are pointer fields so an absent value can be told apart from zero hp.
type Vitals struct {
	PlayerHP    *int `json:"player_hp,omitempty"`
	PlayerMaxHP *int `json:"player_max_hp,omitempty"`
}

// PlayerStats are the ledger fields attached to every game response.
// Absent fields decode to zero, which is always the "no effect" value.
type PlayerStats struct {
	Shield          int  `json:"player_shield"`
	AttackBonus     int  `json:"player_attack_bonus"`
	CriticalStrike  int  `json:"player_critical_strike"`
	ForceFieldTurns int  `json:"player_force_field_turns"`
	EcoBlasterUses  int  `json:"player_eco_blaster_uses"`
	AegisActive     bool `json:"player_aegis_active"`
	NoodlesCharges  int  `json:"player_noodles_charges"`
	AegisCharges    int  `json:"player_aegis_charges"`
	SpellCharges    int  `json:"player_spell_charges"`
}

// Encounter is the boss/scene block shared by start, scene, turn and reward responses.
type Encounter struct {
	Wins         int      `json:"wins"`
	RequiredWins int      `json:"required_wins"`
	BossIndex    int      `json:"current_boss_index"`
	Boss         *Boss    `json:"boss,omitempty"`
	Scene        string   `json:"scene,omitempty"`
	Choices      []Choice `json:"choices,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func IntPtr(v int) *int {
	return &v
}
