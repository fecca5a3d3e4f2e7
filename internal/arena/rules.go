package arena

import (
	"math/rand/v2"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

const (
	choicesPerScene = 4
	rewardsOffered  = 3

	healAmount        = 3
	shieldPercent     = 20 // damage absorbed per shield level
	attackPowerBonus  = 3
	noodlesAttack     = 3
	noodlesCrit       = 10
	spellAttack       = 1
	forceFieldTurns   = 3
	forceFieldAttack  = 1.3
	damageReduction   = 0.5
	maxPlayerHitDelta = -10
	maxBossHitDelta   = -20
	maxBossHealDelta  = 5
)

var rewardIDs = []string{
	api.RewardShieldBoost,
	api.RewardHealthRestore,
	api.RewardAttackPower,
	api.RewardNoodles,
	api.RewardAegis,
	api.RewardSpell,
	api.RewardEcoBlaster,
}

// Settings are the per-difficulty knobs of a run.
type Settings struct {
	PlayerHP           int
	BossHP             int
	RequiredWins       int
	SustainableChoices int
}

var difficultyTable = map[api.Difficulty]Settings{
	api.DifficultyEasy:   {PlayerHP: 10, BossHP: 35, RequiredWins: 3, SustainableChoices: 2},
	api.DifficultyMedium: {PlayerHP: 7, BossHP: 45, RequiredWins: 5, SustainableChoices: 1},
	api.DifficultyHard:   {PlayerHP: 5, BossHP: 55, RequiredWins: 7, SustainableChoices: 1},
}

// SettingsFor returns the settings for d, falling back to medium.
func SettingsFor(d api.Difficulty) Settings {
	if s, ok := difficultyTable[d]; ok {
		return s
	}
	return difficultyTable[api.DifficultyMedium]
}

// Player is the server-side ledger of one run.
type Player struct {
	HP              int
	MaxHP           int
	Shield          int
	AttackBonus     int
	CritChance      int // percent
	ForceFieldTurns int
	EcoBlasterUses  int
	AegisActive     bool
	NoodlesCharges  int
	AegisCharges    int
	SpellCharges    int
}

func (p Player) Stats() api.PlayerStats {
	return api.PlayerStats{
		Shield:          p.Shield,
		AttackBonus:     p.AttackBonus,
		CriticalStrike:  p.CritChance,
		ForceFieldTurns: p.ForceFieldTurns,
		EcoBlasterUses:  p.EcoBlasterUses,
		AegisActive:     p.AegisActive,
		NoodlesCharges:  p.NoodlesCharges,
		AegisCharges:    p.AegisCharges,
		SpellCharges:    p.SpellCharges,
	}
}

func (p Player) Vitals() api.Vitals {
	return api.Vitals{PlayerHP: api.IntPtr(p.HP), PlayerMaxHP: api.IntPtr(p.MaxHP)}
}

// incoming scales a (negative) player hp delta through shield, aegis and
// force field in that order. Mitigation never turns damage into healing.
func (p Player) incoming(delta int) int {
	if delta >= 0 {
		return delta
	}
	// Truncation toward zero matches integer percentages of small hits.
	reduction := delta * shieldPercent * p.Shield / 100
	delta = min(0, delta-reduction)
	if p.AegisActive && delta < 0 {
		delta = int(float64(delta) * damageReduction)
	}
	if p.ForceFieldTurns > 0 && delta < 0 {
		delta = int(float64(delta) * damageReduction)
	}
	return delta
}

// outgoing scales a (negative) boss hp delta through attack bonus, a critical
// strike roll and the force field boost. Boss heals pass through untouched.
func (p Player) outgoing(delta int, rng *rand.Rand) int {
	if delta >= 0 {
		return delta
	}
	delta -= p.AttackBonus
	if p.CritChance > 0 && rng.IntN(100) < p.CritChance {
		delta *= 2
	}
	if p.ForceFieldTurns > 0 {
		delta = int(float64(delta) * forceFieldAttack)
	}
	return delta
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
