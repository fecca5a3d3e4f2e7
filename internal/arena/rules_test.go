package arena

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func testContent(t *testing.T) *Content {
	t.Helper()
	c, err := DefaultContent()
	require.NoError(t, err)
	return c
}

func TestSettingsFor(t *testing.T) {
	tests := []struct {
		difficulty api.Difficulty
		want       Settings
	}{
		{api.DifficultyEasy, Settings{PlayerHP: 10, BossHP: 35, RequiredWins: 3, SustainableChoices: 2}},
		{api.DifficultyMedium, Settings{PlayerHP: 7, BossHP: 45, RequiredWins: 5, SustainableChoices: 1}},
		{api.DifficultyHard, Settings{PlayerHP: 5, BossHP: 55, RequiredWins: 7, SustainableChoices: 1}},
		{"nightmare", Settings{PlayerHP: 7, BossHP: 45, RequiredWins: 5, SustainableChoices: 1}},
	}
	for _, tt := range tests {
		t.Run(string(tt.difficulty), func(t *testing.T) {
			assert.Equal(t, tt.want, SettingsFor(tt.difficulty))
		})
	}
}

func TestPlayer_Incoming(t *testing.T) {
	tests := []struct {
		name   string
		player Player
		delta  int
		want   int
	}{
		{"no protection", Player{}, -5, -5},
		{"heal passes through", Player{Shield: 3}, 2, 2},
		{"one shield level", Player{Shield: 1}, -5, -4},
		{"two shield levels", Player{Shield: 2}, -5, -3},
		{"shield never heals", Player{Shield: 6}, -5, 0},
		{"aegis halves", Player{AegisActive: true}, -5, -2},
		{"force field halves", Player{ForceFieldTurns: 2}, -6, -3},
		{"aegis then force field", Player{AegisActive: true, ForceFieldTurns: 1}, -6, -1},
		{"shield then aegis", Player{Shield: 1, AegisActive: true}, -6, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.player.incoming(tt.delta))
		})
	}
}

func TestPlayer_Outgoing(t *testing.T) {
	tests := []struct {
		name   string
		player Player
		delta  int
		want   int
	}{
		{"plain hit", Player{}, -10, -10},
		{"boss heal untouched", Player{AttackBonus: 3}, 2, 2},
		{"attack bonus", Player{AttackBonus: 3}, -10, -13},
		{"certain crit doubles", Player{AttackBonus: 3, CritChance: 100}, -10, -26},
		{"force field boost", Player{AttackBonus: 3, ForceFieldTurns: 1}, -10, -16},
		{"zero damage choice stays zero", Player{AttackBonus: 3}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.player.outgoing(tt.delta, testRand()))
		})
	}
}

func TestPlayer_Stats(t *testing.T) {
	p := Player{HP: 4, MaxHP: 7, Shield: 1, AttackBonus: 3, CritChance: 10, ForceFieldTurns: 2,
		EcoBlasterUses: 1, AegisActive: true, NoodlesCharges: 2, AegisCharges: 0, SpellCharges: 1}

	stats := p.Stats()
	assert.Equal(t, 1, stats.Shield)
	assert.Equal(t, 10, stats.CriticalStrike)
	assert.Equal(t, 2, stats.ForceFieldTurns)
	assert.True(t, stats.AegisActive)
	assert.Equal(t, 2, stats.NoodlesCharges)

	v := p.Vitals()
	require.NotNil(t, v.PlayerHP)
	assert.Equal(t, 4, *v.PlayerHP)
	assert.Equal(t, 7, *v.PlayerMaxHP)
}
