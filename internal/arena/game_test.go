package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

func newTestGame(t *testing.T, d api.Difficulty) *Game {
	t.Helper()
	g, err := NewGame("sess-1", "Ada", d, testContent(t), testRand())
	require.NoError(t, err)
	return g
}

func findChoice(t *testing.T, g *Game, sustainable bool) string {
	t.Helper()
	for _, c := range g.scene.Choices {
		if c.Sustainable == sustainable {
			return c.ID
		}
	}
	t.Fatalf("no choice with sustainable=%v", sustainable)
	return ""
}

func TestNewGame(t *testing.T) {
	g := newTestGame(t, " EASY ")
	resp := g.StartResponse()

	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "Ada", resp.Username)
	assert.Equal(t, api.DifficultyEasy, resp.Difficulty)
	assert.Equal(t, 3, resp.RequiredWins)
	assert.Zero(t, resp.Wins)
	assert.Zero(t, resp.BossIndex)
	require.NotNil(t, resp.Boss)
	assert.NotEmpty(t, resp.Boss.ID)
	assert.Equal(t, 35, resp.Boss.HP)
	assert.Equal(t, 10, *resp.PlayerHP)
	assert.Equal(t, 10, *resp.PlayerMaxHP)
	assert.NotEmpty(t, resp.Scene)
	assert.Len(t, resp.Choices, 4)
	assert.Equal(t, 2, sustainableCount(g.scene))

	ids := map[string]bool{}
	for _, b := range g.bosses {
		assert.False(t, ids[b.ID], "duplicate boss identity")
		ids[b.ID] = true
	}
}

func TestNewGame_Validation(t *testing.T) {
	_, err := NewGame("x", "Ada", "impossible", testContent(t), testRand())
	var re RuleError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Error(), "easy, medium, or hard")

	g, err := NewGame("x", "   ", api.DifficultyHard, testContent(t), testRand())
	require.NoError(t, err)
	assert.Equal(t, "Player", g.username)
}

func TestNewGame_RosterCoversRequiredWins(t *testing.T) {
	c := testContent(t)
	c.Bosses = c.Bosses[:2]
	g, err := NewGame("x", "Ada", api.DifficultyHard, c, testRand())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(g.bosses), 7)
}

func TestApplyChoice_Continue(t *testing.T) {
	g := newTestGame(t, api.DifficultyMedium)
	id := findChoice(t, g, true)
	want := g.scene.Choices[0]
	for _, c := range g.scene.Choices {
		if c.ID == id {
			want = c
		}
	}

	resp, err := g.ApplyChoice(" "+id+" ", nil)
	require.NoError(t, err)
	assert.Equal(t, string(api.OutcomeContinue), resp.Outcome)
	assert.True(t, resp.WasSustainable)
	assert.Equal(t, "Nice choice!", resp.Message)
	assert.Equal(t, 45+want.DeltaBoss, resp.Boss.HP)
	assert.Equal(t, 7, *resp.PlayerHP)
	assert.Len(t, resp.Choices, 4)
	assert.NotEmpty(t, resp.Scene)
}

func TestApplyChoice_UsesPrefetchedScene(t *testing.T) {
	g := newTestGame(t, api.DifficultyMedium)
	ready := Scene{BossIndex: 0, Text: "A prefetched scene.", Choices: []SceneChoice{
		{ID: "A", Text: "Plant a tree.", Sustainable: true, DeltaBoss: -12},
		{ID: "B", Text: "Litter.", DeltaPlayer: -6},
	}}

	var asked []int
	resp, err := g.ApplyChoice(findChoice(t, g, true), func(idx int) (Scene, bool) {
		asked = append(asked, idx)
		return ready, true
	})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, asked)
	assert.Equal(t, "A prefetched scene.", resp.Scene)
	assert.Len(t, resp.Choices, 2)

	// A scene for another boss is ignored.
	resp, err = g.ApplyChoice("A", func(int) (Scene, bool) {
		return Scene{BossIndex: 4, Text: "stale", Choices: ready.Choices}, true
	})
	require.NoError(t, err)
	assert.NotEqual(t, "stale", resp.Scene)
}

func TestApplyChoice_Rejections(t *testing.T) {
	g := newTestGame(t, api.DifficultyMedium)

	_, err := g.ApplyChoice("E", nil)
	assert.ErrorIs(t, err, errBadChoiceID)

	g.scene.Choices = g.scene.Choices[:2]
	_, err = g.ApplyChoice("D", nil)
	assert.ErrorIs(t, err, errChoiceMissing)
}

func TestApplyChoice_PlayerDefeated(t *testing.T) {
	g := newTestGame(t, api.DifficultyHard)
	g.player.HP = 1

	resp, err := g.ApplyChoice(findChoice(t, g, false), nil)
	require.NoError(t, err)
	assert.Equal(t, string(api.OutcomePlayerDefeated), resp.Outcome)
	assert.Zero(t, *resp.PlayerHP)
	assert.Empty(t, resp.Choices)

	active, _ := g.Status()
	assert.False(t, active)
	_, err = g.ApplyChoice("A", nil)
	assert.ErrorIs(t, err, errNotStarted)
}

func TestApplyChoice_BossDefeatedThenReward(t *testing.T) {
	g := newTestGame(t, api.DifficultyMedium)
	g.bosses[0].HP = 1
	firstID := g.bosses[0].ID

	resp, err := g.ApplyChoice(findChoice(t, g, true), nil)
	require.NoError(t, err)
	assert.Equal(t, string(api.OutcomeBossDefeated), resp.Outcome)
	assert.Equal(t, 1, resp.Wins)
	assert.Zero(t, resp.Boss.HP)
	assert.Zero(t, resp.BossIndex)
	assert.Empty(t, resp.Choices)
	require.Len(t, resp.Rewards, 3)

	_, err = g.ApplyChoice("A", nil)
	assert.ErrorIs(t, err, errClaimFirst)
	_, err = g.UseItem(api.ItemNoodles)
	assert.ErrorIs(t, err, errClaimFirst)
	_, ok := g.PrefetchScene()
	assert.False(t, ok)

	offered := map[string]bool{}
	for _, r := range resp.Rewards {
		offered[r.ID] = true
	}
	for _, id := range rewardIDs {
		if !offered[id] {
			_, err := g.ClaimReward(id)
			var re RuleError
			assert.ErrorAs(t, err, &re)
			break
		}
	}

	claim, err := g.ClaimReward(resp.Rewards[0].ID)
	require.NoError(t, err)
	assert.Equal(t, string(api.OutcomeRewardClaimed), claim.Outcome)
	assert.NotEmpty(t, claim.RewardMessage)
	assert.Equal(t, 1, claim.BossIndex)
	assert.NotEqual(t, firstID, claim.Boss.ID)
	assert.Equal(t, 45, claim.Boss.HP)
	assert.Len(t, claim.Choices, 4)
	assert.Contains(t, claim.Message, claim.Boss.Name)
	assert.Equal(t, 1, g.scene.BossIndex)

	_, err = g.ClaimReward(resp.Rewards[1].ID)
	assert.ErrorIs(t, err, errNoReward)
}

func TestApplyChoice_Victory(t *testing.T) {
	g := newTestGame(t, api.DifficultyEasy)
	g.settings.RequiredWins = 1
	g.bosses[0].HP = 1

	resp, err := g.ApplyChoice(findChoice(t, g, true), nil)
	require.NoError(t, err)
	assert.Equal(t, string(api.OutcomeVictory), resp.Outcome)
	assert.Equal(t, 1, resp.Wins)
	assert.Empty(t, resp.Rewards)

	active, _ := g.Status()
	assert.False(t, active)
}

func TestApplyChoice_ForceFieldCountsDown(t *testing.T) {
	g := newTestGame(t, api.DifficultyEasy)
	g.player.SpellCharges = 1

	resp, err := g.UseItem(api.ItemSpell)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.ForceFieldTurns)
	assert.Equal(t, 1, resp.AttackBonus)

	for want := 2; want >= 0; want-- {
		turn, err := g.ApplyChoice(findChoice(t, g, true), nil)
		require.NoError(t, err)
		assert.Equal(t, want, turn.ForceFieldTurns)
	}
}

func TestUseItem(t *testing.T) {
	t.Run("no charges", func(t *testing.T) {
		g := newTestGame(t, api.DifficultyMedium)
		for _, item := range api.Items {
			_, err := g.UseItem(item)
			var re RuleError
			assert.ErrorAs(t, err, &re, item)
		}
	})

	t.Run("unknown item", func(t *testing.T) {
		g := newTestGame(t, api.DifficultyMedium)
		_, err := g.UseItem("boomerang")
		assert.EqualError(t, err, "Unknown item: boomerang")
	})

	t.Run("noodles", func(t *testing.T) {
		g := newTestGame(t, api.DifficultyMedium)
		g.player.NoodlesCharges = 2
		resp, err := g.UseItem("NOODLES")
		require.NoError(t, err)
		assert.Equal(t, string(api.OutcomeItemUsed), resp.Outcome)
		assert.Equal(t, 1, resp.NoodlesCharges)
		assert.Equal(t, 3, resp.AttackBonus)
		assert.Equal(t, 10, resp.CriticalStrike)
	})

	t.Run("aegis is one-shot", func(t *testing.T) {
		g := newTestGame(t, api.DifficultyMedium)
		g.player.AegisCharges = 2
		resp, err := g.UseItem(api.ItemAegis)
		require.NoError(t, err)
		assert.True(t, resp.AegisActive)
		assert.Equal(t, 1, resp.AegisCharges)

		_, err = g.UseItem(api.ItemAegis)
		assert.EqualError(t, err, "Aegis is already active.")
	})

	t.Run("eco blaster prunes a wrong answer", func(t *testing.T) {
		g := newTestGame(t, api.DifficultyMedium)
		g.player.EcoBlasterUses = 1
		resp, err := g.UseItem(api.ItemEcoBlaster)
		require.NoError(t, err)
		require.NotEmpty(t, resp.RemovedChoiceID)
		assert.Len(t, resp.Choices, 3)
		assert.Zero(t, resp.EcoBlasterUses)
		for _, c := range resp.Choices {
			assert.NotEqual(t, resp.RemovedChoiceID, c.ID)
		}

		_, err = g.ApplyChoice(resp.RemovedChoiceID, nil)
		assert.ErrorIs(t, err, errChoiceMissing)
	})

	t.Run("eco blaster with nothing to prune", func(t *testing.T) {
		g := newTestGame(t, api.DifficultyMedium)
		g.player.EcoBlasterUses = 1
		g.scene.Choices = []SceneChoice{{ID: "A", Text: "Plant.", Sustainable: true}}
		_, err := g.UseItem(api.ItemEcoBlaster)
		assert.EqualError(t, err, "No wrong answers available to remove.")
		assert.Equal(t, 1, g.player.EcoBlasterUses)
	})
}

func TestClaimReward_Effects(t *testing.T) {
	tests := []struct {
		id    string
		check func(t *testing.T, p Player)
	}{
		{api.RewardShieldBoost, func(t *testing.T, p Player) { assert.Equal(t, 1, p.Shield) }},
		{api.RewardHealthRestore, func(t *testing.T, p Player) { assert.Equal(t, 7, p.HP) }},
		{api.RewardAttackPower, func(t *testing.T, p Player) { assert.Equal(t, 3, p.AttackBonus) }},
		{api.RewardNoodles, func(t *testing.T, p Player) { assert.Equal(t, 1, p.NoodlesCharges) }},
		{api.RewardAegis, func(t *testing.T, p Player) { assert.Equal(t, 1, p.AegisCharges) }},
		{api.RewardSpell, func(t *testing.T, p Player) { assert.Equal(t, 1, p.SpellCharges) }},
		{api.RewardEcoBlaster, func(t *testing.T, p Player) { assert.Equal(t, 1, p.EcoBlasterUses) }},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			g := newTestGame(t, api.DifficultyMedium)
			g.player.HP = 5
			g.pendingReward = true
			g.offered = []api.Reward{{ID: tt.id}}

			resp, err := g.ClaimReward(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.id, resp.RewardID)
			assert.Equal(t, 7, *resp.PlayerMaxHP)
			tt.check(t, g.player)
		})
	}
}

func TestScene(t *testing.T) {
	g := newTestGame(t, api.DifficultyMedium)

	resp, err := g.Scene(0)
	require.NoError(t, err)
	assert.Equal(t, g.scene.Text, resp.Scene)
	assert.Len(t, resp.Choices, 4)

	_, err = g.Scene(3)
	var re RuleError
	assert.ErrorAs(t, err, &re)

	s, ok := g.PrefetchScene()
	assert.True(t, ok)
	assert.Zero(t, s.BossIndex)
	assert.NotEqual(t, g.scene.Text, s.Text, "prefetching leaves the scene in play alone")
}

func TestRewardDescriptionUsesMaxHP(t *testing.T) {
	r := RewardDef{ID: "health_restore", Description: "Restore +3 HP (max {max_hp})"}.reward(9)
	assert.Equal(t, "Restore +3 HP (max 9)", r.Description)
}
