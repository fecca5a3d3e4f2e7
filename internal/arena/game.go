package arena

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

// RuleError is a request the rules refuse. Its text is safe to show a player.
type RuleError string

func (e RuleError) Error() string {
	return string(e)
}

const (
	errNotStarted    RuleError = "Game not started."
	errClaimFirst    RuleError = "Please claim your reward first!"
	errNoReward      RuleError = "No reward pending."
	errBadChoiceID   RuleError = "choice_id must be A, B, C, or D."
	errChoiceMissing RuleError = "Choice not found."
	errBadDifficulty RuleError = "Difficulty must be easy, medium, or hard."
)

// NextScene supplies a prefetched scene for a boss, if one is ready.
type NextScene func(bossIndex int) (Scene, bool)

// Game is one run. All methods are safe for concurrent use.
type Game struct {
	mu sync.Mutex

	id         string
	username   string
	difficulty api.Difficulty
	settings   Settings
	content    *Content
	rng        *rand.Rand
	gen        *Generator

	player        Player
	bosses        []api.Boss
	index         int
	wins          int
	active        bool
	pendingReward bool
	offered       []api.Reward
	scene         Scene
}

// NewGame starts a run: shuffled roster, fresh player, first scene ready.
func NewGame(id, username string, difficulty api.Difficulty, content *Content, rng *rand.Rand) (*Game, error) {
	difficulty = api.Difficulty(strings.ToLower(strings.TrimSpace(string(difficulty))))
	if !difficulty.Valid() {
		return nil, errBadDifficulty
	}
	username = content.CleanName(username)
	settings := SettingsFor(difficulty)

	g := &Game{
		id:         id,
		username:   username,
		difficulty: difficulty,
		settings:   settings,
		content:    content,
		rng:        rng,
		gen:        NewGenerator(content, rng),
		player:     Player{HP: settings.PlayerHP, MaxHP: settings.PlayerHP},
		active:     true,
	}
	g.bosses = g.roster()
	g.scene = g.generate()
	return g, nil
}

// roster shuffles the boss library, cycling it if a run needs more bosses
// than the library holds. Every entry gets its own identity.
func (g *Game) roster() []api.Boss {
	var out []api.Boss
	for len(out) < max(g.settings.RequiredWins, 1) {
		order := g.rng.Perm(len(g.content.Bosses))
		for _, i := range order {
			def := g.content.Bosses[i]
			out = append(out, api.Boss{
				ID:       uuid.NewString(),
				Name:     def.Name,
				Category: def.Category,
				HP:       g.settings.BossHP,
			})
		}
	}
	return out
}

func (g *Game) generate() Scene {
	b := g.bosses[g.index]
	return g.gen.Generate(g.index, BossDef{Name: b.Name, Category: b.Category}, g.settings.SustainableChoices)
}

func (g *Game) ID() string {
	return g.id
}

// Status reports whether the run is live and the current boss name.
func (g *Game) Status() (active bool, boss string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active, g.bosses[g.index].Name
}

func (g *Game) BossIndex() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.index
}

func (g *Game) encounter(withScene bool) api.Encounter {
	boss := g.bosses[g.index]
	enc := api.Encounter{
		Wins:         g.wins,
		RequiredWins: g.settings.RequiredWins,
		BossIndex:    g.index,
		Boss:         &boss,
	}
	if withScene {
		enc.Scene = g.scene.Text
		enc.Choices = g.scene.Public()
	}
	return enc
}

func (g *Game) StartResponse() api.StartResponse {
	g.mu.Lock()
	defer g.mu.Unlock()
	return api.StartResponse{
		SessionID:   g.id,
		Message:     "Game started.",
		Username:    g.username,
		Difficulty:  g.difficulty,
		Encounter:   g.encounter(true),
		Vitals:      g.player.Vitals(),
		PlayerStats: g.player.Stats(),
	}
}

// Scene returns the scene currently in play for bossIndex.
func (g *Game) Scene(bossIndex int) (api.SceneResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active {
		return api.SceneResponse{}, errNotStarted
	}
	if bossIndex != g.index {
		return api.SceneResponse{}, RuleError(fmt.Sprintf("Boss %d is not the current boss.", bossIndex))
	}
	if g.scene.BossIndex != g.index {
		g.scene = g.generate()
	}
	return api.SceneResponse{
		Encounter:   g.encounter(true),
		Vitals:      g.player.Vitals(),
		PlayerStats: g.player.Stats(),
	}, nil
}

// PrefetchScene generates a scene for the current boss ahead of time. It
// reports false once the run is over or waiting on a reward.
func (g *Game) PrefetchScene() (Scene, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.active || g.pendingReward {
		return Scene{}, false
	}
	return g.generate(), true
}

func (g *Game) ApplyChoice(choiceID string, next NextScene) (api.TurnResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return api.TurnResponse{}, errNotStarted
	}
	if g.pendingReward {
		return api.TurnResponse{}, errClaimFirst
	}
	choiceID = strings.ToUpper(strings.TrimSpace(choiceID))
	if !slices.Contains(choiceIDs, choiceID) {
		return api.TurnResponse{}, errBadChoiceID
	}
	if g.scene.BossIndex != g.index {
		g.scene = g.generate()
	}
	selected, ok := g.scene.choice(choiceID)
	if !ok {
		return api.TurnResponse{}, errChoiceMissing
	}

	dp := g.player.incoming(selected.DeltaPlayer)
	db := g.player.outgoing(selected.DeltaBoss, g.rng)
	if g.player.ForceFieldTurns > 0 {
		g.player.ForceFieldTurns--
	}
	g.player.HP = clamp(g.player.HP+dp, 0, g.player.MaxHP)
	boss := &g.bosses[g.index]
	boss.HP = max(0, boss.HP+db)

	resp := api.TurnResponse{WasSustainable: selected.Sustainable}
	switch {
	case g.player.HP <= 0:
		g.active = false
		resp.Outcome = string(api.OutcomePlayerDefeated)
		resp.Message = "You ran out of HP. Try again and pick more sustainable choices!"
		resp.Encounter = g.encounter(false)

	case boss.HP <= 0:
		g.wins++
		if g.wins >= g.settings.RequiredWins {
			g.active = false
			resp.Outcome = string(api.OutcomeVictory)
			resp.Message = "Victory! You defeated all the bosses with sustainable choices!"
			resp.Encounter = g.encounter(false)
			break
		}
		g.pendingReward = true
		g.offered = g.rewardOptions()
		resp.Outcome = string(api.OutcomeBossDefeated)
		resp.Message = fmt.Sprintf("You defeated %s! Choose your reward:", boss.Name)
		resp.Rewards = slices.Clone(g.offered)
		resp.Encounter = g.encounter(false)

	default:
		scene, ok := Scene{}, false
		if next != nil {
			scene, ok = next(g.index)
		}
		if !ok || scene.BossIndex != g.index || len(scene.Choices) == 0 {
			scene = g.generate()
		}
		g.scene = scene.clone()
		resp.Outcome = string(api.OutcomeContinue)
		if selected.Sustainable {
			resp.Message = "Nice choice!"
		} else {
			resp.Message = "Ouch! Try a more sustainable option next time!"
		}
		resp.Encounter = g.encounter(true)
	}
	resp.Vitals = g.player.Vitals()
	resp.PlayerStats = g.player.Stats()
	return resp, nil
}

func (g *Game) rewardOptions() []api.Reward {
	order := g.rng.Perm(len(g.content.Rewards))[:rewardsOffered]
	out := make([]api.Reward, 0, rewardsOffered)
	for _, i := range order {
		out = append(out, g.content.Rewards[i].reward(g.player.MaxHP))
	}
	return out
}

func (g *Game) UseItem(item api.ItemID) (api.ItemResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return api.ItemResponse{}, errNotStarted
	}
	if g.pendingReward {
		return api.ItemResponse{}, errClaimFirst
	}
	item = api.ItemID(strings.ToLower(strings.TrimSpace(string(item))))
	resp := api.ItemResponse{Outcome: string(api.OutcomeItemUsed), ItemID: item}
	p := &g.player

	switch item {
	case api.ItemNoodles:
		if p.NoodlesCharges <= 0 {
			return api.ItemResponse{}, RuleError("No Noodle charges remaining.")
		}
		p.NoodlesCharges--
		p.AttackBonus += noodlesAttack
		p.CritChance += noodlesCrit
		resp.Message = fmt.Sprintf("Noodle Power! +%d Attack + %d%% Crit!", noodlesAttack, p.CritChance)

	case api.ItemAegis:
		if p.AegisCharges <= 0 {
			return api.ItemResponse{}, RuleError("No Aegis charges remaining.")
		}
		if p.AegisActive {
			return api.ItemResponse{}, RuleError("Aegis is already active.")
		}
		p.AegisCharges--
		p.AegisActive = true
		resp.Message = "Everbloom Aegis activated! Permanent 50% damage reduction!"

	case api.ItemSpell:
		if p.SpellCharges <= 0 {
			return api.ItemResponse{}, RuleError("No Spell charges remaining.")
		}
		p.SpellCharges--
		p.ForceFieldTurns = forceFieldTurns
		p.AttackBonus += spellAttack
		resp.Message = fmt.Sprintf("Gateway Of Living Grace! 50%% defense + 30%% attack for %d turns!", forceFieldTurns)

	case api.ItemEcoBlaster:
		if p.EcoBlasterUses <= 0 {
			return api.ItemResponse{}, RuleError("No Eco Blaster uses remaining.")
		}
		var wrong []SceneChoice
		for _, c := range g.scene.Choices {
			if !c.Sustainable {
				wrong = append(wrong, c)
			}
		}
		if len(wrong) == 0 {
			return api.ItemResponse{}, RuleError("No wrong answers available to remove.")
		}
		removed := wrong[g.rng.IntN(len(wrong))]
		g.scene.Choices = slices.DeleteFunc(slices.Clone(g.scene.Choices), func(c SceneChoice) bool {
			return c.ID == removed.ID
		})
		p.EcoBlasterUses--
		resp.Message = fmt.Sprintf("Eco Blaster fired! Removed a wrong answer. (%d left)", p.EcoBlasterUses)
		resp.RemovedChoiceID = removed.ID
		resp.Scene = g.scene.Text
		resp.Choices = g.scene.Public()

	default:
		return api.ItemResponse{}, RuleError(fmt.Sprintf("Unknown item: %s", item))
	}

	resp.Vitals = p.Vitals()
	resp.PlayerStats = p.Stats()
	return resp, nil
}

// ClaimReward applies one of the offered rewards and brings on the next boss
// with a freshly generated scene.
func (g *Game) ClaimReward(rewardID string) (api.RewardResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.active {
		return api.RewardResponse{}, errNotStarted
	}
	if !g.pendingReward {
		return api.RewardResponse{}, errNoReward
	}
	rewardID = strings.ToLower(strings.TrimSpace(rewardID))
	if !slices.ContainsFunc(g.offered, func(r api.Reward) bool { return r.ID == rewardID }) {
		return api.RewardResponse{}, RuleError(fmt.Sprintf("Reward %q was not offered.", rewardID))
	}

	p := &g.player
	var msg string
	switch rewardID {
	case api.RewardShieldBoost:
		p.Shield++
		msg = fmt.Sprintf("Shield Level +1! Now taking %d%% less damage per level. (Level %d)", shieldPercent, p.Shield)
	case api.RewardHealthRestore:
		before := p.HP
		p.HP = min(p.HP+healAmount, p.MaxHP)
		msg = fmt.Sprintf("Restored %d HP! (Now at %d/%d)", p.HP-before, p.HP, p.MaxHP)
	case api.RewardAttackPower:
		p.AttackBonus += attackPowerBonus
		msg = fmt.Sprintf("Attack Power +%d! You now deal %d bonus damage per hit.", attackPowerBonus, p.AttackBonus)
	case api.RewardNoodles:
		p.NoodlesCharges++
		msg = fmt.Sprintf("Organic Crispy Noodles added to inventory! (%d charge(s)) Activate for +3 Attack + 10%% Crit.", p.NoodlesCharges)
	case api.RewardAegis:
		p.AegisCharges++
		msg = fmt.Sprintf("Everbloom Aegis added to inventory! (%d charge(s)) Activate for permanent 50%% damage reduction.", p.AegisCharges)
	case api.RewardSpell:
		p.SpellCharges++
		msg = fmt.Sprintf("Gateway Of Living Grace added to inventory! (%d charge(s)) Activate for 3 turns of 50%% defense + 30%% attack.", p.SpellCharges)
	case api.RewardEcoBlaster:
		p.EcoBlasterUses++
		msg = fmt.Sprintf("Eco Blaster Charged! You now have %d use(s). (Removes 1 wrong answer per use.)", p.EcoBlasterUses)
	default:
		return api.RewardResponse{}, RuleError(fmt.Sprintf("Unknown reward: %s", rewardID))
	}

	g.pendingReward = false
	g.offered = nil
	g.index = min(g.index+1, len(g.bosses)-1)
	g.scene = g.generate()

	return api.RewardResponse{
		Outcome:       string(api.OutcomeRewardClaimed),
		RewardID:      rewardID,
		RewardMessage: msg,
		Message:       fmt.Sprintf("A new challenger appears: %s!", g.bosses[g.index].Name),
		Encounter:     g.encounter(true),
		Vitals:        p.Vitals(),
		PlayerStats:   p.Stats(),
	}, nil
}
