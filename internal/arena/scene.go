package arena

import (
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

const (
	sceneHistory  = 30
	choiceHistory = 60
)

var choiceIDs = []string{"A", "B", "C", "D"}

// SceneChoice is a choice with its hidden consequences.
type SceneChoice struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Sustainable bool   `json:"is_sustainable"`
	DeltaPlayer int    `json:"delta_player"`
	DeltaBoss   int    `json:"delta_boss"`
}

// Scene is a generated battle scene for one boss. It is what the prefetch
// queue stores, so it round-trips through JSON.
type Scene struct {
	BossIndex int           `json:"boss_index"`
	Text      string        `json:"scene"`
	Choices   []SceneChoice `json:"choices"`
}

// Public strips the consequences for the client.
func (s Scene) Public() []api.Choice {
	out := make([]api.Choice, 0, len(s.Choices))
	for _, c := range s.Choices {
		out = append(out, api.Choice{ID: c.ID, Text: c.Text})
	}
	return out
}

func (s Scene) choice(id string) (SceneChoice, bool) {
	i := slices.IndexFunc(s.Choices, func(c SceneChoice) bool { return c.ID == id })
	if i < 0 {
		return SceneChoice{}, false
	}
	return s.Choices[i], true
}

func (s Scene) clone() Scene {
	s.Choices = slices.Clone(s.Choices)
	return s
}

// history is a bounded most-recent-last window of texts.
type history struct {
	limit int
	items []string
}

func (h *history) add(s string) {
	h.items = append(h.items, s)
	if over := len(h.items) - h.limit; over > 0 {
		h.items = slices.Delete(h.items, 0, over)
	}
}

func (h *history) contains(s string) bool {
	return slices.Contains(h.items, s)
}

func (h *history) reset() {
	h.items = h.items[:0]
}

// Generator builds scenes from the content bank, steering away from recently
// used scene and choice texts. It is not safe for concurrent use.
type Generator struct {
	content *Content
	rng     *rand.Rand
	scenes  history
	choices history
}

func NewGenerator(content *Content, rng *rand.Rand) *Generator {
	return &Generator{
		content: content,
		rng:     rng,
		scenes:  history{limit: sceneHistory},
		choices: history{limit: choiceHistory},
	}
}

// Reset forgets the history, as when a new run starts.
func (g *Generator) Reset() {
	g.scenes.reset()
	g.choices.reset()
}

// Generate builds a four-choice scene with exactly sustainable eco-friendly
// choices. Choice positions are shuffled before ids A-D are assigned.
func (g *Generator) Generate(bossIndex int, boss BossDef, sustainable int) Scene {
	sustainable = clamp(sustainable, 0, choicesPerScene)
	text := g.sceneText(boss)

	var picked []SceneChoice
	for _, c := range g.pick(g.content.Sustainable, sustainable) {
		picked = append(picked, SceneChoice{Text: c.Text, Sustainable: true, DeltaPlayer: c.Player, DeltaBoss: c.Boss})
	}
	for _, c := range g.pick(g.content.Unsustainable, choicesPerScene-sustainable) {
		picked = append(picked, SceneChoice{Text: c.Text, DeltaPlayer: c.Player, DeltaBoss: c.Boss})
	}
	g.rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })

	for i := range picked {
		picked[i].ID = choiceIDs[i]
		picked[i].DeltaPlayer = clamp(picked[i].DeltaPlayer, maxPlayerHitDelta, 0)
		picked[i].DeltaBoss = clamp(picked[i].DeltaBoss, maxBossHitDelta, maxBossHealDelta)
		g.choices.add(picked[i].Text)
	}
	g.scenes.add(text)

	return Scene{BossIndex: bossIndex, Text: text, Choices: picked}
}

func (g *Generator) sceneText(boss BossDef) string {
	styles := make([]string, 0, len(g.content.Templates))
	for style, ts := range g.content.Templates {
		if len(ts) > 0 {
			styles = append(styles, style)
		}
	}
	slices.Sort(styles)

	var candidates []string
	for _, style := range styles {
		for _, t := range g.content.Templates[style] {
			candidates = append(candidates, render(t, boss))
		}
	}
	fresh := slices.DeleteFunc(slices.Clone(candidates), g.scenes.contains)
	if len(fresh) > 0 {
		candidates = fresh
	}
	return candidates[g.rng.IntN(len(candidates))]
}

func render(template string, boss BossDef) string {
	return strings.NewReplacer("{boss}", boss.Name, "{category}", boss.Category).Replace(template)
}

type bankEntry struct {
	ChoiceDef
	category string
}

// pick draws count entries, preferring texts not seen recently and one per
// category before doubling up.
func (g *Generator) pick(bank map[string][]ChoiceDef, count int) []ChoiceDef {
	if count <= 0 {
		return nil
	}
	categories := make([]string, 0, len(bank))
	for c := range bank {
		categories = append(categories, c)
	}
	slices.Sort(categories)

	var all []bankEntry
	for _, c := range categories {
		for _, def := range bank[c] {
			all = append(all, bankEntry{ChoiceDef: def, category: c})
		}
	}
	g.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	var fresh, stale []bankEntry
	for _, e := range all {
		if g.choices.contains(e.Text) {
			stale = append(stale, e)
		} else {
			fresh = append(fresh, e)
		}
	}

	var picked []ChoiceDef
	taken := make(map[string]bool)
	usedCategory := make(map[string]bool)
	for _, e := range fresh {
		if len(picked) == count {
			break
		}
		if !usedCategory[e.category] {
			picked = append(picked, e.ChoiceDef)
			taken[e.Text] = true
			usedCategory[e.category] = true
		}
	}
	for _, e := range append(fresh, stale...) {
		if len(picked) == count {
			break
		}
		if !taken[e.Text] {
			picked = append(picked, e.ChoiceDef)
			taken[e.Text] = true
		}
	}
	return picked
}
