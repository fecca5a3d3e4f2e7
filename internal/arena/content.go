// Package arena implements the game rules of the reference boss-rush backend:
// difficulty settings, the boss roster, scene generation, damage, items,
// rewards and the fact bank. It has no transport or storage concerns; the
// HTTP handlers drive it and keep prefetched scenes elsewhere.
package arena

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/boss-rush/pkg/api"
)

//go:embed content.yaml
var defaultContent []byte

type BossDef struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// ChoiceDef is one entry of a choice bank. Player and Boss are hp deltas.
type ChoiceDef struct {
	Text   string `yaml:"text"`
	Player int    `yaml:"player"`
	Boss   int    `yaml:"boss"`
}

type RewardDef struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Icon        string `yaml:"icon"`
}

type Fact struct {
	Text string   `yaml:"text"`
	Tags []string `yaml:"tags"`
}

// Content is everything the rules draw from.
type Content struct {
	Bosses        []BossDef              `yaml:"bosses"`
	Templates     map[string][]string    `yaml:"templates"`
	Sustainable   map[string][]ChoiceDef `yaml:"sustainable"`
	Unsustainable map[string][]ChoiceDef `yaml:"unsustainable"`
	Rewards       []RewardDef            `yaml:"rewards"`
	Facts         []Fact                 `yaml:"facts"`
	NameFilter    map[string]string      `yaml:"name_filter"`

	names *nameFilter
}

// DefaultContent parses the embedded content bank.
func DefaultContent() (*Content, error) {
	return ParseContent(defaultContent)
}

// LoadContent reads a content bank from a file.
func LoadContent(path string) (*Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read content file %s: %w", path, err)
	}
	return ParseContent(data)
}

// ParseContent decodes and validates a YAML content bank. Unknown keys are
// rejected so a typo cannot silently drop a section.
func ParseContent(data []byte) (*Content, error) {
	var c Content
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse content: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.names = newNameFilter(c.NameFilter)
	return &c, nil
}

// Validate checks the bank can always produce a four-choice scene at every
// difficulty, and that every reward the rules know how to apply is present.
func (c *Content) Validate() error {
	if len(c.Bosses) == 0 {
		return fmt.Errorf("content has no bosses")
	}
	for i, b := range c.Bosses {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("boss %d has no name", i)
		}
	}
	templates := 0
	for _, ts := range c.Templates {
		templates += len(ts)
	}
	if templates == 0 {
		return fmt.Errorf("content has no scene templates")
	}

	maxSustainable := 0
	for _, s := range difficultyTable {
		maxSustainable = max(maxSustainable, s.SustainableChoices)
	}
	if n := bankSize(c.Sustainable); n < maxSustainable {
		return fmt.Errorf("need at least %d sustainable choices, have %d", maxSustainable, n)
	}
	if n := bankSize(c.Unsustainable); n < choicesPerScene-1 {
		return fmt.Errorf("need at least %d unsustainable choices, have %d", choicesPerScene-1, n)
	}

	have := make(map[string]bool, len(c.Rewards))
	for _, r := range c.Rewards {
		have[r.ID] = true
	}
	for _, id := range rewardIDs {
		if !have[id] {
			return fmt.Errorf("content is missing reward %q", id)
		}
	}
	if len(c.Rewards) < rewardsOffered {
		return fmt.Errorf("need at least %d rewards, have %d", rewardsOffered, len(c.Rewards))
	}
	if len(c.Facts) == 0 {
		return fmt.Errorf("content has no facts")
	}
	return nil
}

func bankSize(bank map[string][]ChoiceDef) int {
	n := 0
	for _, cs := range bank {
		n += len(cs)
	}
	return n
}

// reward renders a reward definition for a player with the given max hp.
func (r RewardDef) reward(maxHP int) api.Reward {
	return api.Reward{
		ID:          r.ID,
		Name:        r.Name,
		Description: strings.ReplaceAll(r.Description, "{max_hp}", strconv.Itoa(maxHP)),
		Icon:        r.Icon,
	}
}
