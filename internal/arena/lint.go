package arena

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{[^{}]*\}`)

// Lint reports problems Validate lets through: things that load but play
// badly. Findings come back sorted so output is stable.
func (c *Content) Lint() []string {
	var out []string
	add := func(format string, args ...any) {
		out = append(out, fmt.Sprintf(format, args...))
	}

	seen := map[string]bool{}
	for _, b := range c.Bosses {
		key := strings.ToLower(b.Name)
		if seen[key] {
			add("boss %q is listed more than once", b.Name)
		}
		seen[key] = true
	}

	for style, templates := range c.Templates {
		for i, tpl := range templates {
			for _, ph := range placeholderRe.FindAllString(tpl, -1) {
				if ph != "{boss}" && ph != "{category}" {
					add("template %s[%d]: unknown placeholder %s", style, i, ph)
				}
			}
		}
	}

	lintBank := func(name string, bank map[string][]ChoiceDef) {
		for category, choices := range bank {
			for i, ch := range choices {
				where := fmt.Sprintf("%s.%s[%d]", name, category, i)
				if strings.TrimSpace(ch.Text) == "" {
					add("%s: empty text", where)
				}
				if ch.Player < maxPlayerHitDelta || ch.Player > 0 {
					add("%s: player delta %d outside %d..0", where, ch.Player, maxPlayerHitDelta)
				}
				if ch.Boss < maxBossHitDelta || ch.Boss > maxBossHealDelta {
					add("%s: boss delta %d outside %d..%d", where, ch.Boss, maxBossHitDelta, maxBossHealDelta)
				}
			}
		}
	}
	lintBank("sustainable", c.Sustainable)
	lintBank("unsustainable", c.Unsustainable)

	ids := map[string]bool{}
	for _, r := range c.Rewards {
		if ids[r.ID] {
			add("reward %q is listed more than once", r.ID)
		}
		ids[r.ID] = true
		if !slices.Contains(rewardIDs, r.ID) {
			add("reward %q has no effect and can never be claimed", r.ID)
		}
	}

	for i, f := range c.Facts {
		if len(f.Tags) == 0 {
			add("fact %d has no tags and only appears for unmatched topics", i)
		}
	}

	for word, replacement := range c.NameFilter {
		if strings.TrimSpace(replacement) == "" {
			add("name_filter %q has an empty replacement", word)
		}
	}

	sort.Strings(out)
	return out
}
