package arena

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	maxNameRunes = 24
	defaultName  = "Player"
)

type wordRule struct {
	re          *regexp.Regexp
	replacement string
}

// nameFilter swaps listed words in player names for milder ones.
type nameFilter struct {
	rules []wordRule
}

func newNameFilter(replacements map[string]string) *nameFilter {
	words := make([]string, 0, len(replacements))
	for w := range replacements {
		words = append(words, w)
	}
	// Longest first so "asshole" is not rewritten as "butthole".
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})

	f := &nameFilter{rules: make([]wordRule, 0, len(words))}
	for _, w := range words {
		f.rules = append(f.rules, wordRule{
			re:          regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
			replacement: replacements[w],
		})
	}
	return f
}

func (f *nameFilter) apply(s string) string {
	for _, r := range f.rules {
		s = r.re.ReplaceAllStringFunc(s, func(match string) string {
			return matchCase(match, r.replacement)
		})
	}
	return s
}

// CleanName makes a player name safe to echo: control characters dropped,
// whitespace collapsed, length capped and filtered words replaced. An empty
// result becomes "Player".
func (c *Content) CleanName(name string) string {
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	if runes := []rune(name); len(runes) > maxNameRunes {
		name = strings.TrimSpace(string(runes[:maxNameRunes]))
	}
	if c.names != nil {
		name = c.names.apply(name)
	}
	if name == "" {
		return defaultName
	}
	return name
}

// matchCase gives replacement the letter case of original.
func matchCase(original, replacement string) string {
	switch {
	case original == "":
		return replacement
	case strings.ToUpper(original) == original:
		return strings.ToUpper(replacement)
	case strings.ToLower(original) == original:
		return strings.ToLower(replacement)
	}
	if cases.Title(language.English).String(strings.ToLower(original)) == original {
		return cases.Title(language.English).String(replacement)
	}

	orig := []rune(original)
	out := []rune(strings.ToLower(replacement))
	for i := range out {
		if i < len(orig) && unicode.IsUpper(orig[i]) {
			out[i] = unicode.ToUpper(out[i])
		}
	}
	return string(out)
}
