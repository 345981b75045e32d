package eval

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// suggestSelector returns the closest match to selector among names, or ""
// if none is close enough to be worth suggesting. A name is a candidate only
// if selector's characters appear in it in order (case-insensitively), so a
// dropped letter is caught but a transposition is not. Used to turn a bare
// "selector not found" error into spec.md §4.1's ergonomic addition:
// ("selector \"buld\" not found; did you mean \"build\"?").
func suggestSelector(selector string, names []string) string {
	if len(names) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(selector, names)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}
