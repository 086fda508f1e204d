package harvest

import "sort"

// Harvest runs every rule over text and returns the union of their names,
// deduplicated and sorted. An empty result is not an error.
func Harvest(text string, rules []Rule) []string {
	set := map[string]struct{}{}
	for _, rule := range rules {
		for _, name := range rule.Extract(text) {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contributions reports how many names each rule found, keyed by rule name.
func Contributions(text string, rules []Rule) map[string]int {
	out := map[string]int{}
	for _, rule := range rules {
		out[rule.Name] += len(rule.Extract(text))
	}
	return out
}
