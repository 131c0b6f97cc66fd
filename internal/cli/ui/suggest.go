package ui

import (
	"sort"
	"strings"
)

// maxSuggestDistance is the largest edit distance still offered as a
// suggestion
const maxSuggestDistance = 3

// Suggest returns up to limit candidates within a small edit distance of
// target, closest first, ignoring case
func Suggest(target string, candidates []string, limit int) []string {
	type scored struct {
		value    string
		distance int
	}

	var matches []scored
	for _, c := range candidates {
		d := levenshtein(strings.ToLower(target), strings.ToLower(c))
		if d <= maxSuggestDistance {
			matches = append(matches, scored{value: c, distance: d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].distance < matches[j].distance
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.value
	}
	return out
}

// levenshtein computes the edit distance with a single rolling row
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	row := make([]int, len(rb)+1)
	for j := range row {
		row[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur := min(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = cur
		}
	}
	return row[len(rb)]
}
