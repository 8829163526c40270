package command

import (
	"strings"
	"unicode/utf8"
)

// maxSuggestDistance bounds how far a typo may be from a known command.
const maxSuggestDistance = 2

// Suggest returns the command in table closest to input, or "" when nothing
// is close enough. A unique prefix match wins over edit distance.
func Suggest(input string, table []string) string {
	word, _ := splitVerb(input)
	if word == "" {
		return ""
	}

	var prefixed []string
	for _, c := range table {
		if strings.HasPrefix(c, word) {
			prefixed = append(prefixed, c)
		}
	}
	if len(prefixed) == 1 {
		return prefixed[0]
	}

	best, bestDist := "", maxSuggestDistance+1
	for _, c := range table {
		d := levenshtein(word, c)
		limit := maxSuggestDistance
		if n := utf8.RuneCountInString(c); n <= 4 {
			limit = 1
		}
		if d <= limit && d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" && len(prefixed) > 0 {
		return prefixed[0]
	}
	return best
}

// levenshtein computes the edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
