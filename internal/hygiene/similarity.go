package hygiene

import (
	"strings"
)

// tokenize lowercases text and keeps whitespace-separated words longer
// than two characters
func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(word) > 2 {
			tokens[word] = struct{}{}
		}
	}
	return tokens
}

// Similarity returns the Jaccard overlap of the word sets of a and b.
// Two texts with no significant words are identical (1.0); if only one
// side is empty they share nothing (0.0).
func Similarity(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1.0
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			intersection++
		}
	}
	union := len(ta) + len(tb) - intersection
	return float64(intersection) / float64(union)
}
