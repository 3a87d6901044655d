package detect

import "strings"

// Similarity scores how alike two strings are, in [0,1].
type Similarity interface {
	Score(a, b string) float64
}

// TokenSimilarity is Jaccard overlap over lowercased whitespace tokens.
// It is cheap and insensitive to reordering, which fits the near-duplicate
// prompts the idle-loop check looks for.
type TokenSimilarity struct{}

// Score returns the Jaccard similarity of the two token sets.
func (TokenSimilarity) Score(a, b string) float64 {
	tokensA := tokenSet(a)
	tokensB := tokenSet(b)

	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 1
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(strings.ToLower(s)) {
		token = strings.Trim(token, ".,;:!?\"'`()[]{}")
		if token != "" {
			set[token] = true
		}
	}
	return set
}

// LevenshteinSimilarity is 1 - normalized edit distance. More precise than
// token overlap but quadratic, so it is reserved for short strings.
type LevenshteinSimilarity struct{}

// Score returns 1 - editDistance/maxLen over runes.
func (LevenshteinSimilarity) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
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
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}

	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	return 1 - float64(prev[len(rb)])/float64(maxLen)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
