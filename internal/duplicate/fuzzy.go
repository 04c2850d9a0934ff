package duplicate

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize lowercases, strips diacritics, and collapses interior whitespace
// so "Müller" and " muller " compare equal under fuzzy rules.
func normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// fuzzyEqual compares two normalized values with a bounded edit distance:
// one edit for short values, two for longer ones. Exact-equal short-circuits.
func fuzzyEqual(a, b string) bool {
	a, b = normalize(a), normalize(b)
	if a == b {
		return true
	}
	if a == "" || b == "" {
		return false
	}
	limit := 2
	if len(a) <= 5 || len(b) <= 5 {
		limit = 1
	}
	return levenshtein(a, b, limit) <= limit
}

// levenshtein computes edit distance with an early cutoff: any value above
// limit is reported as limit+1.
func levenshtein(a, b string, limit int) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(rb)-len(ra) > limit {
		return limit + 1
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		best := curr[0]
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min(prev[i]+1, min(curr[i-1]+1, prev[i-1]+cost))
			if curr[i] < best {
				best = curr[i]
			}
		}
		if best > limit {
			return limit + 1
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}
