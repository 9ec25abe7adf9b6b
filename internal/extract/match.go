package extract

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// Vocabulary is the category vocabulary snapshot an extraction runs against.
// Matching never mutates it, so a single snapshot can be shared across
// utterances.
type Vocabulary struct {
	Categories []string
	// Threshold is the minimum similarity (0..1) for a fuzzy match.
	Threshold float64
}

// NormalizeCategory lowercases, collapses whitespace and folds crude plural
// suffixes so that "Med  Bays" and "med bay" compare equal.
func NormalizeCategory(phrase string) string {
	words := strings.Fields(strings.ToLower(phrase))
	for i, w := range words {
		words[i] = stemFold(w)
	}
	return strings.Join(words, " ")
}

func stemFold(w string) string {
	switch {
	case strings.HasSuffix(w, "ies") && len(w) > 4:
		return w[:len(w)-3] + "y"
	case strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") && len(w) > 3:
		return w[:len(w)-1]
	}
	return w
}

// matchCategory resolves a raw category phrase against the vocabulary.
// Exact normalized match wins; otherwise the closest entry at or above the
// similarity threshold. A miss returns the normalized phrase flagged as a
// new-category candidate rather than coercing to a bad match.
func matchCategory(phrase string, vocab Vocabulary) (category string, isNew bool) {
	norm := NormalizeCategory(phrase)
	if norm == "" {
		return "", true
	}

	best := ""
	bestScore := 0.0
	for _, known := range vocab.Categories {
		kn := NormalizeCategory(known)
		if kn == norm {
			return kn, false
		}
		score := similarity(norm, kn)
		if score > bestScore {
			bestScore = score
			best = kn
		}
	}

	if best != "" && bestScore >= vocab.Threshold {
		return best, false
	}
	return norm, true
}

func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
