package receipt

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// normalizeVendor lowercases a vendor name, drops apostrophes, turns other punctuation into
// spaces and collapses whitespace, so "LOWE'S  Home-Improvement" becomes
// "lowes home improvement".
func normalizeVendor(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r == '\'' || r == '’':
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// isBlankVendor reports whether a vendor carries no usable information
func isBlankVendor(s string) bool {
	n := normalizeVendor(s)
	return n == "" || n == strings.ToLower(UnknownVendor)
}

// minPrefixWord is the shortest final keyword word that may match the start of a longer
// word, so "lumber" matches "lumberyard" while "gas" does not match "gasket".
const minPrefixWord = 6

// matchesKeyword reports whether keyword occurs in text starting at a word boundary.
// A keyword whose last word is short must also end at a word boundary, allowing a
// plural "s". Both arguments must already be normalized.
func matchesKeyword(text, keyword string) bool {
	words := strings.Fields(keyword)
	if len(words) == 0 {
		return false
	}
	prefixOK := len([]rune(words[len(words)-1])) >= minPrefixWord

	padded := " " + text + " "
	needle := " " + keyword
	for from := 0; from < len(padded); {
		idx := strings.Index(padded[from:], needle)
		if idx < 0 {
			return false
		}
		rest := padded[from+idx+len(needle):]
		if prefixOK || strings.HasPrefix(rest, " ") || strings.HasPrefix(rest, "s ") {
			return true
		}
		from += idx + 1
	}
	return false
}

// vendorSimilarity scores two normalized vendor names in [0,1] as the better of the
// edit-distance similarity and the token overlap.
func vendorSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return max(editSimilarity(a, b), tokenOverlap(a, b))
}

func editSimilarity(a, b string) float64 {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 0
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// tokenOverlap is the Jaccard index of the two names' word sets
func tokenOverlap(a, b string) float64 {
	left := make(map[string]struct{})
	for _, t := range strings.Fields(a) {
		left[t] = struct{}{}
	}
	right := make(map[string]struct{})
	for _, t := range strings.Fields(b) {
		right[t] = struct{}{}
	}

	shared := 0
	for t := range left {
		if _, ok := right[t]; ok {
			shared++
		}
	}
	union := len(left) + len(right) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
