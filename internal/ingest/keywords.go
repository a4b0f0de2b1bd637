package ingest

import (
	"sort"
	"strings"
	"unicode"
)

// DefaultKeywordCount is the number of keywords kept per slide.
const DefaultKeywordCount = 5

// Keywords returns the n most frequent lower-cased alphanumeric words of text.
// Ties keep the order of first appearance.
func Keywords(text string, n int) []string {
	if n <= 0 {
		return nil
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return nil
	}

	counts := make(map[string]int, len(words))
	var order []string
	for _, w := range words {
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	if len(order) > n {
		order = order[:n]
	}
	return order
}
