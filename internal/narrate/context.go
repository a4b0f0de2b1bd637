// Package narrate produces spoken narration for slides through an external
// text-generation endpoint.
package narrate

import (
	"strings"
	"unicode"

	"github.com/spherical/deck-narrator/internal/config"
	"github.com/spherical/deck-narrator/internal/domain"
)

// Languages reported by the context builder.
const (
	LanguageEnglish = "English"
	LanguageFrench  = "French"
)

var frenchMarkers = []string{"le", "la", "les", "un", "une", "est", "avec"}

// NarrationContext is the input of prompt composition besides tone and the current slide.
type NarrationContext struct {
	Language string
	Previous []domain.ContextEntry
}

// ContextBuilder assembles the context window of a narration request.
type ContextBuilder struct {
	policy    string
	maxWindow int
}

// NewContextBuilder returns a builder using the given language match policy
// (config.MatchWholeWord or config.MatchSubstring) and keeping at most
// maxWindow previous slides; zero keeps all of them.
func NewContextBuilder(policy string, maxWindow int) *ContextBuilder {
	if policy != config.MatchSubstring {
		policy = config.MatchWholeWord
	}
	if maxWindow < 0 {
		maxWindow = 0
	}
	return &ContextBuilder{policy: policy, maxWindow: maxWindow}
}

// Build detects the language from the first available slide and returns the
// previous entries in their original order, trimmed to the most recent
// window when one is configured.
func (b *ContextBuilder) Build(previous []domain.ContextEntry, current domain.ContextEntry) NarrationContext {
	sample := current.Text
	if len(previous) > 0 {
		sample = previous[0].Text
	}

	window := previous
	if b.maxWindow > 0 && len(window) > b.maxWindow {
		window = window[len(window)-b.maxWindow:]
	}

	return NarrationContext{
		Language: b.DetectLanguage(sample),
		Previous: window,
	}
}

// DetectLanguage reports French when text contains any French marker word,
// English otherwise.
func (b *ContextBuilder) DetectLanguage(text string) string {
	lower := strings.ToLower(text)

	if b.policy == config.MatchSubstring {
		for _, marker := range frenchMarkers {
			if strings.Contains(lower, marker) {
				return LanguageFrench
			}
		}
		return LanguageEnglish
	}

	words := strings.FieldsFunc(lower, func(r rune) bool { return !unicode.IsLetter(r) })
	markers := make(map[string]struct{}, len(frenchMarkers))
	for _, m := range frenchMarkers {
		markers[m] = struct{}{}
	}
	for _, w := range words {
		if _, ok := markers[w]; ok {
			return LanguageFrench
		}
	}
	return LanguageEnglish
}
