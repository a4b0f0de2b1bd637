package narrate

import (
	"fmt"
	"strings"

	"github.com/spherical/deck-narrator/internal/domain"
)

// PromptInput carries everything the composed prompt depends on.
type PromptInput struct {
	Tone    string
	Context NarrationContext
	Current domain.ContextEntry
}

// ComposePrompt builds the generation prompt for the current slide. It fails
// with a NoSlideContent error when the slide has no text.
func ComposePrompt(in PromptInput) (string, error) {
	if strings.TrimSpace(in.Current.Text) == "" {
		return "", domain.NoSlideContentError(fmt.Sprintf("slide %d has no text to narrate", in.Current.Index))
	}

	tone := strings.ToLower(strings.TrimSpace(in.Tone))
	if tone == "" {
		tone = strings.ToLower(domain.DefaultVoiceTone)
	}
	language := in.Context.Language
	if language == "" {
		language = LanguageEnglish
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are presenting a slide deck to an audience in a %s tone, speaking in %s. ", tone, language)
	b.WriteString("Keep the narration brief and natural. ")
	b.WriteString("Do not open with generic greetings such as \"Ladies and gentlemen\" or \"Welcome everyone\"; go straight to the content.\n\n")

	if len(in.Context.Previous) > 0 {
		b.WriteString("Slides already presented:\n")
		for _, entry := range in.Context.Previous {
			fmt.Fprintf(&b, "- Slide %d: %s\n", entry.Index, strings.TrimSpace(entry.Text))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Now narrate Slide %d:\n%s\n\n", in.Current.Index, strings.TrimSpace(in.Current.Text))
	fmt.Fprintf(&b, "Write 3 to 5 sentences strictly in %s. ", language)
	b.WriteString("Build on the slides already presented without repeating what was said about them.")

	return b.String(), nil
}
