package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{name: "empty", text: "", n: 5, want: nil},
		{name: "punctuation only", text: "!!! ...", n: 5, want: nil},
		{name: "frequency then first appearance", text: "Go is fun. go, GO! Fun times", n: 3, want: []string{"go", "fun", "is"}},
		{name: "limit", text: "a b c d e f g", n: 2, want: []string{"a", "b"}},
		{name: "unicode letters", text: "Café café résumé", n: 5, want: []string{"café", "résumé"}},
		{name: "zero n", text: "words", n: 0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keywords(tt.text, tt.n))
		})
	}
}

func TestPresentationID(t *testing.T) {
	at := time.UnixMilli(1712345678901)

	assert.Equal(t, "1712345678901_Board_Update_Q3.pdf", PresentationID(at, "Board Update Q3.pdf"))
	assert.Equal(t, "1712345678901_deck.pptx", PresentationID(at, "../../etc/deck.pptx"))
	assert.Equal(t, "1712345678901_deck.pptx", PresentationID(at, `C:\Users\me\deck.pptx`))
}
