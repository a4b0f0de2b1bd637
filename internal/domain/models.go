package domain

import (
	"time"
)

// DeckFormat is the kind of an uploaded deck.
type DeckFormat string

const (
	// FormatEditable is an Office Open XML presentation (.pptx).
	FormatEditable DeckFormat = "pptx"
	// FormatFixedLayout is a PDF document.
	FormatFixedLayout DeckFormat = "pdf"
)

// Narration defaults applied when a slide has no saved narration settings.
const (
	DefaultVoiceTone = "Formal"
	DefaultSpeed     = 1.0
	DefaultPitch     = 1.0
)

// Presentation is one ingested deck owned by a user.
type Presentation struct {
	UserID        string    `json:"userId"`
	ID            string    `json:"presentationId"`
	FileName      string    `json:"fileName"`
	ThumbnailPath string    `json:"thumbnailUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	Slides        []Slide   `json:"slides"`
}

// Slide is one page of a presentation. Index is 1-based and contiguous.
type Slide struct {
	Index     int       `json:"slideNumber"`
	Locator   string    `json:"-"`
	ImagePath string    `json:"image"`
	Text      string    `json:"text"`
	Keywords  []string  `json:"keywords,omitempty"`
	Narration string    `json:"generatedSpeech,omitempty"`
	VoiceTone string    `json:"voiceTone"`
	Speed     float64   `json:"speed"`
	Pitch     float64   `json:"pitch"`
	UpdatedAt time.Time `json:"lastModifiedAt,omitempty"`
}

// NewSlide returns a slide carrying the default narration settings.
func NewSlide(index int, locator, imagePath, text string) Slide {
	return Slide{
		Index:     index,
		Locator:   locator,
		ImagePath: imagePath,
		Text:      text,
		VoiceTone: DefaultVoiceTone,
		Speed:     DefaultSpeed,
		Pitch:     DefaultPitch,
	}
}

// PresentationSummary is the listing view of a presentation.
type PresentationSummary struct {
	ID            string    `json:"presentationId"`
	FileName      string    `json:"fileName"`
	ThumbnailPath string    `json:"thumbnailUrl"`
	SlideCount    int       `json:"slideCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NarrationRecord is a saved narration for one slide.
type NarrationRecord struct {
	UserID         string
	PresentationID string
	SlideNumber    int
	Narration      string
	VoiceTone      string
	Speed          float64
	Pitch          float64
	// SlideText replaces the slide's stored text when set.
	SlideText *string
	UpdatedAt time.Time
}

// ApplyDefaults fills unset narration settings.
func (r *NarrationRecord) ApplyDefaults() {
	if r.VoiceTone == "" {
		r.VoiceTone = DefaultVoiceTone
	}
	if r.Speed == 0 {
		r.Speed = DefaultSpeed
	}
	if r.Pitch == 0 {
		r.Pitch = DefaultPitch
	}
}

// ContextEntry is a read-only view of a slide used to build narration context.
type ContextEntry struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// EventType represents the type of ingestion event
type EventType string

const (
	EventStart      EventType = "start"
	EventState      EventType = "state"
	EventSlideReady EventType = "slide_ready"
	EventError      EventType = "error"
	EventComplete   EventType = "complete"
)

// IngestEvent is emitted while a deck is being ingested.
type IngestEvent struct {
	Type        EventType   `json:"type"`
	SlideNumber int         `json:"slide_number,omitempty"`
	Payload     interface{} `json:"payload,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
