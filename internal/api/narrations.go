package api

import (
	"encoding/json"
	"net/http"

	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/narrate"
	"github.com/spherical/deck-narrator/internal/observability"
)

// NarrationHandler handles narration generation requests.
type NarrationHandler struct {
	logger   *observability.Logger
	narrator Narrator
}

// NewNarrationHandler creates a new narration handler.
func NewNarrationHandler(logger *observability.Logger, narrator Narrator) *NarrationHandler {
	return &NarrationHandler{logger: logger, narrator: narrator}
}

// SlideTextDTO is a slide as sent by the client. Index is 1-based and may
// be omitted, in which case the position in the request is used.
type SlideTextDTO struct {
	Index int    `json:"index,omitempty"`
	Text  string `json:"text"`
}

// NarrationRequestDTO represents the API request for one narration.
type NarrationRequestDTO struct {
	PreviousSlides []SlideTextDTO `json:"previous_slides"`
	CurrentSlide   SlideTextDTO   `json:"current_slide"`
	// SlideIndex is the 0-based position of the current slide, used when
	// current_slide carries no index.
	SlideIndex *int   `json:"slide_index,omitempty"`
	VoiceTone  string `json:"voice_tone"`
}

// NarrationResponseDTO carries either speech or an error.
type NarrationResponseDTO struct {
	Speech string `json:"speech,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

// Generate handles POST /narrations. Generation failures are reported in
// the body with status 200.
func (h *NarrationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req NarrationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, domain.ValidationError("invalid request body", err))
		return
	}

	result := h.narrator.Narrate(r.Context(), req.toNarration())

	resp := NarrationResponseDTO{Speech: result.Speech}
	if !result.OK() {
		resp = NarrationResponseDTO{Error: result.Error, Kind: string(result.Kind)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (req NarrationRequestDTO) toNarration() narrate.Request {
	previous := make([]domain.ContextEntry, len(req.PreviousSlides))
	for i, s := range req.PreviousSlides {
		index := s.Index
		if index <= 0 {
			index = i + 1
		}
		previous[i] = domain.ContextEntry{Index: index, Text: s.Text}
	}

	current := req.CurrentSlide.Index
	if current <= 0 {
		if req.SlideIndex != nil && *req.SlideIndex >= 0 {
			current = *req.SlideIndex + 1
		} else {
			current = len(previous) + 1
		}
	}

	return narrate.Request{
		Previous: previous,
		Current:  domain.ContextEntry{Index: current, Text: req.CurrentSlide.Text},
		Tone:     req.VoiceTone,
	}
}
