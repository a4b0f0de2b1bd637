package narrate

import (
	"context"
	"strings"
	"time"

	"github.com/spherical/deck-narrator/internal/config"
	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/observability"
)

// Request asks for the narration of one slide.
type Request struct {
	Previous []domain.ContextEntry
	Current  domain.ContextEntry
	Tone     string
}

// Result is the outcome of a narration request. Failures are reported as
// data: Error and Kind are set and Speech is empty.
type Result struct {
	SlideNumber int              `json:"slideNumber,omitempty"`
	Speech      string           `json:"speech,omitempty"`
	Language    string           `json:"language,omitempty"`
	Error       string           `json:"error,omitempty"`
	Kind        domain.ErrorType `json:"kind,omitempty"`
}

// OK reports whether the result carries a narration.
func (r Result) OK() bool {
	return r.Error == ""
}

// Service orchestrates context building, prompt composition and generation.
// It keeps no state between calls.
type Service struct {
	builder     *ContextBuilder
	generator   Generator
	defaultTone string
	logger      *observability.Logger
}

// NewService creates a narration service.
func NewService(builder *ContextBuilder, generator Generator, defaultTone string, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	if defaultTone == "" {
		defaultTone = domain.DefaultVoiceTone
	}
	return &Service{
		builder:     builder,
		generator:   generator,
		defaultTone: defaultTone,
		logger:      logger.WithComponent("narrate"),
	}
}

// NewServiceFromConfig wires a service talking to the configured endpoint.
func NewServiceFromConfig(cfg config.NarrationConfig, logger *observability.Logger) *Service {
	client := NewClient(ClientConfig{
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
		Timeout:   cfg.Timeout,
	})
	return NewService(NewContextBuilder(cfg.LanguageMatch, cfg.MaxContextSlides), client, cfg.DefaultTone, logger)
}

// Narrate produces the narration of req.Current. It never returns an error;
// failures are carried in the Result.
func (s *Service) Narrate(ctx context.Context, req Request) Result {
	startTime := time.Now()
	logger := s.logger.WithContext(ctx)

	tone := strings.TrimSpace(req.Tone)
	if tone == "" {
		tone = s.defaultTone
	}

	nctx := s.builder.Build(req.Previous, req.Current)
	result := Result{SlideNumber: req.Current.Index, Language: nctx.Language}

	prompt, err := ComposePrompt(PromptInput{Tone: tone, Context: nctx, Current: req.Current})
	if err != nil {
		logger.Info().Int("slide", req.Current.Index).Msg("slide has no text, skipping generation")
		return withError(result, err)
	}

	speech, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn().Err(err).Int("slide", req.Current.Index).Dur("elapsed", time.Since(startTime)).Msg("narration failed")
		return withError(result, err)
	}

	logger.Debug().
		Int("slide", req.Current.Index).
		Str("language", nctx.Language).
		Int("context_slides", len(nctx.Previous)).
		Dur("elapsed", time.Since(startTime)).
		Msg("narration generated")

	result.Speech = speech
	return result
}

// NarrateDeck narrates slides in order. Each slide sees the text of the
// earlier slides that have text as its context. onResult, when set, is
// called after every slide.
func (s *Service) NarrateDeck(ctx context.Context, slides []domain.Slide, tone string, onResult func(Result)) []Result {
	results := make([]Result, 0, len(slides))
	var previous []domain.ContextEntry

	for _, slide := range slides {
		if err := ctx.Err(); err != nil {
			res := withError(Result{SlideNumber: slide.Index}, domain.GenerationUnavailableError("narration cancelled", err))
			results = append(results, res)
			if onResult != nil {
				onResult(res)
			}
			continue
		}

		current := domain.ContextEntry{Index: slide.Index, Text: slide.Text}
		res := s.Narrate(ctx, Request{Previous: previous, Current: current, Tone: tone})
		results = append(results, res)
		if onResult != nil {
			onResult(res)
		}

		if strings.TrimSpace(slide.Text) != "" {
			previous = append(previous, current)
		}
	}

	return results
}

func withError(r Result, err error) Result {
	r.Error = err.Error()
	r.Kind = domain.TypeOf(err)
	if r.Kind == "" {
		r.Kind = domain.ErrorTypeGenerationUnavailable
	}
	return r
}
