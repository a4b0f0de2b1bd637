// Package ingest turns an uploaded deck into ordered, addressable slides.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spherical/deck-narrator/internal/deck"
	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/observability"
	"github.com/spherical/deck-narrator/internal/slidedir"
)

// State is a step of one ingestion.
type State string

const (
	StateDetecting State = "detecting"
	StateRendering State = "rasterizing_extracting"
	StateZipping   State = "zipping"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Request describes one deck to ingest.
type Request struct {
	UserID string
	// PresentationID is derived from UploadedAt and FileName when empty.
	PresentationID string
	SourcePath     string
	// FileName is the name the user uploaded; it decides the format.
	// Defaults to the base name of SourcePath.
	FileName   string
	UploadedAt time.Time
}

// Coordinator runs detection, rendering, text extraction and zipping.
// It holds no per-request state and may serve concurrent requests.
type Coordinator struct {
	dirs         *slidedir.Manager
	handlers     map[domain.DeckFormat]domain.DeckHandler
	keywordCount int
	logger       *observability.Logger
}

// NewCoordinator creates a coordinator writing into dirs.
func NewCoordinator(dirs *slidedir.Manager, handlers map[domain.DeckFormat]domain.DeckHandler, logger *observability.Logger) *Coordinator {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Coordinator{
		dirs:         dirs,
		handlers:     handlers,
		keywordCount: DefaultKeywordCount,
		logger:       logger.WithComponent("ingest"),
	}
}

// Ingest renders and reads the deck of req. Images are written to the
// key's output directory, which is emptied first. Events are sent to
// eventCh without blocking; eventCh may be nil.
//
// Rendering is not interrupted when ctx is cancelled so that a client
// disconnect never leaves a half-written directory behind.
func (c *Coordinator) Ingest(ctx context.Context, req Request, eventCh chan<- domain.IngestEvent) (*domain.Presentation, error) {
	startTime := time.Now()
	ctx = context.WithoutCancel(ctx)

	if req.FileName == "" {
		req.FileName = filepath.Base(req.SourcePath)
	}
	if req.UploadedAt.IsZero() {
		req.UploadedAt = startTime
	}
	if req.PresentationID == "" {
		req.PresentationID = PresentationID(req.UploadedAt, req.FileName)
	}

	logger := c.logger.WithContext(ctx).WithPresentation(req.UserID, req.PresentationID)

	c.emitEvent(eventCh, domain.IngestEvent{
		Type:      domain.EventStart,
		Payload:   fmt.Sprintf("Ingesting %s", req.FileName),
		Timestamp: time.Now(),
	})

	fail := func(err error) (*domain.Presentation, error) {
		c.transition(logger, eventCh, StateFailed)
		logger.Error().Err(err).Dur("elapsed", time.Since(startTime)).Msg("ingestion failed")
		c.emitError(eventCh, err)
		return nil, err
	}

	c.transition(logger, eventCh, StateDetecting)
	format, err := deck.Detect(req.FileName)
	if err != nil {
		return fail(err)
	}
	handler, ok := c.handlers[format]
	if !ok {
		return fail(domain.UnsupportedFormatError(fmt.Sprintf("no handler registered for %s decks", format)))
	}

	dir, err := c.dirs.Prepare(req.UserID, req.PresentationID)
	if err != nil {
		return fail(err)
	}

	c.transition(logger, eventCh, StateRendering)
	images, texts, err := c.render(ctx, logger, handler, req.SourcePath, dir.Path)
	if err != nil {
		c.discard(logger, req)
		return fail(domain.NoSlidesExtractedError("failed to render slides", err))
	}
	if len(images) == 0 {
		c.discard(logger, req)
		return fail(domain.NoSlidesExtractedError("deck produced no slide images", nil))
	}

	c.transition(logger, eventCh, StateZipping)
	if len(texts) > len(images) {
		logger.Warn().Int("images", len(images)).Int("texts", len(texts)).Msg("more text entries than images, extra text dropped")
	}

	slides := make([]domain.Slide, len(images))
	for i, name := range images {
		text := ""
		if i < len(texts) {
			text = texts[i]
		}
		locator := dir.Locator(name)
		slide := domain.NewSlide(i+1, locator, c.dirs.ExternalPath(locator), text)
		slide.Keywords = Keywords(text, c.keywordCount)
		slides[i] = slide

		c.emitEvent(eventCh, domain.IngestEvent{
			Type:        domain.EventSlideReady,
			SlideNumber: i + 1,
			Payload:     slide.ImagePath,
			Timestamp:   time.Now(),
		})
	}

	presentation := &domain.Presentation{
		UserID:        req.UserID,
		ID:            req.PresentationID,
		FileName:      req.FileName,
		ThumbnailPath: slides[0].ImagePath,
		CreatedAt:     req.UploadedAt,
		Slides:        slides,
	}

	c.transition(logger, eventCh, StateDone)
	duration := time.Since(startTime)
	logger.Info().
		Int("slides", len(slides)).
		Str("format", string(format)).
		Bool("text_layer", len(texts) > 0).
		Dur("elapsed", duration).
		Msg("ingestion complete")
	c.emitEvent(eventCh, domain.IngestEvent{
		Type:      domain.EventComplete,
		Payload:   fmt.Sprintf("Ingested %d slides in %v", len(slides), duration.Round(time.Millisecond)),
		Timestamp: time.Now(),
	})

	return presentation, nil
}

// render runs rasterization and text extraction concurrently. Extraction
// failures degrade to an empty text list; rasterization failures abort.
func (c *Coordinator) render(ctx context.Context, logger *observability.Logger, handler domain.DeckHandler, src, destDir string) ([]string, []string, error) {
	var images, texts []string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		images, err = handler.Rasterize(gctx, src, destDir)
		return err
	})
	g.Go(func() error {
		var err error
		texts, err = handler.ExtractText(gctx, src)
		if err != nil {
			logger.Warn().Err(err).Msg("text extraction failed, slides will have empty text")
			texts = nil
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return images, texts, nil
}

func (c *Coordinator) discard(logger *observability.Logger, req Request) {
	if err := c.dirs.Remove(req.UserID, req.PresentationID); err != nil {
		logger.Warn().Err(err).Msg("failed to remove partial output")
	}
}

func (c *Coordinator) transition(logger *observability.Logger, eventCh chan<- domain.IngestEvent, state State) {
	logger.Debug().Str("state", string(state)).Msg("ingestion state")
	c.emitEvent(eventCh, domain.IngestEvent{
		Type:      domain.EventState,
		Payload:   state,
		Timestamp: time.Now(),
	})
}

// emitEvent sends an event without blocking the ingestion.
func (c *Coordinator) emitEvent(eventCh chan<- domain.IngestEvent, event domain.IngestEvent) {
	if eventCh != nil {
		select {
		case eventCh <- event:
		default:
			c.logger.Warn().Str("event", string(event.Type)).Msg("event channel full, dropping event")
		}
	}
}

func (c *Coordinator) emitError(eventCh chan<- domain.IngestEvent, err error) {
	c.emitEvent(eventCh, domain.IngestEvent{
		Type:      domain.EventError,
		Payload:   err.Error(),
		Timestamp: time.Now(),
	})
}
