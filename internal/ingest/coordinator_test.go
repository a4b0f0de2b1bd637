package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/deck-narrator/internal/deck"
	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/slidedir"
	"github.com/spherical/deck-narrator/internal/testutil"
)

// fakeHandler writes count images and returns texts.
type fakeHandler struct {
	count      int
	texts      []string
	rasterErr  error
	extractErr error
}

func (f *fakeHandler) Rasterize(_ context.Context, _, destDir string) ([]string, error) {
	if f.rasterErr != nil {
		return nil, f.rasterErr
	}
	names := make([]string, f.count)
	for i := range names {
		names[i] = deck.SlideFileName(i + 1)
		if err := os.WriteFile(filepath.Join(destDir, names[i]), []byte("png"), 0o644); err != nil {
			return nil, err
		}
	}
	return names, nil
}

func (f *fakeHandler) ExtractText(context.Context, string) ([]string, error) {
	return f.texts, f.extractErr
}

func newCoordinator(t *testing.T, h domain.DeckHandler) (*Coordinator, *slidedir.Manager) {
	t.Helper()
	dirs, err := slidedir.NewManager(t.TempDir(), "")
	require.NoError(t, err)
	handlers := map[domain.DeckFormat]domain.DeckHandler{
		domain.FormatEditable:    h,
		domain.FormatFixedLayout: h,
	}
	return NewCoordinator(dirs, handlers, nil), dirs
}

func TestCoordinator_ZipsImagesAndTexts(t *testing.T) {
	c, _ := newCoordinator(t, &fakeHandler{count: 3, texts: []string{"Intro intro agenda", "", "Summary"}})

	p, err := c.Ingest(context.Background(), Request{
		UserID:         "u1",
		PresentationID: "p1",
		SourcePath:     "/tmp/whatever.pptx",
	}, nil)
	require.NoError(t, err)

	require.Len(t, p.Slides, 3)
	for i, s := range p.Slides {
		assert.Equal(t, i+1, s.Index)
		assert.Equal(t, fmt.Sprintf("u1/p1/slide_%d.png", i+1), s.Locator)
		assert.Equal(t, fmt.Sprintf("/uploads/slides/u1/p1/slide_%d.png", i+1), s.ImagePath)
		assert.Equal(t, domain.DefaultVoiceTone, s.VoiceTone)
	}
	assert.Equal(t, "Intro intro agenda", p.Slides[0].Text)
	assert.Equal(t, []string{"intro", "agenda"}, p.Slides[0].Keywords)
	assert.Equal(t, "", p.Slides[1].Text)
	assert.Equal(t, p.Slides[0].ImagePath, p.ThumbnailPath)
	assert.Equal(t, "whatever.pptx", p.FileName)
}

func TestCoordinator_PadsMissingText(t *testing.T) {
	c, _ := newCoordinator(t, &fakeHandler{count: 4, texts: []string{"only one"}})

	p, err := c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: "deck.pdf"}, nil)
	require.NoError(t, err)

	require.Len(t, p.Slides, 4)
	assert.Equal(t, "only one", p.Slides[0].Text)
	for _, s := range p.Slides[1:] {
		assert.Equal(t, "", s.Text)
	}
}

func TestCoordinator_ExtraTextNeverTruncatesImages(t *testing.T) {
	c, _ := newCoordinator(t, &fakeHandler{count: 2, texts: []string{"a", "b", "c"}})

	p, err := c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: "deck.pdf"}, nil)
	require.NoError(t, err)
	require.Len(t, p.Slides, 2)
	assert.Equal(t, "b", p.Slides[1].Text)
}

func TestCoordinator_ExtractionFailureDegrades(t *testing.T) {
	c, _ := newCoordinator(t, &fakeHandler{count: 2, extractErr: errors.New("corrupt text layer")})

	p, err := c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: "deck.pdf"}, nil)
	require.NoError(t, err)
	require.Len(t, p.Slides, 2)
	assert.Equal(t, "", p.Slides[0].Text)
}

func TestCoordinator_NoImagesIsNoSlidesExtracted(t *testing.T) {
	c, dirs := newCoordinator(t, &fakeHandler{count: 0, texts: []string{"a", "b", "c", "d", "e"}})

	p, err := c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: "deck.pptx"}, nil)
	assert.Nil(t, p)
	assert.ErrorIs(t, err, domain.ErrNoSlidesExtracted)

	_, statErr := os.Stat(filepath.Join(dirs.Root(), "u1", "p1"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestCoordinator_RasterizerErrorIsNoSlidesExtracted(t *testing.T) {
	cause := domain.RasterizerUnavailableError("office application missing", nil)
	c, _ := newCoordinator(t, &fakeHandler{rasterErr: cause})

	_, err := c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: "deck.pptx"}, nil)
	assert.ErrorIs(t, err, domain.ErrNoSlidesExtracted)
	assert.ErrorIs(t, err, domain.ErrRasterizerUnavailable)
}

func TestCoordinator_UnsupportedFormat(t *testing.T) {
	h := &fakeHandler{count: 1}
	c, dirs := newCoordinator(t, h)

	_, err := c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: "notes.docx"}, nil)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, statErr := os.Stat(filepath.Join(dirs.Root(), "u1", "p1"))
	assert.True(t, os.IsNotExist(statErr), "no directory is prepared for rejected uploads")
}

func TestCoordinator_ReingestLeavesOnlySecondRun(t *testing.T) {
	h := &fakeHandler{count: 5}
	c, dirs := newCoordinator(t, h)
	req := Request{UserID: "u1", PresentationID: "p1", SourcePath: "deck.pdf"}

	_, err := c.Ingest(context.Background(), req, nil)
	require.NoError(t, err)

	h.count = 3
	_, err = c.Ingest(context.Background(), req, nil)
	require.NoError(t, err)

	names, err := dirs.List("u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"slide_1.png", "slide_2.png", "slide_3.png"}, names)
}

func TestCoordinator_DerivesPresentationID(t *testing.T) {
	c, _ := newCoordinator(t, &fakeHandler{count: 1})
	uploaded := time.UnixMilli(1700000000123)

	p, err := c.Ingest(context.Background(), Request{
		UserID:     "u1",
		SourcePath: "/tmp/staging/abc.pptx",
		FileName:   "Team Kickoff.pptx",
		UploadedAt: uploaded,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1700000000123_Team_Kickoff.pptx", p.ID)
	assert.Equal(t, "/uploads/slides/u1/1700000000123_Team_Kickoff.pptx/slide_1.png", p.ThumbnailPath)
}

func TestCoordinator_EmitsEvents(t *testing.T) {
	c, _ := newCoordinator(t, &fakeHandler{count: 2})
	events := make(chan domain.IngestEvent, 32)

	_, err := c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: "deck.pdf"}, events)
	require.NoError(t, err)
	close(events)

	var states []State
	var ready []int
	var last domain.EventType
	for ev := range events {
		switch ev.Type {
		case domain.EventState:
			states = append(states, ev.Payload.(State))
		case domain.EventSlideReady:
			ready = append(ready, ev.SlideNumber)
		}
		last = ev.Type
	}
	assert.Equal(t, []State{StateDetecting, StateRendering, StateZipping, StateDone}, states)
	assert.Equal(t, []int{1, 2}, ready)
	assert.Equal(t, domain.EventComplete, last)
}

func TestCoordinator_IgnoresCallerCancellation(t *testing.T) {
	c, _ := newCoordinator(t, &fakeHandler{count: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := c.Ingest(ctx, Request{UserID: "u1", PresentationID: "p1", SourcePath: "deck.pdf"}, nil)
	require.NoError(t, err)
	assert.Len(t, p.Slides, 2)
}

func TestCoordinator_RealPDF(t *testing.T) {
	src := filepath.Join(t.TempDir(), "handout.pdf")
	testutil.WritePDF(t, src, []string{"Opening remarks", "", "Questions"})

	c, dirs := newCoordinator(t, deck.NewPDFHandler(72, nil))
	p, err := c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: src}, nil)
	require.NoError(t, err)

	require.Len(t, p.Slides, 3)
	assert.Contains(t, p.Slides[0].Text, "Opening")
	assert.Equal(t, "", p.Slides[1].Text)

	names, err := dirs.List("u1", "p1")
	require.NoError(t, err)
	assert.Len(t, names, 3)
}

func TestCoordinator_MalformedPDFDoesNotPanic(t *testing.T) {
	src := filepath.Join(t.TempDir(), "renumbered.pdf")
	testutil.WriteMalformedPDF(t, src, []string{"Opening remarks", "Questions"})

	c, dirs := newCoordinator(t, deck.NewPDFHandler(72, nil))

	var (
		p   *domain.Presentation
		err error
	)
	require.NotPanics(t, func() {
		p, err = c.Ingest(context.Background(), Request{UserID: "u1", PresentationID: "p1", SourcePath: src}, nil)
	})

	// MuPDF may repair the document; otherwise the deck yields no slides.
	if err != nil {
		assert.ErrorIs(t, err, domain.ErrNoSlidesExtracted)
		_, statErr := os.Stat(filepath.Join(dirs.Root(), "u1", "p1"))
		assert.True(t, os.IsNotExist(statErr))
		return
	}
	assert.NotEmpty(t, p.Slides)
}
