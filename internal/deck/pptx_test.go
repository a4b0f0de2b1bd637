package deck

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/testutil"
)

func TestPPTXHandler_ExtractText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	testutil.WritePPTX(t, path, []testutil.PPTXSlide{
		{Shapes: [][]string{{"Welcome"}, {"First point", "Second point"}}},
		{Shapes: nil},
		{Shapes: [][]string{{"Grouped below"}}, Grouped: [][]string{{"Inside group"}}},
	}, testutil.PPTXOptions{})

	h := NewPPTXHandler(NewOfficeConverter("soffice", time.Minute), 1280, nil)
	texts, err := h.ExtractText(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Welcome\nFirst point\nSecond point",
		"",
		"Grouped below\nInside group",
	}, texts)
}

func TestPPTXHandler_ExtractText_PresentationOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reordered.pptx")
	testutil.WritePPTX(t, path, []testutil.PPTXSlide{
		{Part: 2, Shapes: [][]string{{"shown first"}}},
		{Part: 1, Shapes: [][]string{{"shown second"}}},
	}, testutil.PPTXOptions{})

	h := NewPPTXHandler(NewOfficeConverter("soffice", time.Minute), 1280, nil)
	texts, err := h.ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"shown first", "shown second"}, texts)
}

func TestPPTXHandler_ExtractText_NumericFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.pptx")
	slides := make([]testutil.PPTXSlide, 11)
	for i := range slides {
		slides[i] = testutil.PPTXSlide{Shapes: [][]string{{"slide " + string(rune('a'+i))}}}
	}
	testutil.WritePPTX(t, path, slides, testutil.PPTXOptions{OmitPresentation: true})

	h := NewPPTXHandler(NewOfficeConverter("soffice", time.Minute), 1280, nil)
	texts, err := h.ExtractText(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, texts, 11)
	assert.Equal(t, "slide a", texts[0])
	assert.Equal(t, "slide b", texts[1])
	assert.Equal(t, "slide k", texts[10])
}

func TestPPTXHandler_ExtractText_SkipsHiddenSlides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hidden.pptx")
	testutil.WritePPTX(t, path, []testutil.PPTXSlide{
		{Shapes: [][]string{{"one"}}},
		{Shapes: [][]string{{"secret"}}, Hidden: true},
		{Shapes: [][]string{{"three"}}},
	}, testutil.PPTXOptions{})

	h := NewPPTXHandler(NewOfficeConverter("soffice", time.Minute), 1280, nil)
	texts, err := h.ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, texts)
}

func TestPPTXHandler_ExtractText_MissingPartKeepsPositions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.pptx")
	testutil.WritePPTX(t, path, []testutil.PPTXSlide{
		{Shapes: [][]string{{"one"}}},
		{Missing: true},
		{Shapes: [][]string{{"three"}}},
	}, testutil.PPTXOptions{})

	h := NewPPTXHandler(NewOfficeConverter("soffice", time.Minute), 1280, nil)
	texts, err := h.ExtractText(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "", "three"}, texts)
}

func TestPPTXHandler_ExtractText_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pptx")
	testutil.WritePDF(t, path, []string{"not a zip"})

	h := NewPPTXHandler(NewOfficeConverter("soffice", time.Minute), 1280, nil)
	_, err := h.ExtractText(context.Background(), path)
	assert.Error(t, err)
}

func TestSlideText_EscapedAndBreaks(t *testing.T) {
	xmlBody := `<?xml version="1.0" encoding="UTF-8"?>
<p:sld xmlns:a="` + nsDrawingML + `" xmlns:p="` + nsPresentationML + `">
<p:cSld><p:spTree>
<p:sp><p:txBody><a:p><a:r><a:t>R&amp;D</a:t></a:r><a:br/><a:r><a:t>budget</a:t></a:r></a:p></p:txBody></p:sp>
<p:graphicFrame><a:tbl><a:tr><a:tc><a:txBody><a:p><a:r><a:t>table cell</a:t></a:r></a:p></a:txBody></a:tc></a:tr></a:tbl></p:graphicFrame>
</p:spTree></p:cSld></p:sld>`

	text, hidden, err := slideText(strings.NewReader(xmlBody))
	require.NoError(t, err)
	assert.False(t, hidden)
	assert.Equal(t, "R&D\nbudget", text)
}

func TestResolvePartName(t *testing.T) {
	assert.Equal(t, "ppt/slides/slide3.xml", resolvePartName("slides/slide3.xml"))
	assert.Equal(t, "ppt/slides/slide3.xml", resolvePartName("/ppt/slides/slide3.xml"))
	assert.Equal(t, "ppt/slides/slide3.xml", resolvePartName("./slides/../slides/slide3.xml"))
}

func TestOfficeConverter_Unavailable(t *testing.T) {
	saved := fallbackOfficeBinaries
	fallbackOfficeBinaries = nil
	t.Cleanup(func() { fallbackOfficeBinaries = saved })

	conv := NewOfficeConverter(filepath.Join(t.TempDir(), "no-such-soffice"), time.Minute)
	_, err := conv.Available()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRasterizerUnavailable)

	path := filepath.Join(t.TempDir(), "deck.pptx")
	testutil.WritePPTX(t, path, []testutil.PPTXSlide{{Shapes: [][]string{{"x"}}}}, testutil.PPTXOptions{})

	h := NewPPTXHandler(conv, 1280, nil)
	names, err := h.Rasterize(context.Background(), path, t.TempDir())
	assert.Nil(t, names)
	assert.ErrorIs(t, err, domain.ErrRasterizerUnavailable)
}

func TestPPTXHandler_Rasterize(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping office conversion in short mode")
	}
	if _, err := exec.LookPath("soffice"); err != nil {
		t.Skip("LibreOffice not installed")
	}

	path := filepath.Join(t.TempDir(), "deck.pptx")
	testutil.WritePPTX(t, path, []testutil.PPTXSlide{
		{Shapes: [][]string{{"one"}}},
		{Shapes: [][]string{{"two"}}},
	}, testutil.PPTXOptions{})

	dest := t.TempDir()
	h := NewPPTXHandler(NewOfficeConverter("soffice", 2*time.Minute), 1280, nil)
	names, err := h.Rasterize(context.Background(), path, dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"slide_1.png", "slide_2.png"}, names)

	width, _ := pngSize(t, filepath.Join(dest, names[0]))
	assert.InDelta(t, 1280, width, 2)
}
