package deck

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/observability"
)

// PDFHandler renders and reads fixed-layout decks.
type PDFHandler struct {
	dpi    float64
	logger *observability.Logger
}

// NewPDFHandler returns a handler rendering pages at dpi.
func NewPDFHandler(dpi float64, logger *observability.Logger) *PDFHandler {
	if logger == nil {
		logger = observability.Nop()
	}
	return &PDFHandler{
		dpi:    dpi,
		logger: logger.WithComponent("deck.pdf"),
	}
}

// Rasterize renders every page to slide_{n}.png in destDir.
func (h *PDFHandler) Rasterize(ctx context.Context, srcPath, destDir string) ([]string, error) {
	size, err := ValidateSource(srcPath, domain.FormatFixedLayout)
	if err != nil {
		return nil, err
	}
	if IsLarge(size) {
		h.logger.Warn().Int64("bytes", size).Msg("large deck, rendering may be slow")
	}
	return renderPDF(ctx, srcPath, destDir, renderSize{DPI: h.dpi})
}

// ExtractText returns each page's text layer. Pages without one yield "".
// When the document cannot be parsed at all, MuPDF's text layer is used.
func (h *PDFHandler) ExtractText(ctx context.Context, srcPath string) ([]string, error) {
	texts, err := h.extractPlainText(ctx, srcPath)
	if err == nil {
		return texts, nil
	}

	h.logger.Warn().Err(err).Str("path", srcPath).Msg("text layer unreadable, falling back to renderer text")
	texts, fallbackErr := pageTextsFitz(srcPath)
	if fallbackErr != nil {
		return nil, domain.ExtractionError("failed to read text layer", err)
	}
	for i := range texts {
		texts[i] = strings.TrimSpace(texts[i])
	}
	return texts, nil
}

// extractPlainText reads every page with ledongthuc/pdf. The parser panics on
// malformed objects; those panics are returned as errors.
func (h *PDFHandler) extractPlainText(ctx context.Context, srcPath string) (texts []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			texts = nil
			err = fmt.Errorf("malformed document: %v", r)
		}
	}()

	f, r, err := pdf.Open(srcPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	total := r.NumPage()
	texts = make([]string, total)

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := pageText(page)
		if err != nil {
			h.logger.Debug().Err(err).Int("page", i).Msg("page text unavailable")
			continue
		}
		texts[i-1] = text
	}

	return texts, nil
}

// pageText extracts one page, turning parser panics on malformed content into errors.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed page content: %v", r)
		}
	}()

	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
