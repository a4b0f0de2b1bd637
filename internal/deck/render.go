package deck

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/spherical/deck-narrator/internal/domain"
)

// pointsPerInch is the PDF user-space unit.
const pointsPerInch = 72.0

// renderSize picks the resolution of rendered pages. A positive Width wins
// over DPI and scales every page to that pixel width.
type renderSize struct {
	DPI   float64
	Width int
}

func (s renderSize) dpiFor(doc *fitz.Document, page int) (float64, error) {
	if s.Width <= 0 {
		return s.DPI, nil
	}
	bounds, err := doc.Bound(page)
	if err != nil {
		return 0, err
	}
	if bounds.Dx() <= 0 {
		return s.DPI, nil
	}
	return float64(s.Width) * pointsPerInch / float64(bounds.Dx()), nil
}

// SlideFileName is the output name of the 1-based slide n.
func SlideFileName(n int) string {
	return fmt.Sprintf("slide_%d.png", n)
}

// renderPDF writes slide_{n}.png for every page of pdfPath into destDir and
// returns the file names in page order.
func renderPDF(ctx context.Context, pdfPath, destDir string, size renderSize) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.ConversionError("failed to open document", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	names := make([]string, 0, pageCount)

	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		dpi, err := size.dpiFor(doc, pageNum)
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("failed to measure page %d", pageNum+1), err)
		}

		img, err := doc.ImageDPI(pageNum, dpi)
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("failed to render page %d", pageNum+1), err)
		}

		name := SlideFileName(pageNum + 1)
		out, err := os.Create(filepath.Join(destDir, name))
		if err != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to create output file for page %d", pageNum+1), err)
		}

		err = png.Encode(out, img)
		closeErr := out.Close()
		if err != nil {
			return nil, domain.ConversionError(fmt.Sprintf("failed to encode page %d as PNG", pageNum+1), err)
		}
		if closeErr != nil {
			return nil, domain.IOError(fmt.Sprintf("failed to write page %d", pageNum+1), closeErr)
		}

		names = append(names, name)
	}

	return names, nil
}

// pageTextsFitz reads the text layer through MuPDF.
func pageTextsFitz(pdfPath string) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	texts := make([]string, doc.NumPage())
	for i := range texts {
		text, err := doc.Text(i)
		if err != nil {
			continue
		}
		texts[i] = text
	}
	return texts, nil
}
