package deck

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/observability"
)

const (
	nsPresentationML = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsDrawingML      = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsRelationships  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

	presentationPart = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"

	maxSlidePartBytes = 32 << 20
)

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// PPTXHandler renders and reads editable decks.
type PPTXHandler struct {
	converter  *OfficeConverter
	slideWidth int
	logger     *observability.Logger
}

// NewPPTXHandler returns a handler that renders slides slideWidth pixels wide.
func NewPPTXHandler(converter *OfficeConverter, slideWidth int, logger *observability.Logger) *PPTXHandler {
	if logger == nil {
		logger = observability.Nop()
	}
	return &PPTXHandler{
		converter:  converter,
		slideWidth: slideWidth,
		logger:     logger.WithComponent("deck.pptx"),
	}
}

// Rasterize converts the deck to PDF with the office application and renders
// each page to slide_{n}.png in destDir.
func (h *PPTXHandler) Rasterize(ctx context.Context, srcPath, destDir string) ([]string, error) {
	size, err := ValidateSource(srcPath, domain.FormatEditable)
	if err != nil {
		return nil, err
	}
	if IsLarge(size) {
		h.logger.Warn().Int64("bytes", size).Msg("large deck, office conversion may be slow")
	}

	pdfPath, cleanup, err := h.converter.ConvertToPDF(ctx, srcPath)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	return renderPDF(ctx, pdfPath, destDir, renderSize{Width: h.slideWidth, DPI: pointsPerInch})
}

// ExtractText returns the text of every visible slide in presentation order.
// Hidden slides are skipped because the office export omits them too.
func (h *PPTXHandler) ExtractText(ctx context.Context, srcPath string) ([]string, error) {
	zr, err := zip.OpenReader(srcPath)
	if err != nil {
		return nil, domain.ExtractionError("failed to open presentation archive", err)
	}
	defer zr.Close()

	parts := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		parts[f.Name] = f
	}

	order, err := slideOrder(parts)
	if err != nil {
		h.logger.Debug().Err(err).Msg("presentation order unreadable, using part names")
		order = slidePartsByNumber(parts)
	}

	texts := make([]string, 0, len(order))
	for _, name := range order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f, ok := parts[name]
		if !ok {
			h.logger.Debug().Str("part", name).Msg("listed slide part missing")
			texts = append(texts, "")
			continue
		}

		text, hidden, err := readSlidePart(f)
		if err != nil {
			h.logger.Debug().Err(err).Str("part", name).Msg("slide text unavailable")
			texts = append(texts, "")
			continue
		}
		if hidden {
			continue
		}
		texts = append(texts, text)
	}

	return texts, nil
}

// slideOrder resolves ppt/presentation.xml's slide id list to part names.
func slideOrder(parts map[string]*zip.File) ([]string, error) {
	relTargets, err := presentationRelationships(parts)
	if err != nil {
		return nil, err
	}

	f, ok := parts[presentationPart]
	if !ok {
		return nil, fmt.Errorf("missing %s", presentationPart)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec := newXMLDecoder(rc)
	var order []string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		el, ok := tok.(xml.StartElement)
		if !ok || el.Name.Space != nsPresentationML || el.Name.Local != "sldId" {
			continue
		}
		for _, attr := range el.Attr {
			if attr.Name.Space == nsRelationships && attr.Name.Local == "id" {
				if target, ok := relTargets[attr.Value]; ok {
					order = append(order, target)
				}
			}
		}
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("no slides listed in %s", presentationPart)
	}
	return order, nil
}

func presentationRelationships(parts map[string]*zip.File) (map[string]string, error) {
	f, ok := parts[presentationRels]
	if !ok {
		return nil, fmt.Errorf("missing %s", presentationRels)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	targets := make(map[string]string)
	dec := newXMLDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		el, ok := tok.(xml.StartElement)
		if !ok || el.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, attr := range el.Attr {
			switch attr.Name.Local {
			case "Id":
				id = attr.Value
			case "Target":
				target = attr.Value
			}
		}
		if id != "" && target != "" {
			targets[id] = resolvePartName(target)
		}
	}
	return targets, nil
}

// resolvePartName turns a relationship target of presentation.xml into a zip entry name.
func resolvePartName(target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(path.Clean(target), "/")
	}
	return path.Join("ppt", target)
}

// slidePartsByNumber lists ppt/slides/slideN.xml parts sorted by N.
func slidePartsByNumber(parts map[string]*zip.File) []string {
	type numbered struct {
		name string
		n    int
	}
	var slides []numbered
	for name := range parts {
		m := slidePartPattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		slides = append(slides, numbered{name: name, n: n})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	names := make([]string, len(slides))
	for i, s := range slides {
		names[i] = s.name
	}
	return names
}

func readSlidePart(f *zip.File) (string, bool, error) {
	if f.UncompressedSize64 > maxSlidePartBytes {
		return "", false, fmt.Errorf("slide part %s too large", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return "", false, err
	}
	defer rc.Close()
	return slideText(rc)
}

// slideText concatenates the text of every text-bearing shape on a slide in
// shape order, including shapes nested in groups. Paragraphs within a shape
// and shapes on the slide are separated by newlines.
func slideText(r io.Reader) (text string, hidden bool, err error) {
	dec := newXMLDecoder(r)

	var (
		shapes     []string
		paragraphs []string
		para       strings.Builder
		inShape    bool
		inBody     bool
		inPara     bool
		inRun      bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Space == nsPresentationML && t.Name.Local == "sld":
				for _, attr := range t.Attr {
					if attr.Name.Local == "show" && (attr.Value == "0" || attr.Value == "false") {
						hidden = true
					}
				}
			case t.Name.Space == nsPresentationML && t.Name.Local == "sp":
				inShape = true
				paragraphs = paragraphs[:0]
			case inShape && t.Name.Space == nsPresentationML && t.Name.Local == "txBody":
				inBody = true
			case inBody && t.Name.Space == nsDrawingML && t.Name.Local == "p":
				inPara = true
				para.Reset()
			case inPara && t.Name.Space == nsDrawingML && t.Name.Local == "t":
				inRun = true
			case inPara && t.Name.Space == nsDrawingML && t.Name.Local == "br":
				para.WriteString("\n")
			}
		case xml.CharData:
			if inRun {
				para.Write(t)
			}
		case xml.EndElement:
			switch {
			case t.Name.Space == nsDrawingML && t.Name.Local == "t":
				inRun = false
			case inPara && t.Name.Space == nsDrawingML && t.Name.Local == "p":
				paragraphs = append(paragraphs, para.String())
				inPara = false
			case t.Name.Space == nsPresentationML && t.Name.Local == "txBody":
				inBody = false
			case inShape && t.Name.Space == nsPresentationML && t.Name.Local == "sp":
				if s := strings.TrimSpace(strings.Join(paragraphs, "\n")); s != "" {
					shapes = append(shapes, s)
				}
				inShape = false
			}
		}
	}

	return strings.Join(shapes, "\n"), hidden, nil
}

func newXMLDecoder(r io.Reader) *xml.Decoder {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}
