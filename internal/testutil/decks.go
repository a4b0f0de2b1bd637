// Package testutil builds small decks for tests.
package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"os"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"
)

// WritePDF writes a landscape A4 PDF with one page per entry. Empty entries
// produce pages without a text layer.
func WritePDF(t testing.TB, path string, pages []string) {
	t.Helper()

	pdf := gofpdf.New("L", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 24)
	for _, text := range pages {
		pdf.AddPage()
		if text == "" {
			continue
		}
		pdf.SetXY(72, 72)
		pdf.MultiCell(0, 28, text, "", "L", false)
	}
	require.NoError(t, pdf.OutputFileAndClose(path))
}

// WriteMalformedPDF writes a PDF like WritePDF whose page tree object header
// carries the wrong object number. The cross-reference offsets stay valid.
func WriteMalformedPDF(t testing.TB, path string, pages []string) {
	t.Helper()

	WritePDF(t, path, pages)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.Contains(data, []byte("\n1 0 obj")), "page tree object not found")
	data = bytes.Replace(data, []byte("\n1 0 obj"), []byte("\n9 0 obj"), 1)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// PPTXSlide describes one slide part of a generated deck.
type PPTXSlide struct {
	// Part is the N of ppt/slides/slideN.xml. Zero means position+1.
	Part int
	// Shapes holds one entry per text shape, each a list of paragraphs.
	Shapes [][]string
	// Grouped shapes are nested in a p:grpSp after the top-level shapes.
	Grouped [][]string
	Hidden  bool
	// Missing lists the slide in presentation.xml without writing its part.
	Missing bool
}

// PPTXOptions tunes the generated package.
type PPTXOptions struct {
	// OmitPresentation leaves out ppt/presentation.xml and its relationships.
	OmitPresentation bool
}

const (
	nsP = "http://schemas.openxmlformats.org/presentationml/2006/main"
	nsA = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsR = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// WritePPTX writes a minimal Office Open XML presentation listing slides in
// the given order.
func WritePPTX(t testing.TB, path string, slides []PPTXSlide, opts PPTXOptions) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	write := func(name, body string) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}

	var sldIDs, rels strings.Builder
	for i, s := range slides {
		part := s.Part
		if part == 0 {
			part = i + 1
		}
		if !s.Missing {
			write(fmt.Sprintf("ppt/slides/slide%d.xml", part), slideXML(s))
		}
		fmt.Fprintf(&sldIDs, `<p:sldId id="%d" r:id="rId%d"/>`, 256+i, 10+i)
		fmt.Fprintf(&rels, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, 10+i, part)
	}

	write("[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`)

	if !opts.OmitPresentation {
		write("ppt/presentation.xml", fmt.Sprintf(
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><p:presentation xmlns:a="%s" xmlns:r="%s" xmlns:p="%s"><p:sldIdLst>%s</p:sldIdLst><p:sldSz cx="12192000" cy="6858000"/></p:presentation>`,
			nsA, nsR, nsP, sldIDs.String()))
		write("ppt/_rels/presentation.xml.rels", fmt.Sprintf(
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">%s</Relationships>`,
			rels.String()))
	}

	require.NoError(t, zw.Close())
}

func slideXML(s PPTXSlide) string {
	var b strings.Builder
	show := ""
	if s.Hidden {
		show = ` show="0"`
	}
	fmt.Fprintf(&b, `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><p:sld xmlns:a="%s" xmlns:r="%s" xmlns:p="%s"%s><p:cSld><p:spTree>`, nsA, nsR, nsP, show)
	for i, shape := range s.Shapes {
		b.WriteString(shapeXML(i+2, shape))
	}
	if len(s.Grouped) > 0 {
		b.WriteString(`<p:grpSp><p:nvGrpSpPr><p:cNvPr id="100" name="Group"/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>`)
		for i, shape := range s.Grouped {
			b.WriteString(shapeXML(101+i, shape))
		}
		b.WriteString(`</p:grpSp>`)
	}
	// A picture has no text body and must not contribute text.
	b.WriteString(`<p:pic><p:nvPicPr><p:cNvPr id="999" name="Picture"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr></p:pic>`)
	b.WriteString(`</p:spTree></p:cSld></p:sld>`)
	return b.String()
}

func shapeXML(id int, paragraphs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="Shape %d"/><p:cNvSpPr/><p:nvPr/></p:nvSpPr><p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>`, id, id)
	for _, p := range paragraphs {
		fmt.Fprintf(&b, `<a:p><a:r><a:rPr lang="en-US"/><a:t>%s</a:t></a:r></a:p>`, html.EscapeString(p))
	}
	b.WriteString(`</p:txBody></p:sp>`)
	return b.String()
}
