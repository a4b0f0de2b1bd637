// Package deck reads slide decks: it detects their format, renders each
// slide to a PNG and extracts per-slide text.
package deck

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spherical/deck-narrator/internal/domain"
)

var formatsByExt = map[string]domain.DeckFormat{
	".pptx": domain.FormatEditable,
	".pdf":  domain.FormatFixedLayout,
}

// AllowedExtensions lists the accepted file extensions.
func AllowedExtensions() []string {
	return []string{".pptx", ".pdf"}
}

// Detect classifies a file name by its lower-cased trailing extension.
func Detect(filename string) (domain.DeckFormat, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if format, ok := formatsByExt[ext]; ok {
		return format, nil
	}
	if ext == "" {
		return "", domain.UnsupportedFormatError(fmt.Sprintf("%q has no extension; expected one of %s",
			filename, strings.Join(AllowedExtensions(), ", ")))
	}
	return "", domain.UnsupportedFormatError(fmt.Sprintf("extension %s is not supported; expected one of %s",
		ext, strings.Join(AllowedExtensions(), ", ")))
}
