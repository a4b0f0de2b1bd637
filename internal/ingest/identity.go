package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// PresentationID derives the presentation id from the upload time and the
// uploaded file name: "{unix millis}_{base name with spaces replaced by _}".
func PresentationID(uploadedAt time.Time, filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	base = strings.ReplaceAll(base, " ", "_")
	return fmt.Sprintf("%d_%s", uploadedAt.UnixMilli(), base)
}
