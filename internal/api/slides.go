package api

import (
	"net/http"
	"os"

	"github.com/spherical/deck-narrator/internal/observability"
	"github.com/spherical/deck-narrator/internal/slidedir"
)

// SlideFileHandler serves rendered slide images.
type SlideFileHandler struct {
	logger *observability.Logger
	dirs   *slidedir.Manager
}

// NewSlideFileHandler creates a handler serving files below dirs.
func NewSlideFileHandler(logger *observability.Logger, dirs *slidedir.Manager) *SlideFileHandler {
	return &SlideFileHandler{logger: logger, dirs: dirs}
}

// Serve handles GET {url_prefix}/*. Images are re-rendered in place on
// re-ingestion, so clients must not cache them.
func (h *SlideFileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	locator, err := h.dirs.LocatorFromPath(r.URL.EscapedPath())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	path, err := h.dirs.Resolve(locator)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "file not found", Kind: kindNotFound})
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	http.ServeFile(w, r, path)
}
