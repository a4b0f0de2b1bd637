// Package api exposes ingestion, narration and slide images over HTTP.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/deck-narrator/internal/config"
	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/ingest"
	"github.com/spherical/deck-narrator/internal/keylock"
	"github.com/spherical/deck-narrator/internal/narrate"
	"github.com/spherical/deck-narrator/internal/observability"
	"github.com/spherical/deck-narrator/internal/slidedir"
)

// Ingester turns an uploaded deck into slides.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request, eventCh chan<- domain.IngestEvent) (*domain.Presentation, error)
}

// Narrator produces the narration of one slide.
type Narrator interface {
	Narrate(ctx context.Context, req narrate.Request) narrate.Result
}

// Services holds the dependencies of the HTTP handlers.
type Services struct {
	Dirs     *slidedir.Manager
	Ingester Ingester
	Store    domain.PresentationStore
	Locker   keylock.Locker
	Narrator Narrator
	// StagingDir receives uploads while they are ingested.
	StagingDir string
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg config.ServerConfig, svc Services) http.Handler {
	if logger == nil {
		logger = observability.Nop()
	}
	logger = logger.WithComponent("api")

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(cfg.CORSOrigins, cfg.IdentityHeader))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "deck-narrator"})
	})

	slides := NewSlideFileHandler(logger, svc.Dirs)
	r.Get(strings.TrimRight(svc.Dirs.URLPrefix(), "/")+"/*", slides.Serve)

	presentations := NewPresentationHandler(logger, cfg, svc)
	narrations := NewNarrationHandler(logger, svc.Narrator)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Identity(cfg.IdentityHeader))

		r.Route("/presentations", func(r chi.Router) {
			r.Post("/", presentations.Upload)
			r.Get("/", presentations.List)
			r.Post("/batch-delete", presentations.BatchDelete)

			r.Route("/{presentationId}", func(r chi.Router) {
				r.Get("/", presentations.Get)
				r.Delete("/", presentations.Delete)
				r.Put("/slides/{slideNumber}/narration", presentations.SaveNarration)
			})
		})

		r.Post("/narrations", narrations.Generate)
	})

	return r
}
