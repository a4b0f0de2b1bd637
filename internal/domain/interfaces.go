package domain

import "context"

// DeckHandler renders and reads one deck format.
type DeckHandler interface {
	// Rasterize writes one image per slide into destDir and returns the
	// file names relative to destDir, in slide order.
	Rasterize(ctx context.Context, srcPath, destDir string) ([]string, error)

	// ExtractText returns the text of each slide in slide order. Slides
	// without text yield "". The list may be shorter than the slide count.
	ExtractText(ctx context.Context, srcPath string) ([]string, error)
}

// PresentationStore persists ingested presentations and saved narrations.
type PresentationStore interface {
	SavePresentation(ctx context.Context, p *Presentation) error
	UpsertNarration(ctx context.Context, rec NarrationRecord) error
	ListPresentations(ctx context.Context, userID string) ([]PresentationSummary, error)
	GetPresentation(ctx context.Context, userID, presentationID string) (*Presentation, error)
	DeletePresentation(ctx context.Context, userID, presentationID string) error
}
