package deck

import (
	"github.com/spherical/deck-narrator/internal/config"
	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/observability"
)

// NewHandlers builds one handler per supported format.
func NewHandlers(cfg config.RenderConfig, logger *observability.Logger) map[domain.DeckFormat]domain.DeckHandler {
	office := NewOfficeConverter(cfg.OfficeBinary, cfg.OfficeTimeout)
	return map[domain.DeckFormat]domain.DeckHandler{
		domain.FormatFixedLayout: NewPDFHandler(cfg.PDFDPI, logger),
		domain.FormatEditable:    NewPPTXHandler(office, cfg.SlideWidth, logger),
	}
}
