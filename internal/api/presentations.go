package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spherical/deck-narrator/internal/config"
	"github.com/spherical/deck-narrator/internal/deck"
	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/ingest"
	"github.com/spherical/deck-narrator/internal/observability"
	"github.com/spherical/deck-narrator/internal/slidedir"
)

// multipartMemory is the part of an upload kept in memory before spilling to disk.
const multipartMemory = 32 << 20

// PresentationHandler handles deck uploads and presentation management.
type PresentationHandler struct {
	logger  *observability.Logger
	cfg     config.ServerConfig
	svc     Services
	staging string
	now     func() time.Time
}

// NewPresentationHandler creates a new presentation handler.
func NewPresentationHandler(logger *observability.Logger, cfg config.ServerConfig, svc Services) *PresentationHandler {
	staging := svc.StagingDir
	if staging == "" {
		staging = filepath.Join(os.TempDir(), "deck-narrator-uploads")
	}
	return &PresentationHandler{
		logger:  logger,
		cfg:     cfg,
		svc:     svc,
		staging: staging,
		now:     time.Now,
	}
}

// Upload handles POST /presentations.
func (h *PresentationHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := UserFromContext(ctx)
	uploadedAt := h.now()

	if h.cfg.MaxUploadBytes > 0 {
		if r.ContentLength > h.cfg.MaxUploadBytes {
			writeError(w, r, h.logger, &http.MaxBytesError{Limit: h.cfg.MaxUploadBytes})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, h.logger, err)
			return
		}
		writeError(w, r, h.logger, domain.ValidationError("invalid multipart form", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, h.logger, domain.ValidationError("file is required", err))
		return
	}
	defer file.Close()

	fileName := filepath.Base(strings.ReplaceAll(header.Filename, `\`, "/"))
	if _, err := deck.Detect(fileName); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	presentationID := strings.TrimSpace(r.FormValue("presentationId"))
	if presentationID == "" {
		presentationID = ingest.PresentationID(uploadedAt, fileName)
	}
	if err := slidedir.ValidateKey("presentation id", presentationID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	stagedPath, err := h.stage(file, fileName)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer os.Remove(stagedPath)

	logger := h.logger.WithContext(ctx).WithPresentation(userID, presentationID).WithOperation("upload")
	logger.Info().Str("file_name", fileName).Int64("size", header.Size).Msg("Starting ingestion")

	unlock, err := h.svc.Locker.Lock(ctx, lockKey(userID, presentationID))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer unlock()

	presentation, err := h.svc.Ingester.Ingest(ctx, ingest.Request{
		UserID:         userID,
		PresentationID: presentationID,
		SourcePath:     stagedPath,
		FileName:       fileName,
		UploadedAt:     uploadedAt,
	}, nil)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	// The images are on disk already; record them even if the client left.
	if err := h.svc.Store.SavePresentation(context.WithoutCancel(ctx), presentation); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.public(presentation))
}

// stage copies an upload into the staging directory under a unique name.
func (h *PresentationHandler) stage(src io.Reader, fileName string) (string, error) {
	if err := os.MkdirAll(h.staging, 0o755); err != nil {
		return "", domain.IOError("failed to create staging directory", err)
	}

	path := filepath.Join(h.staging, uuid.NewString()+strings.ToLower(filepath.Ext(fileName)))
	dst, err := os.Create(path)
	if err != nil {
		return "", domain.IOError("failed to stage upload", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", domain.IOError("failed to stage upload", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", domain.IOError("failed to stage upload", err)
	}
	return path, nil
}

// PresentationListDTO is the response of the listing endpoint.
type PresentationListDTO struct {
	Presentations []domain.PresentationSummary `json:"presentations"`
}

// List handles GET /presentations.
func (h *PresentationHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Store.ListPresentations(r.Context(), UserFromContext(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := PresentationListDTO{Presentations: make([]domain.PresentationSummary, 0, len(list))}
	for _, p := range list {
		p.ThumbnailPath = h.publicURL(p.ThumbnailPath)
		resp.Presentations = append(resp.Presentations, p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /presentations/{presentationId}.
func (h *PresentationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Store.GetPresentation(r.Context(), UserFromContext(r.Context()), chi.URLParam(r, "presentationId"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.public(p))
}

// Delete handles DELETE /presentations/{presentationId}.
func (h *PresentationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	presentationID := chi.URLParam(r, "presentationId")
	if err := h.delete(r.Context(), UserFromContext(r.Context()), presentationID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"presentationId": presentationID, "status": "deleted"})
}

// BatchDeleteRequestDTO lists presentations to delete.
type BatchDeleteRequestDTO struct {
	PresentationIDs []string `json:"presentationIds"`
}

// BatchDeleteFailureDTO reports one presentation that could not be deleted.
type BatchDeleteFailureDTO struct {
	PresentationID string `json:"presentationId"`
	Error          string `json:"error"`
	Kind           string `json:"kind"`
}

// BatchDeleteResponseDTO is the outcome of a batch delete.
type BatchDeleteResponseDTO struct {
	Deleted []string                `json:"deleted"`
	Failed  []BatchDeleteFailureDTO `json:"failed"`
}

// BatchDelete handles POST /presentations/batch-delete.
func (h *PresentationHandler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	var req BatchDeleteRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, domain.ValidationError("invalid request body", err))
		return
	}
	if len(req.PresentationIDs) == 0 {
		writeError(w, r, h.logger, domain.ValidationError("presentationIds is required", nil))
		return
	}

	userID := UserFromContext(r.Context())
	resp := BatchDeleteResponseDTO{Deleted: []string{}, Failed: []BatchDeleteFailureDTO{}}
	for _, id := range req.PresentationIDs {
		if err := h.delete(r.Context(), userID, id); err != nil {
			apiErr := MapError(err)
			resp.Failed = append(resp.Failed, BatchDeleteFailureDTO{PresentationID: id, Error: apiErr.Message, Kind: apiErr.Kind})
			continue
		}
		resp.Deleted = append(resp.Deleted, id)
	}

	h.logger.WithContext(r.Context()).Info().
		Str("user_id", userID).
		Int("deleted", len(resp.Deleted)).
		Int("failed", len(resp.Failed)).
		Msg("Batch delete")

	writeJSON(w, http.StatusOK, resp)
}

// delete removes the metadata and output directory of one presentation.
func (h *PresentationHandler) delete(ctx context.Context, userID, presentationID string) error {
	if err := slidedir.ValidateKey("presentation id", presentationID); err != nil {
		return err
	}

	unlock, err := h.svc.Locker.Lock(ctx, lockKey(userID, presentationID))
	if err != nil {
		return err
	}
	defer unlock()

	if err := h.svc.Store.DeletePresentation(ctx, userID, presentationID); err != nil {
		return err
	}
	if err := h.svc.Dirs.Remove(userID, presentationID); err != nil {
		h.logger.WithContext(ctx).WithPresentation(userID, presentationID).WithOperation("delete").Warn().Err(err).Msg("failed to remove slide images")
	}
	return nil
}

// SaveNarrationRequestDTO is the body of a narration save.
type SaveNarrationRequestDTO struct {
	Narration string  `json:"narration"`
	VoiceTone string  `json:"voice_tone"`
	Speed     float64 `json:"speed"`
	Pitch     float64 `json:"pitch"`
	// Text replaces the slide text when the user edited it.
	Text *string `json:"text,omitempty"`
}

// SaveNarration handles PUT /presentations/{presentationId}/slides/{slideNumber}/narration.
func (h *PresentationHandler) SaveNarration(w http.ResponseWriter, r *http.Request) {
	presentationID := chi.URLParam(r, "presentationId")
	slideNumber, err := strconv.Atoi(chi.URLParam(r, "slideNumber"))
	if err != nil || slideNumber < 1 {
		writeError(w, r, h.logger, domain.ValidationError("invalid slide number", err))
		return
	}

	var req SaveNarrationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, h.logger, domain.ValidationError("invalid request body", err))
		return
	}
	if req.Speed < 0 || req.Pitch < 0 {
		writeError(w, r, h.logger, domain.ValidationError("speed and pitch must not be negative", nil))
		return
	}

	rec := domain.NarrationRecord{
		UserID:         UserFromContext(r.Context()),
		PresentationID: presentationID,
		SlideNumber:    slideNumber,
		Narration:      req.Narration,
		VoiceTone:      req.VoiceTone,
		Speed:          req.Speed,
		Pitch:          req.Pitch,
		SlideText:      req.Text,
	}
	rec.ApplyDefaults()

	if err := h.svc.Store.UpsertNarration(r.Context(), rec); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"presentationId": presentationID,
		"slideNumber":    slideNumber,
		"status":         "saved",
	})
}

// public returns a copy of p with image paths as clients should fetch them.
func (h *PresentationHandler) public(p *domain.Presentation) *domain.Presentation {
	out := *p
	out.ThumbnailPath = h.publicURL(p.ThumbnailPath)
	out.Slides = make([]domain.Slide, len(p.Slides))
	for i, s := range p.Slides {
		s.ImagePath = h.publicURL(s.ImagePath)
		out.Slides[i] = s
	}
	return &out
}

func (h *PresentationHandler) publicURL(path string) string {
	if h.cfg.PublicBaseURL == "" || path == "" {
		return path
	}
	return strings.TrimRight(h.cfg.PublicBaseURL, "/") + path
}

func lockKey(userID, presentationID string) string {
	return userID + "/" + presentationID
}
