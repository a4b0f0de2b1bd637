package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/keylock"
	"github.com/spherical/deck-narrator/internal/observability"
	"github.com/spherical/deck-narrator/internal/storage"
)

// Kinds reported for failures that are not domain errors.
const (
	kindNotFound     = "not_found"
	kindConflict     = "conflict"
	kindUnauthorized = "unauthorized"
	kindTooLarge     = "too_large"
	kindInternal     = "internal"
)

// APIError is an error with the HTTP status it is reported with.
type APIError struct {
	Status  int
	Message string
	Kind    string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new APIError.
func NewAPIError(status int, kind, message string, err error) *APIError {
	return &APIError{
		Status:  status,
		Message: message,
		Kind:    kind,
		Err:     err,
	}
}

// MapError maps an error from the service layer to an APIError.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return NewAPIError(http.StatusRequestEntityTooLarge, kindTooLarge,
			fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), err)
	}
	if errors.Is(err, storage.ErrNotFound) {
		return NewAPIError(http.StatusNotFound, kindNotFound, "resource not found", err)
	}
	if errors.Is(err, keylock.ErrLockTimeout) {
		return NewAPIError(http.StatusConflict, kindConflict, "presentation is busy, try again", err)
	}

	var de *domain.DomainError
	if errors.As(err, &de) {
		status := http.StatusInternalServerError
		switch de.Type {
		case domain.ErrorTypeValidation, domain.ErrorTypeUnsupportedFormat:
			status = http.StatusBadRequest
		}
		return NewAPIError(status, string(de.Type), de.Message, err)
	}

	return NewAPIError(http.StatusInternalServerError, kindInternal, "internal server error", err)
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError logs err and writes it as a JSON error body.
func writeError(w http.ResponseWriter, r *http.Request, logger *observability.Logger, err error) {
	apiErr := MapError(err)

	evt := logger.WithContext(r.Context()).Warn()
	if apiErr.Status >= http.StatusInternalServerError {
		evt = logger.WithContext(r.Context()).Error()
	}
	evt.Err(err).Int("status", apiErr.Status).Str("path", r.URL.Path).Msg("request failed")

	writeJSON(w, apiErr.Status, errorBody{Error: apiErr.Message, Kind: apiErr.Kind})
}
