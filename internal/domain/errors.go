package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConversion ErrorType = "conversion"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeIO         ErrorType = "io"

	// Ingestion
	ErrorTypeUnsupportedFormat     ErrorType = "unsupported_format"
	ErrorTypeNoSlidesExtracted     ErrorType = "no_slides_extracted"
	ErrorTypeRasterizerUnavailable ErrorType = "rasterizer_unavailable"

	// Narration
	ErrorTypeNoSlideContent        ErrorType = "no_slide_content"
	ErrorTypeEmptyGeneration       ErrorType = "empty_generation"
	ErrorTypeGenerationService     ErrorType = "generation_service_error"
	ErrorTypeGenerationUnavailable ErrorType = "generation_unavailable"
)

// Sentinels for errors.Is. A sentinel matches every DomainError of the same type.
var (
	ErrUnsupportedFormat     = &DomainError{Type: ErrorTypeUnsupportedFormat}
	ErrNoSlidesExtracted     = &DomainError{Type: ErrorTypeNoSlidesExtracted}
	ErrRasterizerUnavailable = &DomainError{Type: ErrorTypeRasterizerUnavailable}
	ErrNoSlideContent        = &DomainError{Type: ErrorTypeNoSlideContent}
	ErrEmptyGeneration       = &DomainError{Type: ErrorTypeEmptyGeneration}
	ErrGenerationService     = &DomainError{Type: ErrorTypeGenerationService}
	ErrGenerationUnavailable = &DomainError{Type: ErrorTypeGenerationUnavailable}
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a bare sentinel of the same type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Type == e.Type
}

// TypeOf returns the type of the outermost DomainError in err's chain, or "".
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConversionError(message string, err error) *DomainError {
	return NewError(ErrorTypeConversion, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func UnsupportedFormatError(message string) *DomainError {
	return NewError(ErrorTypeUnsupportedFormat, message, nil)
}

func NoSlidesExtractedError(message string, err error) *DomainError {
	return NewError(ErrorTypeNoSlidesExtracted, message, err)
}

func RasterizerUnavailableError(message string, err error) *DomainError {
	return NewError(ErrorTypeRasterizerUnavailable, message, err)
}

func NoSlideContentError(message string) *DomainError {
	return NewError(ErrorTypeNoSlideContent, message, nil)
}

func EmptyGenerationError(message string) *DomainError {
	return NewError(ErrorTypeEmptyGeneration, message, nil)
}

func GenerationServiceError(message string, err error) *DomainError {
	return NewError(ErrorTypeGenerationService, message, err)
}

func GenerationUnavailableError(message string, err error) *DomainError {
	return NewError(ErrorTypeGenerationUnavailable, message, err)
}
