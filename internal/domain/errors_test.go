package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	cause := errors.New("soffice not found")
	err := fmt.Errorf("ingest: %w", NoSlidesExtractedError("rasterizer failed", RasterizerUnavailableError("host application missing", cause)))

	assert.ErrorIs(t, err, ErrNoSlidesExtracted)
	assert.ErrorIs(t, err, ErrRasterizerUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, ErrorTypeNoSlidesExtracted, TypeOf(err))
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *DomainError
		want string
	}{
		{
			name: "without cause",
			err:  EmptyGenerationError("model returned no text"),
			want: "[empty_generation] model returned no text",
		},
		{
			name: "with cause",
			err:  GenerationUnavailableError("endpoint unreachable", errors.New("connection refused")),
			want: "[generation_unavailable] endpoint unreachable: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTypeOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}

func TestNarrationRecord_ApplyDefaults(t *testing.T) {
	rec := NarrationRecord{Narration: "hello", Speed: 1.5}
	rec.ApplyDefaults()

	assert.Equal(t, DefaultVoiceTone, rec.VoiceTone)
	assert.Equal(t, 1.5, rec.Speed)
	assert.Equal(t, DefaultPitch, rec.Pitch)
}
