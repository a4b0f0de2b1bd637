package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spherical/deck-narrator/internal/domain"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Repository handles presentation, slide and narration persistence.
type Repository struct {
	db  DB
	now func() time.Time
}

var _ domain.PresentationStore = (*Repository)(nil)

// NewRepository creates a new repository.
func NewRepository(db DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// SavePresentation stores an ingested presentation, replacing any earlier
// ingestion of the same key together with its saved narrations.
func (r *Repository) SavePresentation(ctx context.Context, p *domain.Presentation) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO presentations (user_id, presentation_id, file_name, thumbnail_path, slide_count, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (user_id, presentation_id) DO UPDATE SET
				file_name = excluded.file_name,
				thumbnail_path = excluded.thumbnail_path,
				slide_count = excluded.slide_count,
				created_at = excluded.created_at
		`, p.UserID, p.ID, p.FileName, p.ThumbnailPath, len(p.Slides), p.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("upsert presentation: %w", err)
		}

		for _, table := range []string{"slides", "narrations"} {
			query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND presentation_id = $2`, table)
			if _, err := tx.ExecContext(ctx, query, p.UserID, p.ID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for _, s := range p.Slides {
			keywords, err := json.Marshal(nonNil(s.Keywords))
			if err != nil {
				return fmt.Errorf("encode keywords: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO slides (user_id, presentation_id, slide_number, locator, image_path, text, keywords)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, p.UserID, p.ID, s.Index, s.Locator, s.ImagePath, s.Text, string(keywords))
			if err != nil {
				return fmt.Errorf("insert slide %d: %w", s.Index, err)
			}
		}
		return nil
	})
}

// UpsertNarration saves the narration of one slide, updating an earlier
// save of the same slide. The slide must exist.
func (r *Repository) UpsertNarration(ctx context.Context, rec domain.NarrationRecord) error {
	rec.ApplyDefaults()
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = r.now()
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `
			SELECT 1 FROM slides
			WHERE user_id = $1 AND presentation_id = $2 AND slide_number = $3
		`, rec.UserID, rec.PresentationID, rec.SlideNumber).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lookup slide: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO narrations (user_id, presentation_id, slide_number, narration, voice_tone, speed, pitch, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id, presentation_id, slide_number) DO UPDATE SET
				narration = excluded.narration,
				voice_tone = excluded.voice_tone,
				speed = excluded.speed,
				pitch = excluded.pitch,
				updated_at = excluded.updated_at
		`, rec.UserID, rec.PresentationID, rec.SlideNumber, rec.Narration, rec.VoiceTone, rec.Speed, rec.Pitch, rec.UpdatedAt.UTC())
		if err != nil {
			return fmt.Errorf("upsert narration: %w", err)
		}

		if rec.SlideText != nil {
			_, err = tx.ExecContext(ctx, `
				UPDATE slides SET text = $1
				WHERE user_id = $2 AND presentation_id = $3 AND slide_number = $4
			`, *rec.SlideText, rec.UserID, rec.PresentationID, rec.SlideNumber)
			if err != nil {
				return fmt.Errorf("update slide text: %w", err)
			}
		}
		return nil
	})
}

// ListPresentations returns a user's presentations, newest first.
func (r *Repository) ListPresentations(ctx context.Context, userID string) ([]domain.PresentationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT presentation_id, file_name, thumbnail_path, slide_count, created_at
		FROM presentations
		WHERE user_id = $1
		ORDER BY created_at DESC, presentation_id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []domain.PresentationSummary{}
	for rows.Next() {
		var s domain.PresentationSummary
		if err := rows.Scan(&s.ID, &s.FileName, &s.ThumbnailPath, &s.SlideCount, &s.CreatedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// GetPresentation returns a presentation with its slides in order. Slides
// without a saved narration carry the default narration settings.
func (r *Repository) GetPresentation(ctx context.Context, userID, presentationID string) (*domain.Presentation, error) {
	p := &domain.Presentation{UserID: userID, ID: presentationID}
	err := r.db.QueryRowContext(ctx, `
		SELECT file_name, thumbnail_path, created_at
		FROM presentations
		WHERE user_id = $1 AND presentation_id = $2
	`, userID, presentationID).Scan(&p.FileName, &p.ThumbnailPath, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.slide_number, s.locator, s.image_path, s.text, s.keywords,
		       n.narration, n.voice_tone, n.speed, n.pitch, n.updated_at
		FROM slides s
		LEFT JOIN narrations n
		  ON n.user_id = s.user_id
		 AND n.presentation_id = s.presentation_id
		 AND n.slide_number = s.slide_number
		WHERE s.user_id = $1 AND s.presentation_id = $2
		ORDER BY s.slide_number
	`, userID, presentationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	p.Slides = []domain.Slide{}
	for rows.Next() {
		var (
			s         domain.Slide
			keywords  string
			narration sql.NullString
			tone      sql.NullString
			speed     sql.NullFloat64
			pitch     sql.NullFloat64
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&s.Index, &s.Locator, &s.ImagePath, &s.Text, &keywords,
			&narration, &tone, &speed, &pitch, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(keywords), &s.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords of slide %d: %w", s.Index, err)
		}

		s.VoiceTone, s.Speed, s.Pitch = domain.DefaultVoiceTone, domain.DefaultSpeed, domain.DefaultPitch
		if narration.Valid {
			s.Narration = narration.String
			s.VoiceTone = tone.String
			s.Speed = speed.Float64
			s.Pitch = pitch.Float64
			s.UpdatedAt = updatedAt.Time
		}
		p.Slides = append(p.Slides, s)
	}
	return p, rows.Err()
}

// DeletePresentation removes a presentation, its slides and narrations.
func (r *Repository) DeletePresentation(ctx context.Context, userID, presentationID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"narrations", "slides"} {
			query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND presentation_id = $2`, table)
			if _, err := tx.ExecContext(ctx, query, userID, presentationID); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}

		res, err := tx.ExecContext(ctx, `
			DELETE FROM presentations WHERE user_id = $1 AND presentation_id = $2
		`, userID, presentationID)
		if err != nil {
			return fmt.Errorf("delete presentation: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
