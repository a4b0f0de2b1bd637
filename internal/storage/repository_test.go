package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/deck-narrator/internal/config"
	"github.com/spherical/deck-narrator/internal/domain"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	cfg := config.DefaultConfig().Database
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "narrator.db")

	db, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePresentation(userID, id string, slides int, createdAt time.Time) *domain.Presentation {
	p := &domain.Presentation{
		UserID:    userID,
		ID:        id,
		FileName:  id + ".pptx",
		CreatedAt: createdAt,
	}
	for i := 1; i <= slides; i++ {
		locator := fmt.Sprintf("%s/%s/slide_%d.png", userID, id, i)
		s := domain.NewSlide(i, locator, "/uploads/slides/"+locator, fmt.Sprintf("text %d", i))
		s.Keywords = []string{"text", fmt.Sprint(i)}
		p.Slides = append(p.Slides, s)
	}
	p.ThumbnailPath = p.Slides[0].ImagePath
	return p
}

func TestRepository_SQLite(t *testing.T) {
	runRepositoryTests(t, func(t *testing.T) *sql.DB { return openSQLite(t) })
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openSQLite(t)
	require.NoError(t, Migrate(context.Background(), db))
	require.NoError(t, Migrate(context.Background(), db))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	dsn := sqliteDSN(config.SQLiteConfig{Path: "/tmp/x.db", JournalMode: "WAL"})
	assert.Equal(t, "file:/tmp/x.db?_busy_timeout=5000&_foreign_keys=on&_journal_mode=WAL", dsn)
}

// runRepositoryTests exercises the repository against any supported database.
func runRepositoryTests(t *testing.T, open func(t *testing.T) *sql.DB) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("save and get", func(t *testing.T) {
		repo := NewRepository(open(t))
		p := samplePresentation("u1", "p1", 3, base)
		require.NoError(t, repo.SavePresentation(ctx, p))

		got, err := repo.GetPresentation(ctx, "u1", "p1")
		require.NoError(t, err)
		assert.Equal(t, "p1.pptx", got.FileName)
		assert.Equal(t, p.ThumbnailPath, got.ThumbnailPath)
		assert.True(t, base.Equal(got.CreatedAt))
		require.Len(t, got.Slides, 3)
		for i, s := range got.Slides {
			assert.Equal(t, i+1, s.Index)
			assert.Equal(t, p.Slides[i].ImagePath, s.ImagePath)
			assert.Equal(t, p.Slides[i].Locator, s.Locator)
			assert.Equal(t, p.Slides[i].Text, s.Text)
			assert.Equal(t, p.Slides[i].Keywords, s.Keywords)
			assert.Equal(t, domain.DefaultVoiceTone, s.VoiceTone)
			assert.Equal(t, domain.DefaultSpeed, s.Speed)
			assert.Equal(t, domain.DefaultPitch, s.Pitch)
			assert.Empty(t, s.Narration)
		}
	})

	t.Run("get missing", func(t *testing.T) {
		repo := NewRepository(open(t))
		_, err := repo.GetPresentation(ctx, "u1", "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("presentations are scoped by user", func(t *testing.T) {
		repo := NewRepository(open(t))
		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "p1", 1, base)))

		_, err := repo.GetPresentation(ctx, "u2", "p1")
		assert.ErrorIs(t, err, ErrNotFound)

		list, err := repo.ListPresentations(ctx, "u2")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("list newest first", func(t *testing.T) {
		repo := NewRepository(open(t))
		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "old", 2, base)))
		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "new", 4, base.Add(time.Hour))))

		list, err := repo.ListPresentations(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "new", list[0].ID)
		assert.Equal(t, 4, list[0].SlideCount)
		assert.Equal(t, "old", list[1].ID)
	})

	t.Run("upsert narration", func(t *testing.T) {
		repo := NewRepository(open(t))
		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "p1", 2, base)))

		rec := domain.NarrationRecord{UserID: "u1", PresentationID: "p1", SlideNumber: 2, Narration: "first take"}
		require.NoError(t, repo.UpsertNarration(ctx, rec))

		edited := "edited text"
		rec = domain.NarrationRecord{
			UserID: "u1", PresentationID: "p1", SlideNumber: 2,
			Narration: "second take", VoiceTone: "Casual", Speed: 1.25, Pitch: 0.9,
			SlideText: &edited,
		}
		require.NoError(t, repo.UpsertNarration(ctx, rec))

		got, err := repo.GetPresentation(ctx, "u1", "p1")
		require.NoError(t, err)
		assert.Empty(t, got.Slides[0].Narration)

		s := got.Slides[1]
		assert.Equal(t, "second take", s.Narration)
		assert.Equal(t, "Casual", s.VoiceTone)
		assert.Equal(t, 1.25, s.Speed)
		assert.Equal(t, 0.9, s.Pitch)
		assert.Equal(t, "edited text", s.Text)
		assert.False(t, s.UpdatedAt.IsZero())
	})

	t.Run("upsert narration defaults", func(t *testing.T) {
		repo := NewRepository(open(t))
		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "p1", 1, base)))
		require.NoError(t, repo.UpsertNarration(ctx, domain.NarrationRecord{
			UserID: "u1", PresentationID: "p1", SlideNumber: 1, Narration: "hi",
		}))

		got, err := repo.GetPresentation(ctx, "u1", "p1")
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultVoiceTone, got.Slides[0].VoiceTone)
		assert.Equal(t, domain.DefaultSpeed, got.Slides[0].Speed)
	})

	t.Run("upsert narration for unknown slide", func(t *testing.T) {
		repo := NewRepository(open(t))
		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "p1", 1, base)))

		err := repo.UpsertNarration(ctx, domain.NarrationRecord{UserID: "u1", PresentationID: "p1", SlideNumber: 9, Narration: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("re-ingest replaces slides and narrations", func(t *testing.T) {
		repo := NewRepository(open(t))
		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "p1", 5, base)))
		require.NoError(t, repo.UpsertNarration(ctx, domain.NarrationRecord{UserID: "u1", PresentationID: "p1", SlideNumber: 1, Narration: "old"}))

		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "p1", 2, base)))

		got, err := repo.GetPresentation(ctx, "u1", "p1")
		require.NoError(t, err)
		assert.Len(t, got.Slides, 2)
		assert.Empty(t, got.Slides[0].Narration)
	})

	t.Run("delete", func(t *testing.T) {
		repo := NewRepository(open(t))
		require.NoError(t, repo.SavePresentation(ctx, samplePresentation("u1", "p1", 2, base)))
		require.NoError(t, repo.UpsertNarration(ctx, domain.NarrationRecord{UserID: "u1", PresentationID: "p1", SlideNumber: 1, Narration: "x"}))

		require.NoError(t, repo.DeletePresentation(ctx, "u1", "p1"))
		_, err := repo.GetPresentation(ctx, "u1", "p1")
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, repo.DeletePresentation(ctx, "u1", "p1"), ErrNotFound)
	})
}
