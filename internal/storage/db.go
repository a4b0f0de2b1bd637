// Package storage persists presentations, slides and saved narrations in
// SQLite (development) or Postgres.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/deck-narrator/internal/config"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS presentations (
		user_id         TEXT NOT NULL,
		presentation_id TEXT NOT NULL,
		file_name       TEXT NOT NULL,
		thumbnail_path  TEXT NOT NULL,
		slide_count     INTEGER NOT NULL,
		created_at      TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, presentation_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_presentations_user_created
		ON presentations (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS slides (
		user_id         TEXT NOT NULL,
		presentation_id TEXT NOT NULL,
		slide_number    INTEGER NOT NULL,
		locator         TEXT NOT NULL,
		image_path      TEXT NOT NULL,
		text            TEXT NOT NULL DEFAULT '',
		keywords        TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (user_id, presentation_id, slide_number)
	)`,
	`CREATE TABLE IF NOT EXISTS narrations (
		user_id         TEXT NOT NULL,
		presentation_id TEXT NOT NULL,
		slide_number    INTEGER NOT NULL,
		narration       TEXT NOT NULL,
		voice_tone      TEXT NOT NULL,
		speed           DOUBLE PRECISION NOT NULL,
		pitch           DOUBLE PRECISION NOT NULL,
		updated_at      TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, presentation_id, slide_number)
	)`,
}

// Open connects to the configured database and creates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		driver string
		dsn    string
	)
	switch cfg.Driver {
	case "sqlite":
		driver = "sqlite3"
		dsn = sqliteDSN(cfg.SQLite)
	case "postgres":
		driver = "postgres"
		dsn = cfg.Postgres.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		if cfg.SQLite.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
		}
	} else {
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates missing tables and indexes. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func sqliteDSN(cfg config.SQLiteConfig) string {
	params := []string{"_busy_timeout=5000", "_foreign_keys=on"}
	if cfg.JournalMode != "" {
		params = append(params, "_journal_mode="+cfg.JournalMode)
	}
	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	return "file:" + strings.TrimPrefix(cfg.Path, "file:") + sep + strings.Join(params, "&")
}
