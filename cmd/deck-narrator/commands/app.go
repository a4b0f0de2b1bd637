package commands

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/spherical/deck-narrator/internal/config"
	"github.com/spherical/deck-narrator/internal/deck"
	"github.com/spherical/deck-narrator/internal/ingest"
	"github.com/spherical/deck-narrator/internal/keylock"
	"github.com/spherical/deck-narrator/internal/narrate"
	"github.com/spherical/deck-narrator/internal/observability"
	"github.com/spherical/deck-narrator/internal/slidedir"
	"github.com/spherical/deck-narrator/internal/storage"
)

// app holds the components shared by the commands.
type app struct {
	cfg         *config.Config
	db          *sql.DB
	dirs        *slidedir.Manager
	repo        *storage.Repository
	locker      keylock.Locker
	coordinator *ingest.Coordinator
	narrator    *narrate.Service
}

func openApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app, error) {
	dirs, err := slidedir.NewManager(cfg.Storage.SlidesDir, cfg.Storage.URLPrefix)
	if err != nil {
		return nil, fmt.Errorf("slide directory: %w", err)
	}

	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}

	locker, err := keylock.New(cfg.Lock)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("lock backend: %w", err)
	}

	return &app{
		cfg:         cfg,
		db:          db,
		dirs:        dirs,
		repo:        storage.NewRepository(db),
		locker:      locker,
		coordinator: ingest.NewCoordinator(dirs, deck.NewHandlers(cfg.Render, logger), logger),
		narrator:    narrate.NewServiceFromConfig(cfg.Narration, logger),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.locker.Close(), a.db.Close())
}

func lockKey(userID, presentationID string) string {
	return userID + "/" + presentationID
}
