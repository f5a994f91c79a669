// Package app builds the classification pipeline from configuration.
// The server, the CLI and the Telegram bot all start here, so each main()
// only adds its own surface on top.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/ecosort/internal/config"
	"github.com/fleveque/ecosort/internal/llm"
	"github.com/fleveque/ecosort/internal/service"
	"github.com/fleveque/ecosort/internal/session"
	"github.com/fleveque/ecosort/internal/storage"
)

// App holds the long-lived pieces shared by every surface.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Service *service.ClassificationService

	// closers run in reverse order on Close, like stacked defers.
	closers []func() error
}

// NewLogger builds a zap logger at level. Development mode (or level
// "debug") prints readable console lines; otherwise it logs JSON.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if development || level == "debug" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	return cfg.Build()
}

// New validates cfg and opens the ledger, the optional image archive and the
// configured classifier. Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	if cfg.Storage.Driver == "" || cfg.Storage.Driver == "sqlite3" {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	db, err := storage.NewDatabase(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	var archive *storage.ImageArchive
	if cfg.Storage.KeepImages {
		if archive, err = storage.NewImageArchive(cfg.Storage.ImageDir); err != nil {
			_ = a.Close()
			return nil, err
		}
	}

	classifier, err := llm.NewFromConfig(ctx, cfg.LLM)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("creating classifier: %w", err)
	}
	// Only some SDK clients hold connections; a type assertion finds out.
	if c, ok := classifier.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.Service = service.NewClassificationService(
		classifier,
		storage.NewClassificationRepository(db),
		archive,
		service.Options{
			RatePerMinute: cfg.LLM.RatePerMinute,
			Timeout:       time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		},
		logger,
	)

	logger.Info("classification pipeline ready",
		zap.String("provider", a.Service.ProviderName()),
		zap.String("model", a.Service.ModelName()),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("keep_images", cfg.Storage.KeepImages),
	)
	return a, nil
}

// NewStore returns a session registry whose sessions classify through the
// shared service. camera may be nil when the process has no camera.
func (a *App) NewStore(camera session.CameraFunc) *session.Store {
	lang := a.Config.UI.Language
	return session.NewStore(func(id string) *session.Session {
		return session.New(id, a.Service, camera, lang, a.Logger)
	}, a.Logger)
}

// RunMaintenance closes idle sessions and prunes the image archive until ctx
// is done.
func (a *App) RunMaintenance(ctx context.Context, store *session.Store) {
	idle := time.Duration(a.Config.Capture.SessionIdleMinutes) * time.Minute
	if idle > 0 {
		go store.RunJanitor(ctx, time.Minute, idle)
	}

	retention := time.Duration(a.Config.Storage.ImageRetentionDays) * 24 * time.Hour
	if !a.Config.Storage.KeepImages || retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		if _, err := a.Service.PruneArchive(retention); err != nil {
			a.Logger.Warn("pruning image archive", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close releases everything New opened.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
