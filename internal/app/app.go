// Package app assembles the acquisition pipeline from configuration.
package app

import (
	"fmt"
	"log/slog"

	"github.com/iconidentify/ytgrabba/internal/cache"
	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/downloader"
	"github.com/iconidentify/ytgrabba/internal/extractor"
	"github.com/iconidentify/ytgrabba/internal/remote"
	"github.com/iconidentify/ytgrabba/internal/repository"
	"github.com/iconidentify/ytgrabba/internal/service"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Service *service.AcquireService
	JobRepo *repository.InMemoryJobRepository
	Store   *cache.Store

	history *repository.SQLiteHistoryRepository
}

// Option adjusts wiring, mostly for tests.
type Option func(*options)

type options struct {
	runner extractor.Runner
}

// WithRunner replaces the process runner used by the extraction tool.
func WithRunner(r extractor.Runner) Option {
	return func(o *options) { o.runner = r }
}

// New wires the pipeline described by cfg.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	store := cache.NewStore(cfg.Storage.DownloadDir)
	if err := store.EnsureDir(); err != nil {
		return nil, fmt.Errorf("create download directory: %w", err)
	}

	dl := downloader.NewHTTPDownloader(cfg.Remote)
	dl.SetLogger(logger)

	// Both conversion endpoints draw from one request budget.
	limiter := remote.NewLimiter(cfg.Remote)
	primary := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote,
		remote.WithLimiter(limiter),
		remote.WithLogger(logger.With("component", "remote")),
	)

	var fallbackRemote service.RemoteClient
	if cfg.Remote.FallbackBaseURL != "" {
		fallbackRemote = remote.NewClient(cfg.Remote.FallbackBaseURL, cfg.Remote,
			remote.WithLimiter(limiter),
			remote.WithLogger(logger.With("component", "remote_fallback")),
		)
	}

	var ext service.Extractor
	if cfg.Fallback.Enabled {
		cookies := extractor.NewCookiePicker(cfg.Fallback.CookieDir, nil)
		ext = extractor.NewYtDlp(cfg.Fallback, cookies, o.runner, logger.With("component", "ytdlp"))
	}

	a := &App{
		JobRepo: repository.NewInMemoryJobRepository(),
		Store:   store,
	}

	var history repository.HistoryRepository
	if cfg.History.Enabled {
		h, err := repository.NewSQLiteHistoryRepository(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
		a.history = h
		history = h
	}

	a.Service = service.NewAcquireService(
		store,
		primary,
		fallbackRemote,
		dl,
		ext,
		a.JobRepo,
		history,
		cfg,
		logger,
	)

	logger.Debug("pipeline wired",
		"download_dir", store.Dir(),
		"remote", primary.BaseURL(),
		"fallback_remote", cfg.Remote.FallbackBaseURL != "",
		"extractor", cfg.Fallback.Enabled,
		"history", cfg.History.Enabled,
	)

	return a, nil
}

// Close releases the history database.
func (a *App) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}
