package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iconidentify/ytgrabba/internal/api"
	"github.com/iconidentify/ytgrabba/internal/api/handler"
	"github.com/iconidentify/ytgrabba/internal/app"
	"github.com/iconidentify/ytgrabba/internal/config"
	"github.com/iconidentify/ytgrabba/internal/worker"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ytgrabba-server %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	// Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ytgrabba server",
		"version", Version,
		"build_time", BuildTime,
	)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid server config", "error", err)
		os.Exit(1)
	}

	// Initialize pipeline
	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// Initialize handlers
	mediaHandler := handler.NewMediaHandler(a.Service, logger)
	healthHandler := handler.NewHealthHandler(a.JobRepo, a.Service)

	// Synchronous acquisitions may poll and then stream the largest file.
	requestTimeout := time.Duration(cfg.Remote.MaxPolls)*(cfg.Remote.SubmitTimeout+cfg.Remote.VideoBackoff) +
		cfg.Remote.VideoTransferTimeout + cfg.Fallback.Timeout

	// Setup router
	router := api.NewRouter(mediaHandler, healthHandler, cfg.Server.APIKey, requestTimeout)

	// Initialize worker pool
	pool := worker.NewPool(
		worker.Config{
			Workers:      cfg.Worker.Count,
			PollInterval: cfg.Worker.PollInterval,
		},
		a.JobRepo,
		a.Service,
		logger,
	)

	// Start worker pool
	pool.Start()

	// Setup HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "addr", srv.Addr, "download_dir", a.Store.Dir())
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting new requests
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Stop workers (allow in-flight jobs to complete)
	if err := pool.Stop(25 * time.Second); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
