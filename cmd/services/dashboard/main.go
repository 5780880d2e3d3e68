package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/healthfusion/nutriwaste/internal/compression"
	"github.com/healthfusion/nutriwaste/internal/config"
	"github.com/healthfusion/nutriwaste/internal/logging"
	"github.com/healthfusion/nutriwaste/internal/modelstore"
	"github.com/healthfusion/nutriwaste/internal/router"
	"github.com/healthfusion/nutriwaste/internal/scorestore"
	"github.com/healthfusion/nutriwaste/internal/services"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	logger.Info("Dashboard starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime)

	if err := cfg.EnsureDirectories(); err != nil {
		logger.Fatal("Failed to prepare data directories", "error", err)
	}

	codec, err := compression.ParseAlgorithm(cfg.Data.ModelCompression)
	if err != nil {
		logger.Fatal("Invalid model compression", "error", err)
	}
	models, err := modelstore.New(cfg.Data.Models(), codec)
	if err != nil {
		logger.Fatal("Failed to open model store", "error", err)
	}

	// Score history is optional
	var history *scorestore.Store
	if cfg.History.Enabled {
		history, err = scorestore.Open(cfg.HistoryPath())
		if err != nil {
			logger.Fatal("Failed to open score history", "path", cfg.HistoryPath(), "error", err)
		}
		defer func() { _ = history.Close() }()
		logger.Info("Score history opened", "path", cfg.HistoryPath())
	}

	// Log authentication status
	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled for uploads", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - uploads are open")
	}

	dashboard := services.NewDashboardService(logger, cfg, models, history)
	app := router.New(logger, dashboard, *cfg)

	// Start server in goroutine
	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr, "data_dir", cfg.Data.BaseDir)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
