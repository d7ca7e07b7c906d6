// Package main implements the entry point for the SentiQ API server,
// which accepts sentiment analysis tasks over HTTP and processes them
// asynchronously in a background worker.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/sentiq/sentiq-api/internal/config"
	"github.com/sentiq/sentiq-api/internal/platform/logger"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	if err := app.run(context.Background()); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}

// initializeApp loads configuration, sets up logging, runs migrations,
// and wires the application components together.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"analyzer_provider", cfg.Analyzer.Provider,
		"cache_enabled", cfg.Redis.Addr != "")

	app, err := newApplication(cfg, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to build application: %w", err)
	}

	return app, nil
}
