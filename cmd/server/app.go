package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/sentiq/sentiq-api/internal/analyzer"
	"github.com/sentiq/sentiq-api/internal/cache"
	"github.com/sentiq/sentiq-api/internal/config"
	"github.com/sentiq/sentiq-api/internal/observability"
	"github.com/sentiq/sentiq-api/internal/platform/gemini"
	"github.com/sentiq/sentiq-api/internal/platform/localfs"
	"github.com/sentiq/sentiq-api/internal/platform/postgres"
	"github.com/sentiq/sentiq-api/internal/service"
	"github.com/sentiq/sentiq-api/internal/worker"
)

// application holds the wired components for the running server.
type application struct {
	config *config.Config
	logger *slog.Logger

	db          *sql.DB
	redisClient *redis.Client
	metrics     *observability.Metrics

	taskService    service.TaskService
	sessionService service.SessionService
	poller         *worker.Poller
}

// newApplication connects to the backing services and wires every
// component together. The database must be reachable; Redis and the
// remote analyzer are optional depending on configuration.
func newApplication(cfg *config.Config, logger *slog.Logger) (*application, error) {
	db, err := setupAppDatabase(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, logger); err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()

	taskStore := postgres.NewPostgresTaskStore(db, logger)
	sessionStore := postgres.NewPostgresSessionStore(db, logger)

	spooler, err := localfs.NewSpooler(cfg.Upload.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to set up upload spool: %w", err)
	}

	app := &application{
		config:  cfg,
		logger:  logger,
		db:      db,
		metrics: metrics,
	}

	// The task view cache is optional; with no Redis address configured
	// every read goes straight to the store.
	var viewCache service.TaskViewCache
	if cfg.Redis.Addr != "" {
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		taskCache, err := cache.NewTaskViewCache(app.redisClient, cache.DefaultTTL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up task cache: %w", err)
		}
		viewCache = taskCache
		logger.Info("Task view cache enabled", "addr", cfg.Redis.Addr)
	}

	an, err := setupAnalyzer(cfg, logger)
	if err != nil {
		return nil, err
	}

	taskService, err := service.NewTaskService(
		taskStore, db, spooler, viewCache, metrics, cfg.Upload.MaxBytes, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}
	app.taskService = taskService

	sessionService, err := service.NewSessionService(sessionStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create session service: %w", err)
	}
	app.sessionService = sessionService

	var invalidator worker.CacheInvalidator
	if viewCache != nil {
		invalidator = viewCache
	}

	poller, err := worker.NewPoller(
		taskStore, an, spooler, invalidator, metrics, cfg.Worker, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}
	app.poller = poller

	return app, nil
}

// setupAnalyzer selects the classifier implementation from configuration.
func setupAnalyzer(cfg *config.Config, logger *slog.Logger) (analyzer.Analyzer, error) {
	switch cfg.Analyzer.Provider {
	case "gemini":
		an, err := gemini.NewAnalyzer(context.Background(), cfg.Analyzer, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini analyzer: %w", err)
		}
		logger.Info("Using Gemini analyzer", "model", cfg.Analyzer.ModelName)
		return an, nil

	case "", "lexicon":
		logger.Info("Using lexicon analyzer")
		return analyzer.NewLexicon(logger), nil

	default:
		return nil, fmt.Errorf("unknown analyzer provider %q", cfg.Analyzer.Provider)
	}
}

// run starts the worker and the HTTP server, blocking until shutdown.
func (app *application) run(ctx context.Context) error {
	app.poller.Start(ctx)
	defer app.poller.Stop()

	return app.startHTTPServer(ctx, app.setupRouter())
}

// cleanup releases held connections. Safe to call more than once.
func (app *application) cleanup() {
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Warn("failed to close redis client", "error", err)
		}
		app.redisClient = nil
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Warn("failed to close database", "error", err)
		}
		app.db = nil
	}
}
