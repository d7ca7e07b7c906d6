package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sentiq/sentiq-api/internal/api"
	apiMiddleware "github.com/sentiq/sentiq-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all
// routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)
	r.Use(apiMiddleware.SecurityHeaders)
	r.Use(app.metrics.Middleware)

	allowedOrigins := app.config.Server.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	taskHandler := api.NewTaskHandler(app.taskService, app.config.Upload.MaxBytes, app.logger)

	// Task endpoints, all session-scoped
	r.Route("/task", func(r chi.Router) {
		r.Use(apiMiddleware.SessionMiddleware(app.sessionService, app.logger))

		r.Post("/run/single", taskHandler.RunSingle)
		r.Post("/run/batch", taskHandler.RunBatch)
		r.Post("/result/single", taskHandler.ResultSingle)
		r.Post("/result/batch", taskHandler.ResultBatch)
	})

	// Operational endpoints
	r.Handle("/metrics", app.metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
