package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/novaq/internal/api"
	apiMiddleware "github.com/phrazzld/novaq/internal/api/middleware"
)

// setupRouter configures the HTTP routes and middleware chain.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	jobHandler := api.NewJobHandler(app.jobService, app.logger)
	workerHandler := api.NewWorkerHandler(
		app.jobWorker,
		app.locks,
		app.config.Worker.MaxConcurrent,
		app.logger,
	)
	healthHandler := api.NewHealthHandler(app.db, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.config.Auth.JWTSecret)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Post("/jobs", jobHandler.CreateJob)
		r.Get("/jobs/stats", jobHandler.GetStats)
		r.Get("/jobs/{id}", jobHandler.GetJob)
		r.Get("/jobs/{id}/logs", jobHandler.GetJobLogs)

		r.Get("/worker", workerHandler.GetStatus)
	})

	r.Get("/health", healthHandler.GetHealth)

	return r
}
