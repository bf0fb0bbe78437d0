package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/novaq/internal/config"
	"github.com/phrazzld/novaq/internal/domain"
	"github.com/phrazzld/novaq/internal/droid"
	"github.com/phrazzld/novaq/internal/events"
	"github.com/phrazzld/novaq/internal/lock"
	"github.com/phrazzld/novaq/internal/notify"
	"github.com/phrazzld/novaq/internal/platform/gemini"
	"github.com/phrazzld/novaq/internal/platform/postgres"
	"github.com/phrazzld/novaq/internal/service"
	"github.com/phrazzld/novaq/internal/store"
	"github.com/phrazzld/novaq/internal/worker"
)

// application holds the shared application dependencies so startup and
// shutdown stay in one place.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	jobStore   store.JobStore
	jobService service.JobService

	eventEmitter *events.InMemoryEventEmitter
	locks        *lock.Manager
	jobWorker    *worker.JobWorker

	nsqSink *notify.NSQSink
}

// newApplication wires all dependencies. The worker is created but not
// started; Run starts it together with the HTTP server.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	app.jobStore = postgres.NewPostgresJobStore(db)

	var err error
	app.jobService, err = service.NewJobService(db, app.jobStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job service: %w", err)
	}

	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.locks = lock.NewManager(cfg.Worker.MaxConversationLocks, logger)

	app.jobWorker = worker.NewJobWorker(app.jobStore, app.eventEmitter, worker.Config{
		PollInterval:  time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond,
		MaxConcurrent: cfg.Worker.MaxConcurrent,
		JobTypes:      cfg.Worker.JobTypes,
		ShutdownGrace: time.Duration(cfg.Worker.ShutdownGraceSeconds) * time.Second,
		Verbose:       cfg.Worker.Verbose,
	}, logger)

	if err := app.registerHandlers(ctx); err != nil {
		return nil, err
	}

	app.registerNotifier()

	logger.Info("application initialized")
	return app, nil
}

// registerHandlers wires the built-in droid handlers. Without an API
// key the worker still runs; droid jobs then fail as unhandled types.
func (app *application) registerHandlers(ctx context.Context) error {
	if app.config.Droid.GeminiAPIKey == "" {
		app.logger.Warn("gemini API key not configured, droid handlers disabled")
		return nil
	}

	client, err := gemini.NewClient(ctx, app.logger, gemini.Config{
		APIKey:    app.config.Droid.GeminiAPIKey,
		ModelName: app.config.Droid.ModelName,
	})
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}

	handler := worker.WithConversationLock(app.locks, droid.NewExecHandler(client, app.logger))
	app.jobWorker.RegisterHandler(domain.JobTypeDroidExec, handler)
	app.jobWorker.RegisterHandler(domain.JobTypeNovaMission, handler)

	app.logger.Info("droid handlers registered", "model", app.config.Droid.ModelName)
	return nil
}

// registerNotifier connects job events to the outbound message sink.
func (app *application) registerNotifier() {
	var sink notify.MessageSink
	if app.config.Notifier.NSQDAddr != "" {
		nsqSink, err := notify.NewNSQSink(
			app.config.Notifier.NSQDAddr,
			app.config.Notifier.NSQTopic,
			app.logger,
		)
		if err != nil {
			app.logger.Error("failed to create NSQ sink, falling back to log sink", "error", err)
			sink = notify.NewLogSink(app.logger)
		} else {
			app.nsqSink = nsqSink
			sink = nsqSink
		}
	} else {
		sink = notify.NewLogSink(app.logger)
	}

	notifier := notify.NewNotifier(sink, notify.Config{
		MinProgressInterval: time.Duration(app.config.Notifier.ProgressIntervalMs) * time.Millisecond,
		ProgressPercentStep: app.config.Notifier.ProgressPercentStep,
	}, app.logger)

	app.eventEmitter.RegisterHandler(notifier)
}

// Run starts the worker and the HTTP server, then blocks until
// shutdown completes.
func (app *application) Run(ctx context.Context) error {
	if err := app.jobWorker.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	router := app.setupRouter()
	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup shuts down in dependency order: stop claiming and finish
// jobs, drain pending events, flush the sink, close the pool.
func (app *application) cleanup() {
	app.jobWorker.Stop()
	app.eventEmitter.Close()

	if app.nsqSink != nil {
		app.nsqSink.Stop()
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
