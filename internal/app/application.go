// Package app wires every component into one runnable process: database,
// room/document registries, dispatcher, scheduler and the HTTP/WebSocket
// surface, in dependency order.
package app

import (
	"context"
	"fmt"
	"net/http"

	"switchboard/internal/api"
	"switchboard/internal/auth"
	"switchboard/internal/collab"
	"switchboard/internal/config"
	"switchboard/internal/database"
	"switchboard/internal/dispatcher"
	"switchboard/internal/logging"
	"switchboard/internal/mailer"
	"switchboard/internal/metrics"
	"switchboard/internal/ot"
	"switchboard/internal/room"
	"switchboard/internal/scheduler"
	"switchboard/internal/websocket"
	pkgdatabase "switchboard/pkg/database"

	"go.uber.org/zap"
)

// Application coordinates every long-lived component's lifecycle: database,
// the Room and document Registries, the Dispatcher, the Scheduler and the
// combined HTTP/WebSocket server.
//
// Component initialization follows strict dependency order: database →
// migrations → room Registry → document Registry → auth → dispatcher →
// mailer/scheduler → WebSocket handler → API server → HTTP.
type Application struct {
	config *config.Config

	dbManager *database.Manager
	rooms     *room.Registry
	docs      *collab.Registry
	dispatch  *dispatcher.Dispatcher
	scheduler *scheduler.Scheduler
	conns     *websocket.Registry
	wsHandler *websocket.Handler
	apiServer *api.Server
	httpServer *http.Server

	cancelBackground context.CancelFunc
}

// NewApplication constructs every component and wires them together. It
// starts no goroutine and opens no listener; call Start for that.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: database manager (foundation layer)
	dbConfig := pkgdatabase.DefaultConfig()
	dbConfig.DatabasePath = cfg.Database.Path
	if cfg.Database.Timeout > 0 {
		dbConfig.ConnMaxLifetime = cfg.Database.Timeout
		dbConfig.ConnMaxIdleTime = cfg.Database.Timeout / 3
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	// STEP 1.5: apply migrations so the schema is current before anything
	// reads or writes through it.
	migrationManager := pkgdatabase.NewMigrationManager(dbManager.GetDB(), dbConfig.MigrationsPath)
	if err := migrationManager.ApplyMigrations(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}

	// STEP 2: room Registry (presence, chat, breakouts, question queue)
	rooms := room.NewRegistry()

	// STEP 3: collaborative document Registry, backed by the same Manager
	docs := collab.NewRegistry(dbManager, cfg.Collab.MaxInstances, cfg.Collab.MaxStepHistory, ot.SameAuthorMerger{})
	docs.SetEvictHook(func(id string) { metrics.DocInstanceEvictionsTotal.Inc() })

	// STEP 4: auth (trusts the bearer token as a pre-verified email) and
	// the Dispatcher that routes every wire message against rooms/docs
	trustedAuth := auth.New(dbManager)
	dispatch := dispatcher.New(rooms, docs, dbManager)

	// STEP 5: mailer behind a circuit breaker, and the due-event Scheduler
	mailClient := mailer.New(cfg.Mailer.Host, cfg.Mailer.Port, cfg.Mailer.From, nil)
	sched := scheduler.New(dbManager, dbManager, scheduler.NewBreakerMailer(mailClient), dbManager, nil)

	// STEP 6: WebSocket connection Registry and Handler
	conns := websocket.NewRegistry()
	wsHandler := websocket.NewHandler(trustedAuth, dispatch, conns, cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	// STEP 7: API server (health, room listing, metrics)
	apiServer := api.NewServer(dbManager, conns, rooms)

	// STEP 8: combined HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.Handle("/", apiServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		rooms:      rooms,
		docs:       docs,
		dispatch:   dispatch,
		scheduler:  sched,
		conns:      conns,
		wsHandler:  wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start runs the scheduler tick loop and the document save loop in the
// background, then serves HTTP until the context is cancelled or the
// listener fails. It blocks for the lifetime of the server.
func (app *Application) Start(ctx context.Context) error {
	logging.L().Info("starting switchboard application", zap.String("addr", app.httpServer.Addr))

	bgCtx, cancel := context.WithCancel(ctx)
	app.cancelBackground = cancel

	go app.scheduler.Run(bgCtx, app.config.Scheduler.TickInterval)
	go app.docs.RunSaveLoop(bgCtx, app.config.Scheduler.TickInterval, func(id string, err error) {
		logging.L().Error("document save failed", zap.String("document_id", id), zap.Error(err))
	})

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		cancel()
		return err
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	}
}

// Stop gracefully shuts down the HTTP server and background loops, then
// closes the database. Reverse dependency order: HTTP → background loops →
// database.
func (app *Application) Stop(ctx context.Context) error {
	logging.L().Info("shutting down switchboard application")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		logging.L().Error("HTTP server shutdown error", zap.Error(err))
	}

	if app.cancelBackground != nil {
		app.cancelBackground()
	}

	if err := app.dbManager.Close(); err != nil {
		logging.L().Error("database shutdown error", zap.Error(err))
	}

	logging.L().Info("switchboard application shutdown complete")
	return nil
}

// GetAddr returns the HTTP server's configured listen address.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
