// Package server initializes and runs the auth core of the CardVault
// backend: it validates configuration, connects to storage, applies schema
// migrations, wires the session service, and runs the maintenance sweep
// until shutdown. Transports (HTTP/gRPC routing) live in collaborating
// components and consume SessionService directly.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/cardvault/internal/logging"
	"github.com/dmitrijs2005/cardvault/internal/server/config"
	"github.com/dmitrijs2005/cardvault/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/cardvault/internal/server/services"
	_ "github.com/jackc/pgx/v5/stdlib"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	db             *sql.DB
	repomanager    repomanager.RepositoryManager
	sessionService *services.SessionService
	sweeper        *services.Sweeper
}

func NewApp(cfg *config.Config) (*App, error) {

	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	// a server with no usable signing secret must not come up
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm, err := repomanager.NewPostgresRepositoryManager()
	if err != nil {
		return nil, fmt.Errorf("repository manager init error: %w", err)
	}

	ss, err := services.NewSessionService(db, rm, cfg, logger)
	if err != nil {
		return nil, err
	}

	sw := services.NewSweeper(db, rm, logger, cfg.SweepInterval)

	return &App{
		config:         cfg,
		logger:         logger,
		db:             db,
		repomanager:    rm,
		sessionService: ss,
		sweeper:        sw,
	}, nil
}

// SessionService exposes the auth operations to collaborating components
// (transport handlers, admin tooling).
func (app *App) SessionService() *services.SessionService {
	return app.sessionService
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting auth core...",
		"sweep_interval", app.config.SweepInterval.String(),
		"session_cap", app.config.SessionCap)

	if err := app.repomanager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.sweeper.Run(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "error closing db", "error", err)
	}

	return nil
}
