// Package server initializes and runs the ledger store server.
// It opens PostgreSQL, applies migrations, serves the shared store over
// gRPC, schedules ciphertext backups and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophledger/internal/logging"
	"github.com/dmitrijs2005/gophledger/internal/server/config"
	"github.com/dmitrijs2005/gophledger/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophledger/internal/server/services"
	"github.com/dmitrijs2005/gophledger/internal/store"
	"github.com/dmitrijs2005/gophledger/internal/store/sqlstore"

	gs "github.com/dmitrijs2005/gophledger/internal/server/grpc"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	store     store.Store
	scheduler *services.Scheduler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, "json", c.LogLevel)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	app := &App{
		config: c,
		logger: logger,
		db:     db,
		store:  sqlstore.New(db, rm.RecordsFactory(), logger),
	}

	if c.BackupSchedule != "" {
		bs := services.NewBackupService(db, rm, c, logger)
		app.scheduler, err = services.NewScheduler(c.BackupSchedule, c.BackupTimeout, bs, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("invalid backup schedule: %w", err)
		}
	}

	return app, nil
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.store)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	if app.scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = app.scheduler.Run(ctx)
		}()
	}

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
