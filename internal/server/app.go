// Package server initializes and runs the project-store server: it opens
// the database, applies migrations, wires the store behind the HTTP
// surface, and handles graceful shutdown.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/blockstudio/server/internal/logging"
	"github.com/blockstudio/server/internal/server/config"
	"github.com/blockstudio/server/internal/server/httpapi"
	"github.com/blockstudio/server/internal/server/repositories/repomanager"
	"github.com/blockstudio/server/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	store  *services.Service
	http   *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	sl := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(sl)

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store := services.NewService(db, repomanager.NewPostgresManager(), logger, cfg)
	httpSrv := httpapi.NewServer(store, logger, cfg)

	return &App{config: cfg, logger: logger, store: store, http: httpSrv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
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
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
