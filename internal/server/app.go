// Package server wires the application together: configuration, logging,
// storage, the volatile cache, domain services and the HTTP endpoint, with
// graceful shutdown on SIGINT/SIGTERM/SIGQUIT.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/cache"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/dmitrijs2005/taskkeeper/internal/server/db"
	httpserver "github.com/dmitrijs2005/taskkeeper/internal/server/http"
	"github.com/dmitrijs2005/taskkeeper/internal/server/sessions"
	"github.com/dmitrijs2005/taskkeeper/internal/server/tasks"
	"github.com/dmitrijs2005/taskkeeper/internal/server/users"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config      *config.Config
	logger      logging.Logger
	repoManager db.RepositoryManager
	cacheClient *cache.Client
	httpServer  *httpserver.Server
}

func NewApp(cfg *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	rm, err := db.NewPostgresRepositoryManager(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPassword, logger)

	sessionManager := sessions.NewManager(cacheClient, logger, cfg)
	userService := users.NewService(rm.Users(), logger)
	taskService := tasks.NewService(rm.Tasks(), cacheClient, logger, cfg)

	httpServer := httpserver.NewServer(cfg, logger, sessionManager, userService, taskService)

	return &App{
		config:      cfg,
		logger:      logger,
		repoManager: rm,
		cacheClient: cacheClient,
		httpServer:  httpServer,
	}, nil
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

	app.logger.Info(ctx, "Starting app...", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.httpServer.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			app.logger.Error(ctx, "http server error", "error", err)
		}
	case <-ctx.Done():
	}

	app.shutdown()
}

func (app *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	app.logger.Info(ctx, "Shutting down...")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Error(ctx, "http shutdown error", "error", err)
	}

	if err := app.cacheClient.Close(); err != nil {
		app.logger.Error(ctx, "cache close error", "error", err)
	}

	if err := app.repoManager.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
