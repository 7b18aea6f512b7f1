// Package server wires the reference backend: configuration, logging, the
// Postgres connection and migrations, and the HTTP server with graceful
// shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/buildlog/internal/logging"
	"github.com/dmitrijs2005/buildlog/internal/server/config"
	"github.com/dmitrijs2005/buildlog/internal/server/httpapi"
	"github.com/dmitrijs2005/buildlog/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/buildlog/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	rm     repomanager.RepositoryManager
	srv    *http.Server
}

func NewApp(c *config.Config) (*App, error) {
	logger, err := newLogger(c.LogBackend)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	svc := services.NewProjectService(db, rm, logger)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(svc, []byte(c.SecretKey), logger)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		rm:     rm,
		srv:    &http.Server{Addr: c.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second},
	}, nil
}

func newLogger(backend string) (logging.Logger, error) {
	switch backend {
	case config.LogBackendZap:
		z, err := logging.NewZap("production")
		if err != nil {
			return nil, err
		}
		return z, nil
	default:
		return logging.NewJSONLogger(os.Stdout, slog.LevelInfo), nil
	}
}

// Run migrates the schema and serves until ctx ends or SIGINT/SIGTERM
// arrives, then drains in-flight requests.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	defer app.close()

	app.logger.Info(ctx, "Starting app...", "addr", app.config.HTTPAddr)

	if err := app.db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}
	if err := app.rm.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations error: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := app.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	app.logger.Info(context.Background(), "Shutting down...")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

func (app *App) close() {
	if err := app.db.Close(); err != nil {
		app.logger.Error(context.Background(), "db close error", "error", err)
	}
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}
