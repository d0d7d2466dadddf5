// Package server initializes and runs the application server: database,
// migrations, event sink, services, and the HTTP API, with graceful shutdown
// on OS signals.
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

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/mvogonkachristophe0112/privora12-sub002/internal/events"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/logging"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/config"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/httpapi"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/repositories/repomanager"
	"github.com/mvogonkachristophe0112/privora12-sub002/internal/server/services"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	sink   events.Sink

	userService *services.UserService
	fileService *services.FileService
	ledger      *services.LedgerService
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	// Kafka is optional: with no brokers configured, share events go to the
	// log instead.
	var sink events.Sink
	if len(cfg.KafkaBrokers) > 0 {
		sink = events.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	} else {
		sink = events.NewLogSink(logger)
	}

	ledger := services.NewLedgerService(db, repos, sink, logger)
	blobs := services.NewBlobStore(cfg)
	fileService := services.NewFileService(db, repos, blobs, ledger, sink, cfg, logger)
	userService := services.NewUserService(db, repos, ledger, cfg, logger)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		sink:        sink,
		userService: userService,
		fileService: fileService,
		ledger:      ledger,
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

// Run starts the HTTP server and blocks until the context is cancelled or
// the server fails, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	router := httpapi.NewRouter(app.userService, app.fileService, app.ledger, app.config, app.logger)
	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "starting http server", "addr", app.config.EndpointAddrHTTP)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "shutdown error", "error", err)
	}

	if closer, ok := app.sink.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			app.logger.Error(shutdownCtx, "sink close error", "error", err)
		}
	}
	return app.db.Close()
}
