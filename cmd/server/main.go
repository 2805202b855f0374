package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpattn/bugboard/internal/api"
	"github.com/rpattn/bugboard/internal/config"
	"github.com/rpattn/bugboard/internal/db"
	"github.com/rpattn/bugboard/internal/export"
	"github.com/rpattn/bugboard/internal/imagelink"
	"github.com/rpattn/bugboard/internal/ingestion"
	"github.com/rpattn/bugboard/internal/logging"
	"github.com/rpattn/bugboard/internal/middleware"
	"github.com/rpattn/bugboard/internal/normalize"
	"github.com/rpattn/bugboard/internal/query"
	"github.com/rpattn/bugboard/internal/repository"

	"github.com/rs/cors"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", ".", "directory containing config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// storage is the repository set for the configured driver.
type storage struct {
	bugs   repository.BugRepository
	logs   repository.IngestionLogRepository
	health func(ctx context.Context) error
	close  func()
}

func openStorage(ctx context.Context, cfg db.Config, logger *zap.Logger) (*storage, error) {
	logger = logging.Component(logger, "db")

	switch cfg.Driver {
	case db.DriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		if err := db.MigrateSQLite(conn, logger); err != nil {
			conn.Close()
			return nil, err
		}
		return &storage{
			bugs:   repository.NewSQLiteBugRepository(conn),
			logs:   repository.NewSQLiteIngestionLogRepository(conn),
			health: conn.PingContext,
			close:  func() { conn.Close() },
		}, nil
	default:
		conn, err := db.NewConnection(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := db.MigratePostgres(conn.Pool, logger); err != nil {
			conn.Close()
			return nil, err
		}
		return &storage{
			bugs:   repository.NewBugRepository(conn.Pool, logger),
			logs:   repository.NewIngestionLogRepository(conn.Pool),
			health: conn.Pool.Ping,
			close:  conn.Close,
		}, nil
	}
}

func run(cfg config.Config, configPath string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if used := config.ConfigFileUsed(configPath); used != "" {
		logger.Info("loaded config file", zap.String("path", used))
	}

	normalizer, err := normalize.LoadFile(cfg.Normalization.RulesFile)
	if err != nil {
		return fmt.Errorf("failed to load normalization rules: %w", err)
	}
	engine := query.NewEngine(normalizer)

	store, err := openStorage(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer store.close()

	server := api.NewServer(api.Deps{
		Bugs:          store.bugs,
		IngestionLogs: store.logs,
		Engine:        engine,
		Ingestion: ingestion.NewService(store.bugs, store.logs,
			ingestion.WithLogger(logging.Component(logger, "ingestion")),
			ingestion.WithConcurrency(cfg.Ingestion.Concurrency),
			ingestion.WithBatchSize(cfg.Ingestion.BatchSize),
		),
		Exporter:       export.NewService(export.WithEngine(engine), export.WithLogger(logging.Component(logger, "export"))),
		Images:         imagelink.NewValidator(nil, cfg.ImageLink.Timeout, logging.Component(logger, "imagelink")),
		Logger:         logging.Component(logger, "api"),
		MaxUploadBytes: cfg.Ingestion.MaxUploadBytes,
		Health:         store.health,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Device-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
	})

	handler := corsHandler.Handler(
		middleware.Recoverer(logger)(
			middleware.LoggingMiddleware(logging.Component(logger, "http"))(server.Routes()),
		),
	)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting bug dashboard server",
			zap.String("addr", cfg.Server.Addr),
			zap.String("driver", cfg.Database.Driver),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("server exited")
	return nil
}
