package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"review_fetcher/internal/config"
	"review_fetcher/internal/publisher"
	"review_fetcher/internal/service"
	"review_fetcher/internal/source/appstore"
	"review_fetcher/internal/source/playstore"
	"review_fetcher/internal/storage/postgres"
	"review_fetcher/internal/storage/sqlite"
)

// app holds everything both commands share.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	db        *sqlx.DB
	publisher service.Publisher

	apps    service.AppStore
	reviews service.ReviewStore
	states  service.SyncStateStore
	tx      service.TransactionManager
}

func setup(ctx context.Context, cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, logger: setupLogger(cfg)}

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	if cfg.RabbitMQ.Enabled {
		pub, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, a.logger)
		if err != nil {
			a.db.Close()
			return nil, err
		}
		a.publisher = pub
	}

	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	switch a.cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(ctx, a.cfg.Database.Path)
		if err != nil {
			return err
		}
		a.db = db
		a.apps = sqlite.NewAppStore(db)
		a.reviews = sqlite.NewReviewStore(db)
		a.states = sqlite.NewSyncStateStore(db)
		a.tx = sqlite.NewTransactionManager(db)
	default:
		db, err := sqlx.ConnectContext(ctx, "postgres", a.cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.apps = postgres.NewAppStore(db)
		a.reviews = postgres.NewReviewStore(db)
		a.states = postgres.NewSyncStateStore(db)
		a.tx = postgres.NewTransactionManager(db)
	}

	a.logger.Info("connected to database", "driver", a.cfg.Database.Driver)
	return nil
}

func (a *app) syncService() *service.SyncService {
	as := a.cfg.Sources.AppStore
	ps := a.cfg.Sources.PlayStore

	sources := []service.ReviewSource{
		appstore.New(appstore.Config{
			BaseURL:        as.BaseURL,
			UserAgent:      as.UserAgent,
			Timeout:        as.Timeout,
			MaxReviews:     as.MaxReviews,
			MaxAttempts:    as.Retry.MaxAttempts,
			InitialBackoff: as.Retry.InitialBackoff,
			MaxBackoff:     as.Retry.MaxBackoff,
			RPS:            as.Rate.RPS,
			Burst:          as.Rate.Burst,
		}, a.logger),
		playstore.New(playstore.Config{
			BaseURL:        ps.BaseURL,
			UserAgent:      ps.UserAgent,
			Timeout:        ps.Timeout,
			MaxReviews:     ps.MaxReviews,
			PageSize:       ps.PageSize,
			MaxAttempts:    ps.Retry.MaxAttempts,
			InitialBackoff: ps.Retry.InitialBackoff,
			MaxBackoff:     ps.Retry.MaxBackoff,
			RPS:            ps.Rate.RPS,
			Burst:          ps.Rate.Burst,
		}, a.logger),
	}

	merger := service.NewMerger(a.reviews, a.publisher, a.logger)
	return service.NewSyncService(a.apps, sources, merger, a.states, a.logger)
}

func (a *app) Close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("failed to close publisher", "error", err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}

func setupLogger(cfg *config.Config) *slog.Logger {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}
