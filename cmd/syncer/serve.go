package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"review_fetcher/internal/api"
	"review_fetcher/internal/scheduler"
	"review_fetcher/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review scheduler and the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	loc, err := time.LoadLocation(cfg.Sync.Timezone)
	if err != nil {
		return err
	}

	sched, err := scheduler.NewScheduler(a.syncService(), scheduler.Config{
		RunAt:         cfg.Sync.RunAt,
		Location:      loc,
		Interval:      cfg.Sync.Interval,
		InitialDelay:  cfg.Sync.InitialDelay,
		Limit:         cfg.Sync.Limit,
		OnDemandLimit: cfg.Sync.OnDemandLimit,
		RunTimeout:    cfg.Sync.RunTimeout,
	}, a.logger)
	if err != nil {
		return err
	}

	appService := service.NewAppService(a.apps, a.reviews, a.states, a.tx, a.logger)
	server := &http.Server{
		Addr: cfg.HTTP.Addr,
		Handler: api.NewRouter(
			api.NewHandler(appService, sched, a.logger),
			api.RouterConfig{AuthCode: cfg.HTTP.AuthCode, RequestTimeout: cfg.HTTP.RequestTimeout},
			a.logger,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	case err = <-errCh:
		a.logger.Error("service error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http server shutdown", "error", err)
	}
	sched.Stop()

	a.logger.Info("syncer stopped")
	return err
}
