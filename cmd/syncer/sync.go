package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"review_fetcher/internal/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync synchronously and exit",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().Int64("app", 0, "only sync this app id")
	syncCmd.Flags().String("platform", "", "only sync this platform (ios or android)")
	syncCmd.Flags().Int("limit", 0, "per-source review limit (0 = source maximum)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	appID, _ := cmd.Flags().GetInt64("app")
	platformFlag, _ := cmd.Flags().GetString("platform")
	limit, _ := cmd.Flags().GetInt("limit")

	req := domain.SyncRequest{Limit: limit, Trigger: domain.TriggerManual}
	if appID > 0 {
		req.AppID = &appID
	}
	if platformFlag != "" {
		p, err := domain.ParsePlatform(platformFlag)
		if err != nil {
			return err
		}
		req.Platform = p
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.syncService().Run(ctx, req)
	if err != nil {
		return err
	}

	for _, u := range summary.Units {
		attrs := []any{
			"run_id", summary.RunID,
			"app_id", u.AppID,
			"app_name", u.AppName,
			"platform", u.Platform,
			"status", u.Status,
			"fetched", u.Fetched,
			"inserted", u.Merge.Inserted,
			"duplicates", u.Merge.Duplicates,
		}
		if u.Err != nil {
			attrs = append(attrs, "error", u.Err)
		}
		a.logger.Info("unit result", attrs...)
	}

	a.logger.Info("sync finished",
		"run_id", summary.RunID,
		"duration", summary.Duration,
		"succeeded", summary.Succeeded(),
		"skipped", summary.Skipped(),
		"failed", summary.Failed(),
		"inserted", summary.Inserted(),
		"duplicates", summary.Duplicates(),
	)
	if summary.Failed() > 0 {
		return fmt.Errorf("%d sync units failed", summary.Failed())
	}
	return nil
}
