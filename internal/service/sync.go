package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"review_fetcher/internal/domain"
	"review_fetcher/internal/metrics"
)

type SyncService struct {
	apps      AppStore
	sources   map[domain.Platform]ReviewSource
	merger    *Merger
	syncState SyncStateStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewSyncService(
	apps AppStore,
	sources []ReviewSource,
	merger *Merger,
	syncState SyncStateStore,
	logger *slog.Logger,
) *SyncService {
	byPlatform := make(map[domain.Platform]ReviewSource, len(sources))
	for _, src := range sources {
		byPlatform[src.Platform()] = src
	}
	return &SyncService{
		apps:      apps,
		sources:   byPlatform,
		merger:    merger,
		syncState: syncState,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes one sync run. It fails only when the target apps cannot be
// resolved; every per-unit failure is recorded in the summary instead.
func (s *SyncService) Run(ctx context.Context, req domain.SyncRequest) (*domain.RunSummary, error) {
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}
	summary := &domain.RunSummary{
		RunID:     uuid.NewString(),
		Request:   req,
		StartedAt: s.now(),
	}
	logger := s.logger.With("run_id", summary.RunID, "trigger", req.Trigger)

	logger.Info("starting sync run",
		"app_filter", req.AppID,
		"platform_filter", req.Platform,
		"limit", req.Limit,
	)

	apps, err := s.resolveApps(ctx, req.AppID)
	if err != nil {
		return nil, fmt.Errorf("resolve apps: %w", err)
	}

	for i := range apps {
		app := &apps[i]
		for _, platform := range domain.Platforms {
			if !app.Platform.Includes(platform) {
				continue
			}
			if req.Platform != "" && req.Platform != platform {
				continue
			}

			var unit domain.UnitResult
			if err := ctx.Err(); err != nil {
				unit = domain.UnitResult{
					AppID:    app.ID,
					AppName:  app.Name,
					Platform: platform,
					Status:   domain.UnitFailed,
					Err:      err,
				}
			} else {
				unit = s.syncUnit(ctx, logger, app, platform, req.Limit)
			}

			summary.Units = append(summary.Units, unit)
			metrics.SyncUnits.WithLabelValues(string(platform), string(unit.Status)).Inc()
		}
	}

	summary.Duration = time.Since(summary.StartedAt)
	metrics.SyncRuns.WithLabelValues(string(req.Trigger)).Inc()
	metrics.ObserveSyncDuration(summary.StartedAt)

	logger.Info("sync run completed",
		"apps", len(apps),
		"succeeded", summary.Succeeded(),
		"skipped", summary.Skipped(),
		"failed", summary.Failed(),
		"inserted", summary.Inserted(),
		"duplicates", summary.Duplicates(),
		"duration", summary.Duration,
	)

	return summary, nil
}

func (s *SyncService) resolveApps(ctx context.Context, appID *int64) ([]domain.TrackedApp, error) {
	if appID == nil {
		return s.apps.List(ctx)
	}
	app, err := s.apps.GetByID(ctx, *appID)
	if err != nil {
		return nil, err
	}
	return []domain.TrackedApp{*app}, nil
}

func (s *SyncService) syncUnit(ctx context.Context, runLogger *slog.Logger, app *domain.TrackedApp, platform domain.Platform, limit int) domain.UnitResult {
	start := time.Now()
	unit := domain.UnitResult{
		AppID:    app.ID,
		AppName:  app.Name,
		Platform: platform,
	}
	logger := runLogger.With("app_id", app.ID, "app_name", app.Name, "platform", platform)

	externalID := app.StoreID(platform)
	if externalID == "" {
		unit.Status = domain.UnitSkipped
		logger.Info("no store id configured, skipping")
		return unit
	}

	source, ok := s.sources[platform]
	if !ok {
		unit.Status = domain.UnitSkipped
		logger.Warn("no review source registered for platform, skipping")
		return unit
	}

	effective := EffectiveLimit(limit, source.MaxReviews())
	batch, err := source.FetchReviews(ctx, externalID, app.Locale(platform), effective)
	if err != nil {
		unit.Status = domain.UnitFailed
		unit.Err = err
		unit.Duration = time.Since(start)
		logger.Error("fetch failed", "external_id", externalID, "error", err)
		s.recordState(ctx, logger, unit)
		return unit
	}
	if len(batch) > effective {
		logger.Debug("trimming over-returned batch", "returned", len(batch), "limit", effective)
		batch = batch[:effective]
	}
	unit.Fetched = len(batch)

	unit.Merge, err = s.merger.Merge(ctx, app.ID, platform, batch)
	unit.Duration = time.Since(start)
	if err != nil {
		unit.Status = domain.UnitFailed
		unit.Err = err
		logger.Error("merge failed", "error", err)
		s.recordState(ctx, logger, unit)
		return unit
	}
	unit.Status = domain.UnitSucceeded

	logger.Info("unit synced",
		"fetched", unit.Fetched,
		"inserted", unit.Merge.Inserted,
		"duplicates", unit.Merge.Duplicates,
		"malformed", unit.Merge.Malformed,
		"failed_inserts", unit.Merge.Failed,
		"duration", unit.Duration,
	)
	s.recordState(ctx, logger, unit)
	return unit
}

// recordState updates the bookkeeping row for a fetched unit. Failures are logged only.
func (s *SyncService) recordState(ctx context.Context, logger *slog.Logger, unit domain.UnitResult) {
	if s.syncState == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}

	state, err := s.syncState.Get(ctx, unit.AppID, unit.Platform)
	if err != nil {
		logger.Warn("failed to load sync state", "error", err)
		return
	}

	now := s.now().UTC()
	state.AppID = unit.AppID
	state.Platform = unit.Platform
	state.UpdatedAt = now
	if unit.Err != nil {
		msg := unit.Err.Error()
		state.LastError = &msg
	} else {
		state.LastSyncedAt = &now
		state.LastInserted = int64(unit.Merge.Inserted)
		state.TotalInserted += int64(unit.Merge.Inserted)
		state.LastError = nil
	}

	if err := s.syncState.Update(ctx, state); err != nil {
		logger.Warn("failed to update sync state", "error", err)
	}
}

// EffectiveLimit caps a caller limit at the source maximum. Zero or negative means the maximum.
func EffectiveLimit(limit, sourceMax int) int {
	if limit <= 0 || limit > sourceMax {
		return sourceMax
	}
	return limit
}
