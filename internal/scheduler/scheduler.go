package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"review_fetcher/internal/domain"
	"review_fetcher/internal/metrics"
)

// Syncer runs one orchestrator pass.
type Syncer interface {
	Run(ctx context.Context, req domain.SyncRequest) (*domain.RunSummary, error)
}

type Config struct {
	// RunAt is the daily "HH:MM" fire time. Empty means every Interval.
	RunAt         string
	Location      *time.Location
	Interval      time.Duration
	InitialDelay  time.Duration
	Limit         int
	OnDemandLimit int
	RunTimeout    time.Duration
}

// Scheduler owns the recurring timer and the process-wide run-lock.
// Every run, recurring or on-demand, holds the lock for its whole duration.
type Scheduler struct {
	syncer Syncer
	cfg    Config
	logger *slog.Logger

	lock chan struct{}

	mu       sync.Mutex
	stopped  bool
	wg       sync.WaitGroup
	stopCtx  context.Context
	stopFunc context.CancelFunc

	hour, minute int
	now          func() time.Time
}

func NewScheduler(syncer Syncer, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 24 * time.Hour
	}

	s := &Scheduler{
		syncer: syncer,
		cfg:    cfg,
		logger: logger,
		lock:   make(chan struct{}, 1),
		now:    time.Now,
	}

	if cfg.RunAt != "" {
		at, err := time.Parse("15:04", cfg.RunAt)
		if err != nil {
			return nil, fmt.Errorf("parse run_at %q: %w", cfg.RunAt, err)
		}
		s.hour, s.minute = at.Hour(), at.Minute()
	}

	s.stopCtx, s.stopFunc = context.WithCancel(context.Background())
	return s, nil
}

// Start blocks running the recurring schedule until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	next := s.firstRun(s.now())
	s.logger.Info("scheduler started",
		"run_at", s.cfg.RunAt,
		"timezone", s.cfg.Location.String(),
		"interval", s.cfg.Interval,
		"first_run", next,
	)

	for {
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-s.stopCtx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return nil
		case <-timer.C:
			s.runScheduled(ctx)
			next = s.nextRun(next)
			s.logger.Debug("next scheduled run", "at", next)
		}
	}
}

// Stop rejects new on-demand runs, cancels in-flight ones and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.stopFunc()
	s.wg.Wait()
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	select {
	case s.lock <- struct{}{}:
	default:
		metrics.SkippedTicks.Inc()
		s.logger.Warn("previous run still in progress, skipping scheduled run")
		return
	}
	defer func() { <-s.lock }()

	s.execute(ctx, domain.SyncRequest{Limit: s.cfg.Limit, Trigger: domain.TriggerScheduled})
}

// RunNow runs synchronously, waiting for the run-lock if another run holds it.
func (s *Scheduler) RunNow(ctx context.Context, req domain.SyncRequest) (*domain.RunSummary, error) {
	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.stopCtx.Done():
		return nil, domain.ErrSchedulerStopped
	}
	defer func() { <-s.lock }()

	runCtx, cancel := s.runContext(ctx)
	defer cancel()
	return s.syncer.Run(runCtx, req)
}

// StartFullSync queues a run over the selected apps and platforms and returns at once.
// A nil appID means every tracked app; an empty platform means both.
func (s *Scheduler) StartFullSync(appID *int64, platform domain.Platform) error {
	return s.dispatch(domain.SyncRequest{
		AppID:    appID,
		Platform: platform,
		Trigger:  domain.TriggerFull,
	})
}

// StartIncrementalSync queues a bounded run for one app. A non-positive limit uses the on-demand default.
func (s *Scheduler) StartIncrementalSync(appID int64, limit int) error {
	if limit <= 0 {
		limit = s.cfg.OnDemandLimit
	}
	return s.dispatch(domain.SyncRequest{
		AppID:   &appID,
		Limit:   limit,
		Trigger: domain.TriggerIncremental,
	})
}

func (s *Scheduler) dispatch(req domain.SyncRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return domain.ErrSchedulerStopped
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case s.lock <- struct{}{}:
		case <-s.stopCtx.Done():
			s.logger.Info("dropping queued sync, scheduler stopping", "trigger", req.Trigger)
			return
		}
		defer func() { <-s.lock }()

		s.execute(s.stopCtx, req)
	}()

	s.logger.Info("sync accepted", "trigger", req.Trigger, "app_id", req.AppID, "platform", req.Platform, "limit", req.Limit)
	return nil
}

// execute runs req under the per-run timeout. The caller holds the lock.
func (s *Scheduler) execute(ctx context.Context, req domain.SyncRequest) {
	runCtx, cancel := s.runContext(ctx)
	defer cancel()

	summary, err := s.syncer.Run(runCtx, req)
	if err != nil {
		s.logger.Error("sync failed", "trigger", req.Trigger, "error", err)
		return
	}
	s.logger.Debug("sync finished", "run_id", summary.RunID, "trigger", req.Trigger)
}

// runContext bounds a run by RunTimeout and cancels it when the scheduler stops.
func (s *Scheduler) runContext(parent context.Context) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.cfg.RunTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, s.cfg.RunTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	stop := context.AfterFunc(s.stopCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Scheduler) firstRun(start time.Time) time.Time {
	earliest := start.Add(s.cfg.InitialDelay)
	if s.cfg.RunAt == "" {
		return earliest
	}
	return s.nextDaily(earliest)
}

func (s *Scheduler) nextRun(prev time.Time) time.Time {
	from := prev
	if now := s.now(); now.After(from) {
		from = now
	}
	if s.cfg.RunAt == "" {
		next := prev.Add(s.cfg.Interval)
		for !next.After(from) {
			next = next.Add(s.cfg.Interval)
		}
		return next
	}
	return s.nextDaily(from.Add(time.Nanosecond))
}

// nextDaily returns the first RunAt occurrence at or after from, in the configured location.
func (s *Scheduler) nextDaily(from time.Time) time.Time {
	local := from.In(s.cfg.Location)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.cfg.Location)
	if candidate.Before(from) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.cfg.Location)
	}
	return candidate
}
