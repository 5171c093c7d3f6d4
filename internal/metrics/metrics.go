package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_fetcher_sync_runs_total",
		Help: "Total sync runs by trigger",
	}, []string{"trigger"})
	SyncUnits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_fetcher_sync_units_total",
		Help: "Processed (app, platform) units by outcome",
	}, []string{"platform", "status"})
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "review_fetcher_sync_duration_seconds",
		Help:    "Sync run duration seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600},
	})
	Reviews = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_fetcher_reviews_total",
		Help: "Merged review records by outcome",
	}, []string{"platform", "outcome"})
	SourceRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "review_fetcher_source_retries_total",
		Help: "Total storefront request retries",
	}, []string{"source"})
	SkippedTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "review_fetcher_scheduler_skipped_ticks_total",
		Help: "Scheduled runs skipped because another run held the lock",
	})
)

func init() {
	prometheus.MustRegister(SyncRuns, SyncUnits, SyncDuration, Reviews, SourceRetries, SkippedTicks)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSyncDuration records a run duration
func ObserveSyncDuration(start time.Time) {
	SyncDuration.Observe(time.Since(start).Seconds())
}

func IncSourceRetry(source string) { SourceRetries.WithLabelValues(source).Inc() }

// AddReviews adds n to the counter for outcome; zero is a no-op.
func AddReviews(platform, outcome string, n int) {
	if n > 0 {
		Reviews.WithLabelValues(platform, outcome).Add(float64(n))
	}
}
