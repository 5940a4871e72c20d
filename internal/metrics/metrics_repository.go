package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packFetchFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multipacks_pack_fetch_failed_total",
			Help: "Total number of failed pack fetches",
		},
		[]string{"repository"},
	)

	packFetchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multipacks_pack_fetch_count_total",
			Help: "Total number of pack fetches",
		},
		[]string{"repository"},
	)

	packFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multipacks_pack_fetch_duration_seconds",
			Help:    "Pack fetch duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"repository"},
	)

	gitSyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multipacks_git_sync_duration_seconds",
			Help:    "Git repository sync duration in seconds",
			Buckets: []float64{0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"repo"},
	)

	gitSyncFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multipacks_git_sync_failed_total",
			Help: "Total number of failed git repository syncs",
		},
		[]string{"repo"},
	)
)

func PackFetched(repository string, start time.Time) {
	packFetchCount.WithLabelValues(repository).Inc()
	packFetchDuration.WithLabelValues(repository).Observe(time.Since(start).Seconds())
}

func PackFetchFailed(repository string) {
	packFetchCount.WithLabelValues(repository).Inc()
	packFetchFailed.WithLabelValues(repository).Inc()
}

func GitSyncSucceeded(repo string, start time.Time) {
	gitSyncDuration.WithLabelValues(repo).Observe(time.Since(start).Seconds())
}

func GitSyncFailed(repo string) {
	gitSyncFailed.WithLabelValues(repo).Inc()
}
