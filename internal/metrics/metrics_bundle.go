package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	bundleBuildFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multipacks_bundle_build_failed_total",
			Help: "Number of times a bundle has failed to build",
		},
		[]string{"pack", "error_type"},
	)

	bundleBuildCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "multipacks_bundle_build_count_total",
			Help: "Total number of times a bundle has been built",
		},
	)

	bundleBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "multipacks_bundle_build_duration_seconds",
			Help:    "Bundle build duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1, 1.5, 2, 5, 10, 30, 60},
		},
		[]string{"pack"},
	)

	bundleWarnings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "multipacks_bundle_warnings_total",
			Help: "Number of errors downgraded to warnings while bundling",
		},
		[]string{"pack"},
	)
)

func BundleBuildSucceeded(pack string, start time.Time, warnings int) {
	bundleBuildCount.Inc()
	bundleBuildDuration.WithLabelValues(pack).Observe(time.Since(start).Seconds())
	if warnings > 0 {
		bundleWarnings.WithLabelValues(pack).Add(float64(warnings))
	}
}

func BundleBuildFailed(pack string, errorType string) {
	bundleBuildCount.Inc()
	bundleBuildFailed.WithLabelValues(pack, errorType).Inc()
}
