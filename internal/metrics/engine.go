package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cutPlans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cutter",
		Name:      "plans_total",
		Help:      "Cut plans by chosen strategy",
	}, []string{"operation", "strategy"})

	segments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cutter",
		Name:      "segments_total",
		Help:      "Segments executed by kind and result",
	}, []string{"kind", "result"})

	hardwareFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "encoder",
		Name:      "hardware_fallbacks_total",
		Help:      "Software retries after a classified hardware failure",
	}, []string{"encoder", "result"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Working copy cache lookups by outcome",
	}, []string{"result"})

	cacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Working copies currently tracked",
	})

	previewBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "preview",
		Name:      "builds_total",
		Help:      "Preview builds by final state",
	}, []string{"state"})

	previewDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "preview",
		Name:      "build_duration_seconds",
		Help:      "Wall time of preview builds",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})
)

// RecordPlan counts a trim or split plan.
func RecordPlan(operation, strategy string) {
	cutPlans.WithLabelValues(operation, strategy).Inc()
}

// RecordSegment counts one executed segment.
func RecordSegment(kind string, ok bool) {
	segments.WithLabelValues(kind, result(ok)).Inc()
}

// RecordHardwareFallback counts a software retry and whether it succeeded.
func RecordHardwareFallback(encoder string, ok bool) {
	hardwareFallbacks.WithLabelValues(encoder, result(ok)).Inc()
}

// RecordCacheLookup counts a lookup; outcome is hit, miss or stale.
func RecordCacheLookup(outcome string) {
	cacheLookups.WithLabelValues(outcome).Inc()
}

// SetCacheEntries sets the number of tracked working copies.
func SetCacheEntries(n int) {
	cacheEntries.Set(float64(n))
}

// RecordPreviewBuild counts a finished build and its duration.
func RecordPreviewBuild(state string, elapsed time.Duration) {
	previewBuilds.WithLabelValues(state).Inc()
	previewDuration.Observe(elapsed.Seconds())
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
