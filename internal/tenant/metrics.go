package tenant

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
	outcomeRejected   = "rejected"
)

var (
	unitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vitalia",
		Subsystem: "tenant",
		Name:      "units_total",
		Help:      "Units of work executed under a tenant context, labeled by outcome.",
	}, []string{"outcome"})

	unitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "vitalia",
		Subsystem: "tenant",
		Name:      "unit_duration_seconds",
		Help:      "Time from connection checkout to tenant context teardown.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	cleanupFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vitalia",
		Subsystem: "tenant",
		Name:      "cleanup_failures_total",
		Help:      "Units of work whose rollback failed and whose connection was destroyed.",
	})

	dirtyReleases = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "vitalia",
		Subsystem: "tenant",
		Name:      "dirty_releases_total",
		Help:      "Connections discarded on release because a transaction was still open.",
	})
)

func init() {
	prometheus.MustRegister(unitsTotal, unitDuration, cleanupFailures, dirtyReleases)
}

func observeUnit(outcome string, elapsed time.Duration) {
	unitsTotal.WithLabelValues(outcome).Inc()
	if outcome != outcomeRejected {
		unitDuration.Observe(elapsed.Seconds())
	}
}
