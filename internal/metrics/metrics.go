// Package metrics exposes the pipeline's prometheus instrumentation on a
// process-local registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var registry = prometheus.NewRegistry()

// Registry returns the registry served at /metrics.
func Registry() *prometheus.Registry {
	return registry
}

var (
	jobsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chessmirror",
		Subsystem: "sched",
		Name:      "jobs_submitted_total",
		Help:      "Analysis jobs accepted for execution.",
	})
	jobsCoalesced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chessmirror",
		Subsystem: "sched",
		Name:      "jobs_coalesced_total",
		Help:      "Submissions coalesced into an already-live job.",
	})
	jobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chessmirror",
		Subsystem: "sched",
		Name:      "jobs_completed_total",
		Help:      "Jobs reaching a terminal status.",
	}, []string{"status"})
	gamesAnalyzed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chessmirror",
		Subsystem: "sched",
		Name:      "games_analyzed_total",
		Help:      "Games fully analyzed and scored.",
	})
	gamesFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chessmirror",
		Subsystem: "sched",
		Name:      "games_failed_total",
		Help:      "Games that failed within a job.",
	})
	engineEvals = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chessmirror",
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Engine position evaluations performed.",
	})
	engineTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chessmirror",
		Subsystem: "engine",
		Name:      "timeouts_total",
		Help:      "Evaluations that exceeded the move-time budget.",
	})
	evalDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chessmirror",
		Subsystem: "engine",
		Name:      "evaluation_seconds",
		Help:      "Wall time per engine evaluation.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chessmirror",
		Subsystem: "sched",
		Name:      "queue_depth",
		Help:      "Jobs waiting for a free worker.",
	})
)

func init() {
	registry.MustRegister(
		jobsSubmitted,
		jobsCoalesced,
		jobsCompleted,
		gamesAnalyzed,
		gamesFailed,
		engineEvals,
		engineTimeouts,
		evalDuration,
		queueDepth,
	)
}

func RecordJobSubmitted()  { jobsSubmitted.Inc() }
func RecordJobCoalesced()  { jobsCoalesced.Inc() }
func RecordGameAnalyzed()  { gamesAnalyzed.Inc() }
func RecordGameFailed()    { gamesFailed.Inc() }
func RecordEngineEval()    { engineEvals.Inc() }
func RecordEngineTimeout() { engineTimeouts.Inc() }

// RecordJobCompleted counts a terminal status by name.
func RecordJobCompleted(status string) { jobsCompleted.WithLabelValues(status).Inc() }

// RecordEvalDuration observes one evaluation's wall time in seconds.
func RecordEvalDuration(seconds float64) { evalDuration.Observe(seconds) }

// SetQueueDepth publishes the current scheduler queue length.
func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }
