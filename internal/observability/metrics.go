package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "corehost"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

var (
	registerOnce sync.Once

	moduleInits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "init_total",
			Help:      "Module init attempts by role and outcome.",
		},
		[]string{"role", "outcome"},
	)
	moduleInitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "module",
			Name:      "init_duration_seconds",
			Help:      "Module init duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"role"},
	)
	unitRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "unit",
			Name:      "runs_total",
			Help:      "Execution unit runs by role and outcome.",
		},
		[]string{"role", "outcome"},
	)
	unitRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "unit",
			Name:      "run_duration_seconds",
			Help:      "Execution unit wall time in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		},
		[]string{"role"},
	)
	validationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validation",
			Name:      "failures_total",
			Help:      "Module files that failed the open probe.",
		},
		[]string{"role"},
	)
	extensions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extensions",
			Help:      "Extension files by load state after the last scan.",
		},
		[]string{"state"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			moduleInits, moduleInitDuration,
			unitRuns, unitRunDuration,
			validationFailures, extensions,
			httpRequests, httpDuration,
		)
	})
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

func RecordModuleInit(role string, duration time.Duration, err error) {
	RegisterMetrics()
	moduleInits.WithLabelValues(role, outcome(err)).Inc()
	moduleInitDuration.WithLabelValues(role).Observe(duration.Seconds())
}

func RecordUnitRun(role string, duration time.Duration, err error) {
	RegisterMetrics()
	unitRuns.WithLabelValues(role, outcome(err)).Inc()
	unitRunDuration.WithLabelValues(role).Observe(duration.Seconds())
}

func RecordValidationFailure(role string) {
	RegisterMetrics()
	validationFailures.WithLabelValues(role).Inc()
}

// SetExtensions publishes the counts of the last extension scan.
func SetExtensions(found, opened, loaded int) {
	RegisterMetrics()
	extensions.WithLabelValues("found").Set(float64(found))
	extensions.WithLabelValues("opened").Set(float64(opened))
	extensions.WithLabelValues("loaded").Set(float64(loaded))
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}
