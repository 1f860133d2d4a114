package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ServicesTotal tracks installed services by lifecycle state
	// (Running/Stopped).
	ServicesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "hive_services_total",
			Help: "Total number of installed services by state",
		},
		[]string{"state"},
	)

	// SandboxPoolSize is the fixed number of sandboxes the pool holds.
	SandboxPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hive_sandbox_pool_size",
			Help: "Configured number of sandboxes in the pool",
		},
	)

	// SandboxPoolInUse is how many sandboxes are currently leased out.
	SandboxPoolInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hive_sandbox_pool_in_use",
			Help: "Number of sandboxes currently leased",
		},
	)

	// SandboxAcquireWaitSeconds times how long Scope blocked waiting
	// for an idle sandbox.
	SandboxAcquireWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hive_sandbox_acquire_wait_seconds",
			Help:    "Time spent waiting to acquire a sandbox from the pool",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SandboxLeaseDuration times a full lease (acquire through
	// Resource Context drain and return), by the operation it ran.
	SandboxLeaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hive_sandbox_lease_duration_seconds",
			Help:    "Duration of a sandbox lease by operation",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// ResourceContextDrainErrorsTotal counts best-effort release
	// failures during a Resource Context drain; these are logged, not
	// propagated to the caller.
	ResourceContextDrainErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hive_rescontext_drain_errors_total",
			Help: "Total resource release errors observed during lease drains",
		},
	)

	// RequestsTotal counts HTTP requests dispatched into services by
	// the front end, by service name and response status.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_requests_total",
			Help: "Total number of requests dispatched to services",
		},
		[]string{"service", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hive_request_duration_seconds",
			Help:    "Request handling duration in seconds by service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	// Service lifecycle operation metrics, one duration histogram per
	// transition.
	ServiceCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hive_service_create_duration_seconds",
			Help:    "Time taken to create a service in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ServiceStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hive_service_start_duration_seconds",
			Help:    "Time taken to run a service's start hook in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ServiceStopDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hive_service_stop_duration_seconds",
			Help:    "Time taken to run a service's stop hook in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ServiceRemoveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hive_service_remove_duration_seconds",
			Help:    "Time taken to remove a service, including local-storage cleanup",
			Buckets: prometheus.DefBuckets,
		},
	)

	PermissionDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hive_permission_denied_total",
			Help: "Total number of PermissionDenied errors by atom kind",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		ServicesTotal,
		SandboxPoolSize,
		SandboxPoolInUse,
		SandboxAcquireWaitSeconds,
		SandboxLeaseDuration,
		ResourceContextDrainErrorsTotal,
		RequestsTotal,
		RequestDuration,
		ServiceCreateDuration,
		ServiceStartDuration,
		ServiceStopDuration,
		ServiceRemoveDuration,
		PermissionDeniedTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
