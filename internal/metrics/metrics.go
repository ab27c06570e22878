// Package metrics provides Prometheus metrics for execcore, trimmed to the
// execution-only subsystem the core actually owns.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once     sync.Once
	instance *Metrics
)

// Metrics holds every Prometheus collector execcore registers.
type Metrics struct {
	ExecutionsTotal      *prometheus.CounterVec
	ExecutionDuration    *prometheus.HistogramVec
	ExecutionsInFlight   prometheus.Gauge
	ContainerCPUUsage    *prometheus.GaugeVec
	ContainerMemoryUsage *prometheus.GaugeVec
	ImagePullsTotal      *prometheus.CounterVec
	ReaperSweptTotal     *prometheus.CounterVec
	ValidationsTotal     *prometheus.CounterVec
}

// Get returns the process-wide Metrics singleton, registering collectors
// with the default registry on first use.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
	})
	return instance
}

func newMetrics() *Metrics {
	m := &Metrics{}

	m.ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "execcore",
			Subsystem: "execution",
			Name:      "total",
			Help:      "Total number of code executions by language and terminal status",
		},
		[]string{"language", "status"},
	)

	m.ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "execcore",
			Subsystem: "execution",
			Name:      "duration_seconds",
			Help:      "Code execution wall-clock duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"language"},
	)

	m.ExecutionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "execcore",
			Subsystem: "execution",
			Name:      "in_flight",
			Help:      "Number of code executions currently running",
		},
	)

	m.ContainerCPUUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "execcore",
			Subsystem: "container",
			Name:      "cpu_usage_percent",
			Help:      "Container CPU usage percentage",
		},
		[]string{"container_id", "language"},
	)

	m.ContainerMemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "execcore",
			Subsystem: "container",
			Name:      "memory_usage_bytes",
			Help:      "Container memory usage in bytes",
		},
		[]string{"container_id", "language"},
	)

	m.ImagePullsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "execcore",
			Subsystem: "image",
			Name:      "pulls_total",
			Help:      "Total number of image pulls by image and outcome, post pull-barrier dedup",
		},
		[]string{"image", "status"},
	)

	m.ReaperSweptTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "execcore",
			Subsystem: "reaper",
			Name:      "swept_total",
			Help:      "Total number of orphaned sandboxes removed, by sweep kind",
		},
		[]string{"sweep"},
	)

	m.ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "execcore",
			Subsystem: "validate",
			Name:      "total",
			Help:      "Total number of syntax validations by language and result",
		},
		[]string{"language", "result"},
	)

	return m
}

// ExecutionStarted bumps the in-flight gauge when an execution's state
// machine begins.
func (m *Metrics) ExecutionStarted() {
	m.ExecutionsInFlight.Inc()
}

// ExecutionFinished decrements the in-flight gauge when an execution
// reaches its terminal state, on any path.
func (m *Metrics) ExecutionFinished() {
	m.ExecutionsInFlight.Dec()
}

// ObserveExecution records a finished execution's duration and status.
func (m *Metrics) ObserveExecution(language, status string, seconds float64) {
	m.ExecutionsTotal.WithLabelValues(language, status).Inc()
	m.ExecutionDuration.WithLabelValues(language).Observe(seconds)
}

// ObserveImagePull records the outcome of an ensureImage call, after
// image-pull-barrier dedup: concurrent first-uses of a cold image only
// bump this once, not once per waiter.
func (m *Metrics) ObserveImagePull(image, status string) {
	m.ImagePullsTotal.WithLabelValues(image, status).Inc()
}

// ObserveReap records one sandbox removed by the reaper, tagged by which
// sweep found it ("internal" or "external").
func (m *Metrics) ObserveReap(sweep string) {
	m.ReaperSweptTotal.WithLabelValues(sweep).Inc()
}

// ObserveValidation records the result of a validate() call.
func (m *Metrics) ObserveValidation(language, result string) {
	m.ValidationsTotal.WithLabelValues(language, result).Inc()
}

// ObserveContainerUsage publishes a live sandbox's CPU/memory gauges,
// queried fresh from the Docker daemon on every stats() call — never a
// cached value.
func (m *Metrics) ObserveContainerUsage(containerID, language string, cpuPercent float64, memoryBytes uint64) {
	m.ContainerCPUUsage.WithLabelValues(containerID, language).Set(cpuPercent)
	m.ContainerMemoryUsage.WithLabelValues(containerID, language).Set(float64(memoryBytes))
}
