// Package metrics provides Prometheus-based metrics collection for netsweep.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// Namespace for all netsweep metrics
	namespace = "netsweep"

	// Subsystems
	subsystemScan  = "scan"
	subsystemStore = "store"
	subsystemAPI   = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal      *prometheus.CounterVec
	scanDuration    prometheus.Histogram
	hostsDiscovered prometheus.Counter
	hostsProbed     *prometheus.CounterVec
	probeDuration   prometheus.Histogram
	activeScans     prometheus.Gauge

	// Store metrics
	storeOps      *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
// registered on a private registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initScanMetrics()
	pm.initStoreMetrics()
	pm.initAPIMetrics()

	registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.hostsDiscovered,
		pm.hostsProbed,
		pm.probeDuration,
		pm.activeScans,
		pm.storeOps,
		pm.storeDuration,
		pm.httpRequests,
		pm.httpDuration,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		}, func() float64 { return time.Since(pm.startTime).Seconds() }),
	)

	// Standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scan runs by outcome",
		},
		[]string{"outcome"},
	)

	pm.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of complete scan runs in seconds",
			Buckets:   []float64{1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0, 1800.0, 3600.0},
		},
	)

	pm.hostsDiscovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "hosts_discovered_total",
			Help:      "Total number of hosts found active by discovery",
		},
	)

	pm.hostsProbed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "hosts_probed_total",
			Help:      "Total number of detailed host probes by outcome",
		},
		[]string{"outcome"},
	)

	pm.probeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "probe_duration_seconds",
			Help:      "Duration of detailed host probes in seconds",
			Buckets:   []float64{0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 120.0, 300.0},
		},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently active scans",
		},
	)
}

func (pm *PrometheusMetrics) initStoreMetrics() {
	pm.storeOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "operations_total",
			Help:      "Total number of history store operations by operation and status",
		},
		[]string{"operation", "status"},
	)

	pm.storeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "operation_duration_seconds",
			Help:      "Duration of history store operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation"},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0, 300.0},
		},
		[]string{"method", "route"},
	)
}

// GetRegistry returns the Prometheus registry for the HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler returns an HTTP handler exposing the private registry.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// ScanStarted increments the active scan gauge.
func (pm *PrometheusMetrics) ScanStarted() {
	pm.activeScans.Inc()
}

// ScanFinished decrements the active scan gauge and records the run.
func (pm *PrometheusMetrics) ScanFinished(outcome string, duration time.Duration) {
	pm.activeScans.Dec()
	pm.scansTotal.WithLabelValues(outcome).Inc()
	pm.scanDuration.Observe(duration.Seconds())
}

// HostsDiscovered adds to the discovered hosts counter.
func (pm *PrometheusMetrics) HostsDiscovered(count int) {
	pm.hostsDiscovered.Add(float64(count))
}

// HostProbed records one detailed probe.
func (pm *PrometheusMetrics) HostProbed(outcome string, duration time.Duration) {
	pm.hostsProbed.WithLabelValues(outcome).Inc()
	pm.probeDuration.Observe(duration.Seconds())
}

// StoreOperation records one history store operation.
func (pm *PrometheusMetrics) StoreOperation(operation string, duration time.Duration, err error) {
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeError
	}
	pm.storeOps.WithLabelValues(operation, status).Inc()
	pm.storeDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// HTTPRequest records one served HTTP request.
func (pm *PrometheusMetrics) HTTPRequest(method, route string, status int, duration time.Duration) {
	pm.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	pm.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Global instance for easy access
var (
	globalMetrics *PrometheusMetrics
	metricsOnce   sync.Once
)

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
