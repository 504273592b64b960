package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Simodalstix/AWS-fargate-golden-path/app/failure"
)

const namespace = "golden_path"

// Metrics bundles the application's Prometheus collectors. Each Server gets
// its own registry so tests never trip over duplicate registration.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	failureMode    *prometheus.GaugeVec
	workBurned     prometheus.Counter
}

// New creates the collector set and registers it, alongside the standard Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests handled, by method, path and status code",
			},
			[]string{"method", "path", "code"},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency, by path",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path"},
		),
		failureMode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "failure_mode",
				Help:      "Active failure mode (1 for the current mode, 0 otherwise)",
			},
			[]string{"mode"},
		),
		workBurned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "work_cpu_milliseconds_total",
				Help:      "Milliseconds of synthetic CPU work burned by /work and cpu_spike injection",
			},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestLatency,
		m.failureMode,
		m.workBurned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RegisterPoolStats wires the database pool accounting in as gauge functions.
func (m *Metrics) RegisterPoolStats(stats func() (open, leaked int64)) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections_open",
			Help:      "Simulated database connections currently checked out",
		}, func() float64 {
			open, _ := stats()
			return float64(open)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "connections_leaked_total",
			Help:      "Simulated database connections leaked by the connection_leak drill",
		}, func() float64 {
			_, leaked := stats()
			return float64(leaked)
		}),
	)
}

// ObserveRequest records one handled request.
func (m *Metrics) ObserveRequest(method, path string, status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(path).Observe(elapsed.Seconds())
}

// SetFailureMode reflects the currently active mode on the gauge vector.
func (m *Metrics) SetFailureMode(active failure.Mode) {
	for _, mode := range failure.Modes {
		v := 0.0
		if mode == active {
			v = 1.0
		}
		m.failureMode.WithLabelValues(string(mode)).Set(v)
	}
}

// AddBurnedWork accounts synthetic CPU burn in milliseconds.
func (m *Metrics) AddBurnedWork(d time.Duration) {
	m.workBurned.Add(float64(d.Milliseconds()))
}

// Handler returns the exposition endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
