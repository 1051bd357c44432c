// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fs5000"

// Metrics holds the gateway collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	readings       prometheus.Counter
	failures       *prometheus.CounterVec // kind: parse, io, timeout, unknown
	healthState    prometheus.Gauge
	reopenAttempts *prometheus.CounterVec // result: ok, error
	subscribers    prometheus.Gauge
	published      prometheus.Counter
	evictions      prometheus.Counter
	sinkWrites     *prometheus.CounterVec // sink, result
	latestDoseRate prometheus.Gauge
}

// New creates the collectors on a private registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		readings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Readings acquired from the source",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquisition_failures_total",
			Help:      "Failed acquisition ticks by error kind",
		}, []string{"kind"}),
		healthState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_state",
			Help:      "Current health code (0 unknown, 1 live, 2 degraded, 3 down, 4 stale)",
		}),
		reopenAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reopen_attempts_total",
			Help:      "Source reopen attempts by result",
		}, []string{"result"}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Active stream subscribers",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "published_total",
			Help:      "Readings published to the hub",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "evictions_total",
			Help:      "Subscribers evicted for backpressure",
		}),
		sinkWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Downstream sink writes by sink and result",
		}, []string{"sink", "result"}),
		latestDoseRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dose_rate",
			Help:      "Latest dose rate value in the unit the instrument reported",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.readings,
		m.failures,
		m.healthState,
		m.reopenAttempts,
		m.subscribers,
		m.published,
		m.evictions,
		m.sinkWrites,
		m.latestDoseRate,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveReading(doseRate float64) {
	if m == nil {
		return
	}
	m.readings.Inc()
	m.latestDoseRate.Set(doseRate)
}

func (m *Metrics) IncFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) SetHealth(code uint16) {
	if m == nil {
		return
	}
	m.healthState.Set(float64(code))
}

func (m *Metrics) IncReopen(ok bool) {
	if m == nil {
		return
	}
	m.reopenAttempts.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

func (m *Metrics) IncPublished() {
	if m == nil {
		return
	}
	m.published.Inc()
}

func (m *Metrics) IncEvicted() {
	if m == nil {
		return
	}
	m.evictions.Inc()
}

func (m *Metrics) IncSinkWrite(sink string, ok bool) {
	if m == nil {
		return
	}
	m.sinkWrites.WithLabelValues(sink, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
