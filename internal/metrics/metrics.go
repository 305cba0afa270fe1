package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

type Metrics struct {
	registry         *prometheus.Registry
	readingsIngested prometheus.Counter
	readingsRejected *prometheus.CounterVec
	storeErrors      *prometheus.CounterVec
	alertsRaised     *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	eventsForwarded  *prometheus.CounterVec
	batterySoC       prometheus.Gauge
	queryDuration    *prometheus.HistogramVec
}

// New registers every collector on its own registry so processes and tests
// never collide on the global one.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readingsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_readings_ingested_total",
			Help: "Readings parsed and persisted.",
		}),
		readingsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_readings_rejected_total",
			Help: "Inbound messages discarded, by reason.",
		}, []string{"reason"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_store_errors_total",
			Help: "Store operations that failed, by operation.",
		}, []string{"op"}),
		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_alerts_raised_total",
			Help: "Alerts created, by kind.",
		}, []string{"kind"}),
		alertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_alerts_suppressed_total",
			Help: "Threshold breaches suppressed inside the dedup window, by kind.",
		}, []string{"kind"}),
		eventsForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_events_forwarded_total",
			Help: "Events handed to external sinks, by sink and result.",
		}, []string{"sink", "result"}),
		batterySoC: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_battery_soc_percent",
			Help: "Latest battery state of charge estimate.",
		}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telemetry_query_duration_seconds",
			Help:    "Duration of consumer queries, by query.",
			Buckets: prometheus.DefBuckets,
		}, []string{"query"}),
	}
	m.registry.MustRegister(
		m.readingsIngested,
		m.readingsRejected,
		m.storeErrors,
		m.alertsRaised,
		m.alertsSuppressed,
		m.eventsForwarded,
		m.batterySoC,
		m.queryDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ReadingIngested(soc float64) {
	m.readingsIngested.Inc()
	m.batterySoC.Set(soc)
}

func (m *Metrics) ReadingRejected(reason string) { m.readingsRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) StoreError(op string)          { m.storeErrors.WithLabelValues(op).Inc() }

func (m *Metrics) AlertRaised(kind domain.AlertKind) {
	m.alertsRaised.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) AlertSuppressed(kind domain.AlertKind) {
	m.alertsSuppressed.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) Forwarded(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsForwarded.WithLabelValues(sink, result).Inc()
}

// ObserveQuery records the time since start for the named query.
func (m *Metrics) ObserveQuery(query string, start time.Time) {
	m.queryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}
