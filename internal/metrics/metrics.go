package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "linkregistry"

// Metrics holds the Prometheus collectors for the registry and its HTTP front-end.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LinksCreated        prometheus.Counter
	ClicksRecorded      prometheus.Counter
	LinksExpired        prometheus.Counter
	LinksPurged         prometheus.Counter
	LinksDeleted        prometheus.Counter
	PersistenceFailures prometheus.Counter
	OperationErrors     *prometheus.CounterVec
	LinksHeld           prometheus.Gauge
	RequestDuration     *prometheus.HistogramVec
}

// New registers every collector on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		LinksCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Number of short links created.",
		}),
		ClicksRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_recorded_total",
			Help:      "Number of click events appended to short links.",
		}),
		LinksExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_expired_total",
			Help:      "Number of short links whose expired flag was flipped.",
		}),
		LinksPurged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_purged_total",
			Help:      "Number of expired short links removed by purge.",
		}),
		LinksDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_deleted_total",
			Help:      "Number of short links removed individually or by clear.",
		}),
		PersistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Number of snapshot writes that failed.",
		}),
		OperationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Registry operation failures by operation and error kind.",
		}, []string{"op", "kind"}),
		LinksHeld: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "links",
			Help:      "Number of short links currently held by the registry.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}

func (m *Metrics) LinkCreated() {
	if m == nil {
		return
	}
	m.LinksCreated.Inc()
}

func (m *Metrics) ClickRecorded() {
	if m == nil {
		return
	}
	m.ClicksRecorded.Inc()
}

func (m *Metrics) LinkExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinksExpired.Add(float64(n))
}

func (m *Metrics) LinksRemoved(purged, deleted int) {
	if m == nil {
		return
	}
	if purged > 0 {
		m.LinksPurged.Add(float64(purged))
	}
	if deleted > 0 {
		m.LinksDeleted.Add(float64(deleted))
	}
}

func (m *Metrics) PersistenceFailed() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

// OperationFailed counts a failed registry operation by op and error kind
func (m *Metrics) OperationFailed(op, kind string) {
	if m == nil {
		return
	}
	m.OperationErrors.WithLabelValues(op, kind).Inc()
}

// SetLinks records the current size of the registry
func (m *Metrics) SetLinks(n int) {
	if m == nil {
		return
	}
	m.LinksHeld.Set(float64(n))
}

// ObserveRequest records one HTTP request
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}
