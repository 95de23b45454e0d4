// Package metrics holds the Prometheus instrumentation for the refresh
// loop. All observe methods are nil-safe so wiring stays optional.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	refreshTotal    *prometheus.CounterVec
	refreshDuration *prometheus.HistogramVec
	eventsTracked   *prometheus.GaugeVec
	conflictsTotal  *prometheus.CounterVec
}

// New registers the core collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	refreshTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_control_refresh_total",
		Help: "Total refresh cycles by outcome",
	}, []string{"subscription", "result"})

	refreshDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rental_control_refresh_duration_seconds",
		Help:    "Duration of full refresh cycles",
		Buckets: prometheus.DefBuckets,
	}, []string{"subscription"})

	eventsTracked := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rental_control_events_tracked",
		Help: "Events in the current snapshot",
	}, []string{"subscription"})

	conflictsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rental_control_reconciliation_conflicts_total",
		Help: "Slots left untouched because contents diverged from the calendar",
	}, []string{"subscription"})

	registry.MustRegister(refreshTotal, refreshDuration, eventsTracked, conflictsTotal)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		refreshTotal:    refreshTotal,
		refreshDuration: refreshDuration,
		eventsTracked:   eventsTracked,
		conflictsTotal:  conflictsTotal,
	}
}

// Handler serves the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}

func (m *Metrics) ObserveRefresh(subscription string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.refreshTotal.WithLabelValues(subscription, result).Inc()
	m.refreshDuration.WithLabelValues(subscription).Observe(d.Seconds())
}

func (m *Metrics) SetEventsTracked(subscription string, n int) {
	if m == nil {
		return
	}
	m.eventsTracked.WithLabelValues(subscription).Set(float64(n))
}

func (m *Metrics) AddConflicts(subscription string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.conflictsTotal.WithLabelValues(subscription).Add(float64(n))
}
