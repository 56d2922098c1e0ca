// Package metrics provides Prometheus metrics for the booking engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	BookingsTotal      *prometheus.CounterVec
	TransitionsTotal   *prometheus.CounterVec
	ConflictsDetected  prometheus.Counter
	NotificationsTotal *prometheus.CounterVec
	SlotQueryDuration  prometheus.Histogram

	registry *prometheus.Registry
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		BookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookings_total",
			Help: "Booking attempts by outcome",
		}, []string{"outcome"}),
		TransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "appointment_transitions_total",
			Help: "Appointment lifecycle transitions by action",
		}, []string{"action"}),
		ConflictsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "slot_conflicts_detected_total",
			Help: "Slot conflicts detected during booking and reschedule",
		}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification dispatch attempts by status",
		}, []string{"status"}),
		SlotQueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "slot_query_duration_seconds",
			Help:    "Availability query duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.BookingsTotal,
		m.TransitionsTotal,
		m.ConflictsDetected,
		m.NotificationsTotal,
		m.SlotQueryDuration,
	)

	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
