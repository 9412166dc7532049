package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulingMetrics exposes counters/histograms for booking and lifecycle flows.
// A nil *SchedulingMetrics is a valid no-op.
type SchedulingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	transitionsTotal   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	deliveriesTotal    *prometheus.CounterVec
	operationLatency   *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ayurwell",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome (booked or error kind)",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ayurwell",
			Subsystem: "scheduling",
			Name:      "transitions_total",
			Help:      "Lifecycle operations by action and outcome",
		}, []string{"action", "outcome"}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ayurwell",
			Subsystem: "scheduling",
			Name:      "notifications_emitted_total",
			Help:      "Appointment events handed to the notification transport",
		}, []string{"event_type", "status"}),
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ayurwell",
			Subsystem: "notify",
			Name:      "deliveries_total",
			Help:      "Notification emails processed by the worker",
		}, []string{"event_type", "status"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ayurwell",
			Subsystem: "scheduling",
			Name:      "operation_duration_seconds",
			Help:      "Latency of booking, lifecycle and query operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.transitionsTotal, m.notificationsTotal, m.deliveriesTotal, m.operationLatency)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *SchedulingMetrics) ObserveNotification(eventType, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(eventType, status).Inc()
}

func (m *SchedulingMetrics) ObserveDelivery(eventType, status string) {
	if m == nil {
		return
	}
	m.deliveriesTotal.WithLabelValues(eventType, status).Inc()
}

// ObserveDuration records time elapsed since start for operation.
func (m *SchedulingMetrics) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
