package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}

// Metrics holds the Prometheus collectors for the blood bank engine.
type Metrics struct {
	UnitsCreated         prometheus.Counter
	UnitTransitions      *prometheus.CounterVec
	UnitsQuarantined     prometheus.Counter
	UnitsSeparated       prometheus.Counter
	UnitsExpired         prometheus.Counter
	ReservationsTotal    *prometheus.CounterVec
	ReservationRetries   prometheus.Counter
	UnitsReserved        prometheus.Counter
	UnitsReleased        prometheus.Counter
	ReserveDuration      prometheus.Histogram
	DeliveryVerification *prometheus.CounterVec
	RequestTransitions   *prometheus.CounterVec
	TrackingStarted      prometheus.Counter
	StaleReservations    prometheus.Counter
	HTTPLatency          *prometheus.HistogramVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers collectors on reg. Tests pass a fresh registry
// to avoid duplicate registration panics.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UnitsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_units_created_total",
			Help: "Total number of blood units registered",
		}),
		UnitTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_unit_transitions_total",
			Help: "Unit status transitions by source and target status",
		}, []string{"from", "to"}),
		UnitsQuarantined: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_units_quarantined_total",
			Help: "Units quarantined after a positive screening",
		}),
		UnitsSeparated: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_units_separated_total",
			Help: "Whole blood units processed into components",
		}),
		UnitsExpired: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_units_expired_total",
			Help: "Units moved to expired by the sweeper",
		}),
		ReservationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_reservations_total",
			Help: "Reservation attempts by outcome",
		}, []string{"outcome"}),
		ReservationRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_reservation_retries_total",
			Help: "Reservation attempts retried after losing a claim race",
		}),
		UnitsReserved: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_units_reserved_total",
			Help: "Units claimed by reservations",
		}),
		UnitsReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_units_released_total",
			Help: "Units returned to available stock",
		}),
		ReserveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lifeline_reserve_duration_seconds",
			Help:    "Duration of reservation operations",
			Buckets: latencyBuckets,
		}),
		DeliveryVerification: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_delivery_verifications_total",
			Help: "Delivery code verifications by result",
		}, []string{"result"}),
		RequestTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lifeline_request_transitions_total",
			Help: "Blood request status transitions by source and target status",
		}, []string{"from", "to"}),
		TrackingStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_tracking_started_total",
			Help: "Deliveries whose live tracking started",
		}),
		StaleReservations: f.NewCounter(prometheus.CounterOpts{
			Name: "lifeline_stale_reservations_total",
			Help: "Approved requests rejected because their reservation hold lapsed",
		}),
		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lifeline_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: latencyBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) IncrementUnitsCreated(n int) {
	m.UnitsCreated.Add(float64(n))
}

func (m *Metrics) RecordTransition(from, to string) {
	m.UnitTransitions.WithLabelValues(from, to).Inc()
}

// ObserveReserve records a reservation outcome and its duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveReserve(start time.Time, outcome string, units int) {
	m.ReserveDuration.Observe(time.Since(start).Seconds())
	m.ReservationsTotal.WithLabelValues(outcome).Inc()
	if units > 0 {
		m.UnitsReserved.Add(float64(units))
	}
}

func (m *Metrics) RecordRequestTransition(from, to string) {
	m.RequestTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveHTTP(method, route, status string, start time.Time) {
	m.HTTPLatency.WithLabelValues(method, route, status).Observe(time.Since(start).Seconds())
}
