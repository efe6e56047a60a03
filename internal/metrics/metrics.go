package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_bookings_created_total",
		Help: "Bookings created in payment pending state, by tier",
	}, []string{"tier"})

	BookingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_booking_failures_total",
		Help: "Rejected booking attempts, by error code",
	}, []string{"code"})

	Payments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_payments_total",
		Help: "Recorded payment attempts, by status",
	}, []string{"status"})

	Cancellations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_booking_cancellations_total",
		Help: "Bookings moved to cancelled, by reason",
	}, []string{"reason"})

	SeatsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_seats_released_total",
		Help: "Seats returned to inventory by cancellation or expiry",
	})

	InvariantViolations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_invariant_violations_total",
		Help: "Invariant checks that failed, by check",
	}, []string{"check"})

	Retries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_transient_retries_total",
		Help: "Retries performed after transient store failures",
	})

	SimulatorRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_demand_simulator_runs_total",
		Help: "Completed demand simulation rounds",
	})

	SimulatorSeatsSold = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_demand_simulator_seats_sold_total",
		Help: "Seats marked sold by the demand simulator",
	})

	SimulatorEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flight_demand_escalations_total",
		Help: "Flights escalated to high demand by the simulator",
	})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_search_cache_lookups_total",
		Help: "Search cache lookups, by result",
	}, []string{"result"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flight_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)
