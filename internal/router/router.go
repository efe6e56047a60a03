package router

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cx-tal-miterani/flight-inventory/internal/handlers"
	"github.com/cx-tal-miterani/flight-inventory/internal/middleware"
)

// Options carries the middleware the routes need.
type Options struct {
	// Auth guards booking and payment routes.
	Auth func(http.Handler) http.Handler
	// RateLimit and Idempotency wrap the state-changing booking routes.
	RateLimit   func(http.Handler) http.Handler
	Idempotency func(http.Handler) http.Handler
	// WebSocket serves live seat updates for a flight.
	WebSocket http.HandlerFunc
}

func passthrough(next http.Handler) http.Handler { return next }

// SetupRouter creates and configures the HTTP router
func SetupRouter(h *handlers.Handler, opts Options) *mux.Router {
	if opts.Auth == nil {
		opts.Auth = passthrough
	}
	if opts.RateLimit == nil {
		opts.RateLimit = passthrough
	}
	if opts.Idempotency == nil {
		opts.Idempotency = passthrough
	}

	r := mux.NewRouter()
	r.Use(corsMiddleware)
	r.Use(middleware.Metrics)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Flights
	api.HandleFunc("/flights", h.SearchFlights).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights", h.CreateFlight).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/flights/{id}", h.GetFlight).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/{id}/seats", h.GetFlightSeats).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/{id}/availability", h.GetAvailability).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/flights/{id}/fare", h.GetFare).Methods(http.MethodGet, http.MethodOptions)
	if opts.WebSocket != nil {
		api.HandleFunc("/flights/{id}/ws", opts.WebSocket)
	}

	// Bookings
	guarded := func(fn http.HandlerFunc) http.Handler {
		return opts.Auth(fn)
	}
	mutating := func(fn http.HandlerFunc) http.Handler {
		return opts.Auth(opts.RateLimit(opts.Idempotency(fn)))
	}
	api.Handle("/bookings", mutating(h.CreateBooking)).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/bookings", guarded(h.ListBookings)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/bookings/{ref}", h.GetBooking).Methods(http.MethodGet, http.MethodOptions)
	api.Handle("/bookings/{ref}/payments", mutating(h.CreatePayment)).Methods(http.MethodPost, http.MethodOptions)
	api.Handle("/bookings/{ref}/cancel", guarded(h.CancelBooking)).Methods(http.MethodPost, http.MethodOptions)

	// Payments
	api.HandleFunc("/payments/{transactionId}", h.GetPayment).Methods(http.MethodGet, http.MethodOptions)

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Idempotency-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
