package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/internal/booking"
	"github.com/cx-tal-miterani/flight-inventory/internal/middleware"
	"github.com/cx-tal-miterani/flight-inventory/internal/service"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

const maxBodyBytes = 1 << 20

// Handler contains HTTP handlers for the API
type Handler struct {
	bookingService service.BookingService
	logger         *logrus.Logger
}

// NewHandler creates a new Handler instance
func NewHandler(bookingService service.BookingService, logger *logrus.Logger) *Handler {
	return &Handler{
		bookingService: bookingService,
		logger:         logger,
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind"`
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// statusFor maps an error kind (and a few codes) to an HTTP status.
func statusFor(e *booking.Error) int {
	switch e.Kind {
	case booking.KindInvalidInput:
		return http.StatusBadRequest
	case booking.KindNotFound:
		return http.StatusNotFound
	case booking.KindBusinessRule:
		if e.Code == booking.CodeFlightNotBookable {
			return http.StatusUnprocessableEntity
		}
		return http.StatusConflict
	case booking.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	pub := booking.Public(err)
	status := statusFor(pub)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"code":   pub.Code,
		}).Error("Request failed")
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	respondJSON(w, status, ErrorResponse{Error: pub.Error(), Code: pub.Code, Kind: string(pub.Kind)})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		h.respondError(w, r, booking.ErrInvalidRequest.With("invalid request body"))
		return false
	}
	return true
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "authentication required", Code: "unauthorized", Kind: string(booking.KindInvalidInput)})
	}
	return id, ok
}

// owned answers 404 unless the booking belongs to userID, so references of
// other users cannot be probed.
func (h *Handler) owned(w http.ResponseWriter, r *http.Request, ref, userID string) bool {
	details, err := h.bookingService.GetBooking(r.Context(), ref)
	if err != nil {
		h.respondError(w, r, err)
		return false
	}
	if details.Booking.UserID != userID {
		h.respondError(w, r, booking.ErrBookingNotFound)
		return false
	}
	return true
}

// SearchFlights handles GET /api/flights
func (h *Handler) SearchFlights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := &models.SearchFlightsRequest{
		Origin:        q.Get("origin"),
		Destination:   q.Get("destination"),
		DepartureDate: q.Get("date"),
		SortBy:        q.Get("sortBy"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.respondError(w, r, booking.ErrInvalidRequest.With("limit must be a non-negative integer"))
			return
		}
		req.Limit = limit
	}

	flights, err := h.bookingService.SearchFlights(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flights)
}

// CreateFlight handles POST /api/flights
func (h *Handler) CreateFlight(w http.ResponseWriter, r *http.Request) {
	var req models.CreateFlightRequest
	if !h.decode(w, r, &req) {
		return
	}
	flight, err := h.bookingService.CreateFlight(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, flight)
}

// GetFlight handles GET /api/flights/{id}
func (h *Handler) GetFlight(w http.ResponseWriter, r *http.Request) {
	flight, err := h.bookingService.GetFlight(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, flight)
}

// GetFlightSeats handles GET /api/flights/{id}/seats
func (h *Handler) GetFlightSeats(w http.ResponseWriter, r *http.Request) {
	seats, err := h.bookingService.GetSeats(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, seats)
}

// GetAvailability handles GET /api/flights/{id}/availability
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.bookingService.GetAvailability(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, availability)
}

// GetFare handles GET /api/flights/{id}/fare?tier=
func (h *Handler) GetFare(w http.ResponseWriter, r *http.Request) {
	quote, err := h.bookingService.QuoteFare(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("tier"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// CreateBooking handles POST /api/bookings
func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req models.CreateBookingRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.UserID = userID

	details, err := h.bookingService.CreateBooking(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, details)
}

// ListBookings handles GET /api/bookings
func (h *Handler) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	bookings, err := h.bookingService.ListUserBookings(r.Context(), userID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bookings)
}

// GetBooking handles GET /api/bookings/{ref}
func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	details, err := h.bookingService.GetBooking(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// CreatePayment handles POST /api/bookings/{ref}/payments. A recorded but
// failed attempt answers 402 with the payment in the body.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req models.PaymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.owned(w, r, mux.Vars(r)["ref"], userID) {
		return
	}
	req.BookingReference = mux.Vars(r)["ref"]

	result, err := h.bookingService.CreatePayment(r.Context(), &req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !result.Succeeded() {
		status = http.StatusPaymentRequired
	}
	respondJSON(w, status, result)
}

// CancelBooking handles POST /api/bookings/{ref}/cancel
func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok || !h.owned(w, r, mux.Vars(r)["ref"], userID) {
		return
	}
	details, err := h.bookingService.CancelBooking(r.Context(), mux.Vars(r)["ref"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// GetPayment handles GET /api/payments/{transactionId}
func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	payment, err := h.bookingService.GetPayment(r.Context(), mux.Vars(r)["transactionId"])
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, payment)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
