package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cx-tal-miterani/flight-inventory/internal/booking"
	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/logging"
	"github.com/cx-tal-miterani/flight-inventory/internal/middleware"
	"github.com/cx-tal-miterani/flight-inventory/internal/service/mocks"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

const testUser = "user-1"

// withUser stands in for the auth middleware.
func withUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			r = r.WithContext(middleware.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func setupTestRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(withUser)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/flights", h.SearchFlights).Methods(http.MethodGet)
	api.HandleFunc("/flights", h.CreateFlight).Methods(http.MethodPost)
	api.HandleFunc("/flights/{id}", h.GetFlight).Methods(http.MethodGet)
	api.HandleFunc("/flights/{id}/seats", h.GetFlightSeats).Methods(http.MethodGet)
	api.HandleFunc("/flights/{id}/availability", h.GetAvailability).Methods(http.MethodGet)
	api.HandleFunc("/flights/{id}/fare", h.GetFare).Methods(http.MethodGet)
	api.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings", h.ListBookings).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{ref}", h.GetBooking).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{ref}/payments", h.CreatePayment).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{ref}/cancel", h.CancelBooking).Methods(http.MethodPost)
	api.HandleFunc("/payments/{transactionId}", h.GetPayment).Methods(http.MethodGet)
	return r
}

func newTestHandler() (*mocks.MockBookingService, *mux.Router) {
	mockService := new(mocks.MockBookingService)
	return mockService, setupTestRouter(NewHandler(mockService, logging.Discard()))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func pendingBooking(user string) *models.BookingDetails {
	return &models.BookingDetails{
		Booking: database.Booking{
			ID:               uuid.New(),
			BookingReference: "BK23456789",
			UserID:           user,
			Status:           database.BookingStatusPaymentPending,
			TotalFare:        9225,
		},
		TotalFare: 9225,
	}
}

func TestHandler_SearchFlights(t *testing.T) {
	mockService, router := newTestHandler()

	expected := []models.FlightSummary{{ID: uuid.NewString(), FlightNumber: "AI101", AvailableSeats: 16}}
	mockService.On("SearchFlights", mock.Anything, &models.SearchFlightsRequest{
		Origin:        "DEL",
		Destination:   "BOM",
		DepartureDate: "2025-04-30",
		SortBy:        "price",
		Limit:         5,
	}).Return(expected, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/flights?origin=DEL&destination=BOM&date=2025-04-30&sortBy=price&limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var response []models.FlightSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, "AI101", response[0].FlightNumber)
	mockService.AssertExpectations(t)
}

func TestHandler_SearchFlightsBadLimit(t *testing.T) {
	mockService, router := newTestHandler()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights?limit=ten", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, booking.CodeInvalidRequest, decodeError(t, rec).Code)
	mockService.AssertNotCalled(t, "SearchFlights", mock.Anything, mock.Anything)
}

func TestHandler_GetFlight(t *testing.T) {
	flightID := uuid.New()

	tests := []struct {
		name           string
		flightID       string
		mockReturn     *database.Flight
		mockError      error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:     "flight found",
			flightID: flightID.String(),
			mockReturn: &database.Flight{
				ID:           flightID,
				FlightNumber: "AI101",
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "flight not found",
			flightID:       uuid.New().String(),
			mockError:      booking.ErrFlightNotFound,
			expectedStatus: http.StatusNotFound,
			expectedCode:   booking.CodeFlightNotFound,
		},
		{
			name:           "driver error is hidden",
			flightID:       flightID.String(),
			mockError:      errors.New("dial tcp 10.0.0.5:5432: connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   booking.CodeInternal,
		},
		{
			name:           "lock timeout is retryable",
			flightID:       flightID.String(),
			mockError:      &pgconn.PgError{Code: "55P03", Message: "lock timeout"},
			expectedStatus: http.StatusServiceUnavailable,
			expectedCode:   booking.CodeTryAgain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			mockService.On("GetFlight", mock.Anything, tt.flightID).Return(tt.mockReturn, tt.mockError)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights/"+tt.flightID, nil))

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedCode != "" {
				body := decodeError(t, rec)
				assert.Equal(t, tt.expectedCode, body.Code)
				assert.NotContains(t, body.Error, "10.0.0.5")
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_FlightSubresources(t *testing.T) {
	mockService, router := newTestHandler()
	id := uuid.NewString()

	mockService.On("GetSeats", mock.Anything, id).Return([]database.Seat{{ID: 1, SeatNumber: "1A"}}, nil)
	mockService.On("GetAvailability", mock.Anything, id).Return([]database.ClassAvailability{{Class: "Economy", Total: 12, Available: 10}}, nil)
	mockService.On("QuoteFare", mock.Anything, id, "BUSINESS").Return(&models.FareQuote{FlightID: id, Currency: "INR"}, nil)

	for _, path := range []string{"/seats", "/availability", "/fare?tier=BUSINESS"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights/"+id+path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	mockService.AssertExpectations(t)
}

func TestHandler_CreateFlight(t *testing.T) {
	mockService, router := newTestHandler()

	mockService.On("CreateFlight", mock.Anything, mock.AnythingOfType("*models.CreateFlightRequest")).
		Return(nil, booking.ErrInvalidRequest.With("arrival must be after departure")).Once()

	body, _ := json.Marshal(models.CreateFlightRequest{FlightNumber: "AI101"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/flights", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "arrival must be after departure")
}

func TestHandler_CreateBooking(t *testing.T) {
	flightID := uuid.NewString()

	tests := []struct {
		name           string
		user           string
		body           string
		mockReturn     *models.BookingDetails
		mockError      error
		expectedStatus int
		expectedCode   string
		shouldCallMock bool
	}{
		{
			name:           "valid booking",
			user:           testUser,
			body:           `{"flightId":"` + flightID + `","departureDate":"2025-04-30","passengers":[{"name":"A","age":30}]}`,
			mockReturn:     pendingBooking(testUser),
			expectedStatus: http.StatusCreated,
			shouldCallMock: true,
		},
		{
			name:           "not enough seats",
			user:           testUser,
			body:           `{"flightId":"` + flightID + `","departureDate":"2025-04-30","passengers":[{"name":"A","age":30}]}`,
			mockError:      booking.ErrNotEnoughSeats,
			expectedStatus: http.StatusConflict,
			expectedCode:   booking.CodeNotEnoughSeats,
			shouldCallMock: true,
		},
		{
			name:           "flight closed",
			user:           testUser,
			body:           `{"flightId":"` + flightID + `","departureDate":"2025-04-30","passengers":[{"name":"A","age":30}]}`,
			mockError:      booking.ErrFlightNotBookable,
			expectedStatus: http.StatusUnprocessableEntity,
			expectedCode:   booking.CodeFlightNotBookable,
			shouldCallMock: true,
		},
		{
			name:           "malformed body",
			user:           testUser,
			body:           `{"flightId":`,
			expectedStatus: http.StatusBadRequest,
			expectedCode:   booking.CodeInvalidRequest,
		},
		{
			name:           "unauthenticated",
			body:           `{}`,
			expectedStatus: http.StatusUnauthorized,
			expectedCode:   "unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			if tt.shouldCallMock {
				mockService.On("CreateBooking", mock.Anything, mock.MatchedBy(func(req *models.CreateBookingRequest) bool {
					return req.UserID == tt.user && req.FlightID == flightID && len(req.Passengers) == 1
				})).Return(tt.mockReturn, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/bookings", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Content-Type", "application/json")
			if tt.user != "" {
				req.Header.Set("X-Test-User", tt.user)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, decodeError(t, rec).Code)
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_CreatePayment(t *testing.T) {
	tests := []struct {
		name           string
		owner          string
		result         *models.PaymentResult
		mockError      error
		expectedStatus int
		shouldPay      bool
	}{
		{
			name:  "payment succeeds",
			owner: testUser,
			result: &models.PaymentResult{
				Payment: database.Payment{Status: database.PaymentStatusSuccess, Amount: 9225},
			},
			expectedStatus: http.StatusCreated,
			shouldPay:      true,
		},
		{
			name:  "payment short",
			owner: testUser,
			result: &models.PaymentResult{
				Payment: database.Payment{Status: database.PaymentStatusFailed, Amount: 9224},
			},
			expectedStatus: http.StatusPaymentRequired,
			shouldPay:      true,
		},
		{
			name:           "already confirmed",
			owner:          testUser,
			mockError:      booking.ErrAlreadyConfirmed,
			expectedStatus: http.StatusConflict,
			shouldPay:      true,
		},
		{
			name:           "someone else's booking",
			owner:          "user-2",
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			mockService.On("GetBooking", mock.Anything, "BK23456789").Return(pendingBooking(tt.owner), nil)
			if tt.shouldPay {
				mockService.On("CreatePayment", mock.Anything, &models.PaymentRequest{
					BookingReference: "BK23456789",
					Amount:           9225,
					Method:           "UPI",
				}).Return(tt.result, tt.mockError)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/bookings/BK23456789/payments", bytes.NewReader([]byte(`{"amount":9225,"method":"UPI"}`)))
			req.Header.Set("X-Test-User", testUser)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_CancelBooking(t *testing.T) {
	tests := []struct {
		name           string
		lookupError    error
		cancelError    error
		expectedStatus int
		shouldCancel   bool
	}{
		{
			name:           "successful cancellation",
			expectedStatus: http.StatusOK,
			shouldCancel:   true,
		},
		{
			name:           "booking not found",
			lookupError:    booking.ErrBookingNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "contention",
			cancelError:    booking.ErrTryAgain,
			expectedStatus: http.StatusServiceUnavailable,
			shouldCancel:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService, router := newTestHandler()
			if tt.lookupError != nil {
				mockService.On("GetBooking", mock.Anything, "ABC234").Return(nil, tt.lookupError)
			} else {
				mockService.On("GetBooking", mock.Anything, "ABC234").Return(pendingBooking(testUser), nil)
			}
			if tt.shouldCancel {
				cancelled := pendingBooking(testUser)
				cancelled.Booking.Status = database.BookingStatusCancelled
				if tt.cancelError != nil {
					cancelled = nil
				}
				mockService.On("CancelBooking", mock.Anything, "ABC234").Return(cancelled, tt.cancelError)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/bookings/ABC234/cancel", nil)
			req.Header.Set("X-Test-User", testUser)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			if rec.Code == http.StatusServiceUnavailable {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestHandler_ListBookings(t *testing.T) {
	mockService, router := newTestHandler()
	mockService.On("ListUserBookings", mock.Anything, testUser).Return([]database.Booking{pendingBooking(testUser).Booking}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	req.Header.Set("X-Test-User", testUser)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var bookings []database.Booking
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&bookings))
	assert.Len(t, bookings, 1)
	mockService.AssertExpectations(t)
}

func TestHandler_GetPayment(t *testing.T) {
	mockService, router := newTestHandler()
	mockService.On("GetPayment", mock.Anything, "tx-1").Return(&database.Payment{TransactionID: "tx-1", CreatedAt: time.Now()}, nil)
	mockService.On("GetPayment", mock.Anything, "tx-2").Return(nil, booking.ErrPaymentNotFound)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/tx-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/payments/tx-2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, booking.CodePaymentNotFound, decodeError(t, rec).Code)
}
