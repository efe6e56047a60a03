package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/cx-tal-miterani/flight-inventory/internal/handlers"
	"github.com/cx-tal-miterani/flight-inventory/internal/logging"
	"github.com/cx-tal-miterani/flight-inventory/internal/middleware"
	"github.com/cx-tal-miterani/flight-inventory/internal/service/mocks"
)

func TestSetupRouter(t *testing.T) {
	mockService := new(mocks.MockBookingService)
	h := handlers.NewHandler(mockService, logging.Discard())
	r := SetupRouter(h, Options{Auth: middleware.Auth("secret")})

	tests := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{name: "health", method: http.MethodGet, path: "/health", expectedStatus: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", expectedStatus: http.StatusOK},
		{name: "preflight", method: http.MethodOptions, path: "/api/bookings", expectedStatus: http.StatusOK},
		{name: "booking requires auth", method: http.MethodPost, path: "/api/bookings", expectedStatus: http.StatusUnauthorized},
		{name: "cancel requires auth", method: http.MethodPost, path: "/api/bookings/BK1/cancel", expectedStatus: http.StatusUnauthorized},
		{name: "unknown route", method: http.MethodGet, path: "/api/nope", expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.expectedStatus, rec.Code)
			if rec.Code != http.StatusNotFound {
				assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
	mockService.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}
