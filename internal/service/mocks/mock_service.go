package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

// MockBookingService is a mock implementation of BookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) SearchFlights(ctx context.Context, req *models.SearchFlightsRequest) ([]models.FlightSummary, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FlightSummary), args.Error(1)
}

func (m *MockBookingService) CreateFlight(ctx context.Context, req *models.CreateFlightRequest) (*database.Flight, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Flight), args.Error(1)
}

func (m *MockBookingService) GetFlight(ctx context.Context, flightID string) (*database.Flight, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Flight), args.Error(1)
}

func (m *MockBookingService) GetSeats(ctx context.Context, flightID string) ([]database.Seat, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Seat), args.Error(1)
}

func (m *MockBookingService) GetAvailability(ctx context.Context, flightID string) ([]database.ClassAvailability, error) {
	args := m.Called(ctx, flightID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.ClassAvailability), args.Error(1)
}

func (m *MockBookingService) QuoteFare(ctx context.Context, flightID, tier string) (*models.FareQuote, error) {
	args := m.Called(ctx, flightID, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FareQuote), args.Error(1)
}

func (m *MockBookingService) CreateBooking(ctx context.Context, req *models.CreateBookingRequest) (*models.BookingDetails, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetails), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, identifier string) (*models.BookingDetails, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetails), args.Error(1)
}

func (m *MockBookingService) ListUserBookings(ctx context.Context, userID string) ([]database.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]database.Booking), args.Error(1)
}

func (m *MockBookingService) CancelBooking(ctx context.Context, identifier string) (*models.BookingDetails, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BookingDetails), args.Error(1)
}

func (m *MockBookingService) CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.PaymentResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentResult), args.Error(1)
}

func (m *MockBookingService) GetPayment(ctx context.Context, transactionID string) (*database.Payment, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*database.Payment), args.Error(1)
}
