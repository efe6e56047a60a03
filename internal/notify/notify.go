// Package notify hands booking state changes to whatever sends emails and
// receipts. Delivery is fire-and-forget: a failed publish never undoes the
// booking change that caused it.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

// Publisher delivers booking events.
type Publisher interface {
	Publish(ctx context.Context, event models.BookingEvent) error
}

// LogPublisher writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger *logrus.Logger
}

func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, event models.BookingEvent) error {
	p.logger.WithFields(logrus.Fields{
		"event":             event.Type,
		"booking_reference": event.BookingReference,
		"pnr":               event.PNR,
		"status":            event.Status,
		"total_fare":        event.TotalFare,
		"seats":             event.Seats,
	}).Info("Booking event")
	return nil
}
