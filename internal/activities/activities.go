// Package activities holds the Temporal activities run by the worker. They
// are thin adapters over the booking orchestrator and the demand simulator.
package activities

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/cx-tal-miterani/flight-inventory/internal/booking"
	"github.com/cx-tal-miterani/flight-inventory/internal/notify"
	"github.com/cx-tal-miterani/flight-inventory/internal/simulator"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

// Activity names as registered with the worker
const (
	ExpireBookingName       = "ExpireBooking"
	RunDemandSimulationName = "RunDemandSimulation"
)

const publishTimeout = 5 * time.Second

// Activities groups the activity implementations and their dependencies
type Activities struct {
	orchestrator *booking.Orchestrator
	simulator    *simulator.Simulator
	publisher    notify.Publisher
	now          func() time.Time
}

// New creates the activities. A nil publisher disables booking events.
func New(orch *booking.Orchestrator, sim *simulator.Simulator, publisher notify.Publisher) *Activities {
	return &Activities{
		orchestrator: orch,
		simulator:    sim,
		publisher:    publisher,
		now:          time.Now,
	}
}

// ExpireBooking cancels a booking whose hold ran out. It reports whether
// the booking was cancelled; a booking that was paid or cancelled in the
// meantime is left alone.
func (a *Activities) ExpireBooking(ctx context.Context, bookingID string) (bool, error) {
	logger := activity.GetLogger(ctx)

	id, err := uuid.Parse(bookingID)
	if err != nil {
		return false, temporal.NewNonRetryableApplicationError("invalid booking id", "InvalidBookingID", err)
	}

	details, expired, err := a.orchestrator.ExpireBooking(ctx, id)
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		logger.Warn("Booking to expire no longer exists", "bookingId", bookingID)
		return false, nil
	case err != nil && permanent(err):
		return false, temporal.NewNonRetryableApplicationError(err.Error(), booking.CodeOf(err), err)
	case err != nil:
		return false, err
	}

	if !expired {
		logger.Info("Booking settled before its hold expired", "bookingId", bookingID)
		return false, nil
	}
	logger.Info("Booking hold expired", "bookingId", bookingID, "reference", details.Booking.BookingReference)

	if a.publisher != nil {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		event := models.NewBookingEvent(models.EventBookingCancelled, details, a.now())
		event.Origin = models.OriginWorker
		if err := a.publisher.Publish(pctx, event); err != nil {
			logger.Warn("Failed to publish expiry event", "bookingId", bookingID, "error", err)
		}
	}
	return true, nil
}

// permanent reports errors that will fail the same way on every attempt.
func permanent(err error) bool {
	switch booking.KindOf(err) {
	case booking.KindInvalidInput, booking.KindBusinessRule, booking.KindInvariant:
		return true
	}
	return false
}

// RunDemandSimulation runs one simulator round.
func (a *Activities) RunDemandSimulation(ctx context.Context) (*models.SimulationReport, error) {
	report, err := a.simulator.RunOnce(ctx)
	if err != nil {
		return nil, err
	}
	activity.GetLogger(ctx).Info("Demand simulation round finished",
		"flights", report.FlightsConsidered,
		"seatsSold", report.SeatsSold,
		"escalated", len(report.Escalated),
		"skipped", report.Skipped)
	return report, nil
}
