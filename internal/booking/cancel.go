package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/metrics"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

// CancelBooking cancels a booking found by reference or PNR and returns its
// seats to inventory. Cancelling a cancelled booking changes nothing; the
// bool reports whether this call made the transition.
func (o *Orchestrator) CancelBooking(ctx context.Context, identifier string) (*models.BookingDetails, bool, error) {
	var (
		details   *models.BookingDetails
		cancelled bool
	)
	err := o.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := o.repo.LockBooking(ctx, identifier)
		if err != nil {
			return mapNotFound(err, ErrBookingNotFound)
		}
		details, cancelled, err = o.cancelLocked(ctx, b, database.CancelReasonUserRequested)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if cancelled {
		o.logCancel(details, database.CancelReasonUserRequested)
	}
	return details, cancelled, nil
}

// ExpireBooking cancels a booking whose hold ran out. Bookings that were
// paid, cancelled, or are still inside their hold window are left alone
// and reported as not expired.
func (o *Orchestrator) ExpireBooking(ctx context.Context, bookingID uuid.UUID) (*models.BookingDetails, bool, error) {
	var (
		details *models.BookingDetails
		expired bool
	)
	err := o.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		b, err := o.repo.LockBookingByID(ctx, bookingID)
		if err != nil {
			return mapNotFound(err, ErrBookingNotFound)
		}
		if b.Status != database.BookingStatusPaymentPending || o.clock().Before(b.CreatedAt.Add(o.holdTTL)) {
			return nil
		}
		details, expired, err = o.cancelLocked(ctx, b, database.CancelReasonHoldExpired)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if expired {
		o.logCancel(details, database.CancelReasonHoldExpired)
	}
	return details, expired, nil
}

// ExpireStaleBookings expires up to limit pending bookings older than the
// hold TTL. Each booking gets its own transaction, so one failure does not
// stop the rest.
func (o *Orchestrator) ExpireStaleBookings(ctx context.Context, limit int) ([]*models.BookingDetails, error) {
	ids, err := o.repo.ListPendingBookingIDs(ctx, o.clock().Add(-o.holdTTL), limit)
	if err != nil {
		return nil, err
	}

	var (
		expired []*models.BookingDetails
		errs    []error
	)
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		d, ok, err := o.ExpireBooking(ctx, id)
		if err != nil {
			o.logger.WithError(err).WithField("booking_id", id).Warn("Failed to expire booking")
			errs = append(errs, err)
			continue
		}
		if ok {
			expired = append(expired, d)
		}
	}
	return expired, errors.Join(errs...)
}

// cancelLocked releases the seats of a locked booking and marks it
// cancelled. Seats are locked after the booking, matching the payment path.
func (o *Orchestrator) cancelLocked(ctx context.Context, b *database.Booking, reason string) (*models.BookingDetails, bool, error) {
	tickets, err := o.repo.GetTickets(ctx, b.ID)
	if err != nil {
		return nil, false, err
	}
	if b.Status == database.BookingStatusCancelled {
		payments, err := o.repo.ListPayments(ctx, b.ID)
		if err != nil {
			return nil, false, err
		}
		return o.assemble(b, tickets, payments), false, nil
	}

	ids := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		if t.SeatID != nil {
			ids = append(ids, *t.SeatID)
		}
	}
	if len(ids) > 0 {
		if _, err := o.repo.LockSeatsByID(ctx, b.FlightID, ids); err != nil {
			return nil, false, err
		}
		released, err := o.repo.ReleaseSeats(ctx, b.ID, ids)
		if err != nil {
			return nil, false, err
		}
		if released != int64(len(ids)) {
			o.violation("seat_release", logrus.Fields{"booking_reference": b.BookingReference},
				"released %d of %d seats of active booking %s", released, len(ids), b.BookingReference)
		}
		metrics.SeatsReleased.Add(float64(released))
	}

	now := o.clock()
	if err := o.repo.CancelBooking(ctx, b.ID, reason, now); err != nil {
		return nil, false, err
	}
	b.Status = database.BookingStatusCancelled
	b.CancellationReason = &reason
	b.CancelledAt = &now
	b.UpdatedAt = now

	payments, err := o.repo.ListPayments(ctx, b.ID)
	if err != nil {
		return nil, false, err
	}
	return o.assemble(b, tickets, payments), true, nil
}

func (o *Orchestrator) logCancel(d *models.BookingDetails, reason string) {
	metrics.Cancellations.WithLabelValues(reason).Inc()
	o.logger.WithFields(logrus.Fields{
		"booking_reference": d.Booking.BookingReference,
		"reason":            reason,
		"seats":             len(d.Seats),
	}).Info("Booking cancelled")
}

// GetBooking returns a booking found by reference or PNR.
func (o *Orchestrator) GetBooking(ctx context.Context, identifier string) (*models.BookingDetails, error) {
	b, err := o.repo.GetBooking(ctx, identifier)
	if err != nil {
		return nil, mapNotFound(err, ErrBookingNotFound)
	}
	tickets, err := o.repo.GetTickets(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	payments, err := o.repo.ListPayments(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return o.assemble(b, tickets, payments), nil
}
