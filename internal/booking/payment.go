package booking

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/metrics"
	"github.com/cx-tal-miterani/flight-inventory/internal/pricing"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

// Accepted payment methods
const (
	MethodCard       = "CARD"
	MethodUPI        = "UPI"
	MethodNetBanking = "NETBANKING"
	MethodWallet     = "WALLET"
)

var paymentMethods = map[string]bool{
	MethodCard:       true,
	MethodUPI:        true,
	MethodNetBanking: true,
	MethodWallet:     true,
}

// NormalizeMethod upper-cases a payment method, defaulting to CARD.
func NormalizeMethod(method string) (string, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if m == "" {
		return MethodCard, nil
	}
	if !paymentMethods[m] {
		return "", ErrInvalidRequest.With("unsupported payment method %q", method)
	}
	return m, nil
}

// CreatePayment records a payment attempt. An amount below the fare, or a
// booking whose seats are not all held, yields a failed payment and a nil
// error; the booking stays pending with its seats. A successful attempt
// confirms the booking, assigns its PNR and numbers every ticket in the
// same transaction as the payment row.
func (o *Orchestrator) CreatePayment(ctx context.Context, req *models.PaymentRequest) (*models.PaymentResult, error) {
	if req == nil || strings.TrimSpace(req.BookingReference) == "" {
		return nil, ErrInvalidRequest.With("booking reference is required")
	}
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, ErrInvalidAmount
	}
	method, err := NormalizeMethod(req.Method)
	if err != nil {
		return nil, err
	}

	var result *models.PaymentResult
	err = o.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		result, err = o.pay(ctx, req.BookingReference, pricing.Round2(req.Amount), method)
		return err
	})
	if err != nil {
		return nil, err
	}

	p := result.Payment
	metrics.Payments.WithLabelValues(string(p.Status)).Inc()
	entry := o.logger.WithFields(logrus.Fields{
		"booking_reference": result.Booking.Booking.BookingReference,
		"transaction_id":    p.TransactionID,
		"amount":            p.Amount,
		"status":            p.Status,
	})
	if p.FailureReason != nil {
		entry.WithField("reason", *p.FailureReason).Warn("Payment failed")
	} else {
		entry.Info("Payment succeeded, booking confirmed")
	}
	return result, nil
}

func (o *Orchestrator) pay(ctx context.Context, reference string, amount float64, method string) (*models.PaymentResult, error) {
	now := o.clock()

	b, err := o.repo.LockBooking(ctx, reference)
	if err != nil {
		return nil, mapNotFound(err, ErrBookingNotFound)
	}
	switch b.Status {
	case database.BookingStatusCancelled:
		return nil, ErrBookingNotPayable.With("booking %s is cancelled", b.BookingReference)
	case database.BookingStatusConfirmed:
		return nil, ErrAlreadyConfirmed.With("booking %s is already confirmed", b.BookingReference)
	}

	tickets, err := o.repo.GetTickets(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	var required int64
	for _, t := range tickets {
		required += cents(t.PaymentRequired)
	}

	payment := &database.Payment{
		BookingID: b.ID,
		Amount:    amount,
		Currency:  o.currency,
		Method:    method,
		Status:    database.PaymentStatusSuccess,
	}
	switch {
	case cents(amount) < required:
		payment.Status = database.PaymentStatusFailed
		payment.FailureReason = strPtr(database.PaymentFailureInsufficientAmount)
	default:
		held, err := o.seatsHeld(ctx, b, tickets)
		if err != nil {
			return nil, err
		}
		if !held {
			payment.Status = database.PaymentStatusFailed
			payment.FailureReason = strPtr(database.PaymentFailureSeatMissing)
		}
	}
	if err := o.repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	if payment.Status == database.PaymentStatusSuccess {
		if err := o.confirm(ctx, b, tickets, now); err != nil {
			return nil, err
		}
	}

	payments, err := o.repo.ListPayments(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	return &models.PaymentResult{
		Payment: *payment,
		Booking: *o.assemble(b, tickets, payments),
	}, nil
}

// seatsHeld locks the booking's seats and reports whether each ticket's
// seat is still unavailable and owned by the booking.
func (o *Orchestrator) seatsHeld(ctx context.Context, b *database.Booking, tickets []database.Ticket) (bool, error) {
	fields := logrus.Fields{"booking_reference": b.BookingReference}
	if len(tickets) == 0 {
		o.violation("booking_without_tickets", fields, "booking %s has no tickets", b.BookingReference)
		return false, nil
	}

	ids := make([]int64, 0, len(tickets))
	for _, t := range tickets {
		if t.SeatID == nil {
			o.violation("ticket_without_seat", fields, "ticket %s of booking %s has no seat", t.ID, b.BookingReference)
			return false, nil
		}
		ids = append(ids, *t.SeatID)
	}

	seats, err := o.repo.LockSeatsByID(ctx, b.FlightID, ids)
	if err != nil {
		return false, err
	}
	owned := make(map[int64]bool, len(seats))
	for _, s := range seats {
		owned[s.ID] = !s.IsAvailable && s.BookingID != nil && *s.BookingID == b.ID
	}
	for _, id := range ids {
		if !owned[id] {
			o.violation("seat_not_held", fields, "seat %d of booking %s is not held by it", id, b.BookingReference)
			return false, nil
		}
	}
	return true, nil
}

// confirm assigns the PNR and numbers every ticket that has none yet.
func (o *Orchestrator) confirm(ctx context.Context, b *database.Booking, tickets []database.Ticket, now time.Time) error {
	pnr, err := o.codes.PNR(ctx, o.repo.PNRExists)
	if err != nil {
		return err
	}
	if err := o.repo.ConfirmBooking(ctx, b.ID, pnr, now); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return o.violation("confirm_pending", logrus.Fields{"booking_reference": b.BookingReference},
				"locked booking %s was not pending at confirmation", b.BookingReference)
		}
		return err
	}
	b.Status = database.BookingStatusConfirmed
	b.PNR = &pnr
	b.ConfirmedAt = &now
	b.UpdatedAt = now

	for i := range tickets {
		if tickets[i].TicketNumber != nil {
			continue
		}
		number, err := o.codes.TicketNumber(ctx, o.repo.TicketNumberExists)
		if err != nil {
			return err
		}
		issued, err := o.repo.IssueTicket(ctx, tickets[i].ID, number, now)
		if err != nil {
			return err
		}
		if issued {
			tickets[i].TicketNumber = &number
			tickets[i].IssuedAt = &now
		}
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
