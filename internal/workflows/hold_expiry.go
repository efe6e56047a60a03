// Package workflows holds the Temporal workflows run by the worker.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/cx-tal-miterani/flight-inventory/internal/activities"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

// DefaultHoldTTL applies when the caller does not pass a hold duration
const DefaultHoldTTL = 15 * time.Minute

// HoldExpiryWorkflow waits out a booking's hold and expires the booking
// unless it is settled first. The server signals SignalBookingSettled after
// a successful payment or a cancellation.
func HoldExpiryWorkflow(ctx workflow.Context, input models.HoldExpiryInput) (*models.HoldExpiryResult, error) {
	logger := workflow.GetLogger(ctx)

	ttl := input.HoldTTL
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	state := models.HoldExpiryState{
		BookingID: input.BookingID,
		ExpiresAt: workflow.Now(ctx).Add(ttl),
	}
	logger.Info("Hold expiry workflow started", "bookingId", input.BookingID, "expiresAt", state.ExpiresAt)

	err := workflow.SetQueryHandler(ctx, models.QueryGetState, func() (models.HoldExpiryState, error) {
		return state, nil
	})
	if err != nil {
		return nil, err
	}

	timerCtx, cancelTimer := workflow.WithCancel(ctx)
	timer := workflow.NewTimer(timerCtx, ttl)
	settledCh := workflow.GetSignalChannel(ctx, models.SignalBookingSettled)

	selector := workflow.NewSelector(ctx)
	selector.AddReceive(settledCh, func(c workflow.ReceiveChannel, more bool) {
		c.Receive(ctx, nil)
		state.Settled = true
		cancelTimer()
	})
	selector.AddFuture(timer, func(f workflow.Future) {})
	selector.Select(ctx)

	result := &models.HoldExpiryResult{BookingID: input.BookingID}
	if state.Settled {
		logger.Info("Booking settled before hold expiry", "bookingId", input.BookingID)
		result.Settled = true
		return result, nil
	}

	actCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    10,
		},
	})
	var expired bool
	if err := workflow.ExecuteActivity(actCtx, activities.ExpireBookingName, input.BookingID).Get(ctx, &expired); err != nil {
		logger.Error("Failed to expire booking", "bookingId", input.BookingID, "error", err)
		return nil, err
	}

	state.Expired = expired
	result.Expired = expired
	logger.Info("Hold expiry workflow finished", "bookingId", input.BookingID, "expired", expired)
	return result, nil
}
