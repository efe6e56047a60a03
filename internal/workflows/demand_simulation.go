package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/cx-tal-miterani/flight-inventory/internal/activities"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

const (
	DefaultSimulationInterval = 5 * time.Minute
	// DefaultRoundsBeforeContinue keeps the history of the long running
	// simulation loop bounded.
	DefaultRoundsBeforeContinue = 100
)

// DemandSimulationWorkflow runs a simulator round every interval. It
// continues as new after RoundsBeforeContinue rounds and stops after
// Rounds rounds when Rounds is positive. A failed round is logged and the
// loop carries on.
func DemandSimulationWorkflow(ctx workflow.Context, input models.DemandSimulationInput) error {
	logger := workflow.GetLogger(ctx)

	interval := input.Interval
	if interval <= 0 {
		interval = DefaultSimulationInterval
	}
	perRun := input.RoundsBeforeContinue
	if perRun <= 0 {
		perRun = DefaultRoundsBeforeContinue
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	})

	for round := 1; ; round++ {
		var report models.SimulationReport
		err := workflow.ExecuteActivity(ctx, activities.RunDemandSimulationName).Get(ctx, &report)
		if err != nil {
			logger.Error("Demand simulation round failed", "round", round, "error", err)
		} else {
			logger.Info("Demand simulation round done", "round", round, "seatsSold", report.SeatsSold, "escalated", len(report.Escalated))
		}

		if input.Rounds > 0 && round >= input.Rounds {
			return nil
		}
		if err := workflow.Sleep(ctx, interval); err != nil {
			return err
		}
		if round >= perRun {
			next := input
			if next.Rounds > 0 {
				next.Rounds -= round
			}
			return workflow.NewContinueAsNewError(ctx, DemandSimulationWorkflow, next)
		}
	}
}
