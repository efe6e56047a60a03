package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/cx-tal-miterani/flight-inventory/internal/activities"
	"github.com/cx-tal-miterani/flight-inventory/internal/booking"
	"github.com/cx-tal-miterani/flight-inventory/internal/config"
	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/logging"
	"github.com/cx-tal-miterani/flight-inventory/internal/notify"
	"github.com/cx-tal-miterani/flight-inventory/internal/simulator"
	"github.com/cx-tal-miterani/flight-inventory/internal/workflows"
	"github.com/cx-tal-miterani/flight-inventory/shared/models"
)

const notificationQueue = "booking-notifications"

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to database...")
	pool, err := database.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer pool.Close()
	if cfg.Postgres.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			logger.WithError(err).Fatal("Failed to migrate database")
		}
	}
	repo := database.NewRepository(pool)
	txm := database.NewTxManager(pool, cfg.Postgres.LockTimeout)

	orch := booking.NewOrchestrator(repo, txm,
		booking.WithCurrency(cfg.App.Currency),
		booking.WithHoldTTL(cfg.Booking.HoldTTL),
		booking.WithLogger(logger))
	sim := simulator.New(repo, txm,
		simulator.WithWindow(cfg.Simulator.Window),
		simulator.WithSeed(cfg.Simulator.Seed),
		simulator.WithLogger(logger))

	var publisher notify.Publisher = notify.NewLogPublisher(logger)
	if cfg.RabbitMQ.URL != "" {
		p, err := notify.DialAMQP(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer p.Close()
		publisher = p

		go func() {
			err := notify.Consume(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, notificationQueue, notifyPassenger(logger), logger)
			if err != nil {
				logger.WithError(err).Error("Booking notification consumer stopped")
			}
		}()
	}

	logger.WithField("host", cfg.Temporal.HostPort).Info("Connecting to Temporal...")
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(logger),
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Temporal")
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(workflows.HoldExpiryWorkflow, workflow.RegisterOptions{Name: "HoldExpiryWorkflow"})
	w.RegisterWorkflow(workflows.DemandSimulationWorkflow)

	acts := activities.New(orch, sim, publisher)
	w.RegisterActivityWithOptions(acts.ExpireBooking, activity.RegisterOptions{Name: activities.ExpireBookingName})
	w.RegisterActivityWithOptions(acts.RunDemandSimulation, activity.RegisterOptions{Name: activities.RunDemandSimulationName})

	if cfg.Simulator.Enabled {
		startSimulation(ctx, c, cfg, logger)
	}

	logger.WithField("taskQueue", cfg.Temporal.TaskQueue).Info("Starting Temporal worker...")
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.WithError(err).Fatal("Worker failed")
	}
}

// startSimulation starts the singleton simulation workflow. When it is
// already running the existing run is kept.
func startSimulation(ctx context.Context, c client.Client, cfg *config.Config, logger *logrus.Logger) {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        models.DemandSimulatorWorkflowID,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.DemandSimulationWorkflow, models.DemandSimulationInput{
		Interval: cfg.Simulator.Interval,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to start demand simulation")
		return
	}
	logger.WithFields(logrus.Fields{
		"workflowId": run.GetID(),
		"runId":      run.GetRunID(),
	}).Info("Demand simulation running")
}

// notifyPassenger stands in for the outbound email and SMS channel.
func notifyPassenger(logger *logrus.Logger) notify.Handler {
	return func(_ context.Context, event models.BookingEvent) error {
		logger.WithFields(logrus.Fields{
			"type":      event.Type,
			"reference": event.BookingReference,
			"pnr":       event.PNR,
			"user_id":   event.UserID,
		}).Info("Booking notification sent")
		return nil
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
