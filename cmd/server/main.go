package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/cx-tal-miterani/flight-inventory/internal/booking"
	"github.com/cx-tal-miterani/flight-inventory/internal/cache"
	"github.com/cx-tal-miterani/flight-inventory/internal/config"
	"github.com/cx-tal-miterani/flight-inventory/internal/database"
	"github.com/cx-tal-miterani/flight-inventory/internal/handlers"
	"github.com/cx-tal-miterani/flight-inventory/internal/logging"
	"github.com/cx-tal-miterani/flight-inventory/internal/middleware"
	"github.com/cx-tal-miterani/flight-inventory/internal/notify"
	"github.com/cx-tal-miterani/flight-inventory/internal/retry"
	"github.com/cx-tal-miterani/flight-inventory/internal/router"
	"github.com/cx-tal-miterani/flight-inventory/internal/service"
	"github.com/cx-tal-miterani/flight-inventory/internal/websocket"
)

const (
	idempotencyTTL  = 24 * time.Hour
	cachePurgeEvery = time.Minute
	shutdownTimeout = 30 * time.Second
	// seatUpdatesQueue receives holds expired by the worker.
	seatUpdatesQueue = "seat-updates"
)

func main() {
	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	var (
		store    cache.Cache
		memCache *cache.MemoryCache
	)
	if cfg.Cache.Backend == "redis" {
		rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer rdb.Close()
		store = cache.NewRedisCache(rdb, "fi:")
	} else {
		memCache = cache.NewMemoryCache(time.Now)
		store = memCache
	}

	deps := service.Deps{
		Store:        repo,
		Orchestrator: orch,
		Cache:        store,
		Logger:       logger,
	}

	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalLogger(logger),
	})
	if err != nil {
		logger.WithError(err).Warn("Temporal unavailable, holds are expired by the sweep only")
	} else {
		defer temporalClient.Close()
		deps.Workflows = temporalClient
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := notify.DialAMQP(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer publisher.Close()
		deps.Publisher = publisher
	}

	hub := websocket.NewHub(logger)
	deps.Broadcaster = hub

	bookingService := service.NewBookingService(deps, service.Config{
		TaskQueue: cfg.Temporal.TaskQueue,
		SearchTTL: cfg.Cache.SearchTTL,
		Retry: retry.Policy{
			MaxRetries:   cfg.Booking.RetryMax,
			InitialDelay: cfg.Booking.RetryInitialDelay,
			Multiplier:   cfg.Booking.RetryMultiplier,
			MaxDelay:     2 * time.Second,
		},
	})

	h := handlers.NewHandler(bookingService, logger)
	r := router.SetupRouter(h, router.Options{
		Auth:        middleware.Auth(cfg.Auth.JWTSecret),
		RateLimit:   middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst).Middleware,
		Idempotency: middleware.Idempotency(store, idempotencyTTL, logger),
		WebSocket:   hub.ServeWS,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"port":     cfg.HTTP.Port,
			"temporal": cfg.Temporal.HostPort,
		}).Info("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error { return bookingService.RunExpirySweep(gctx, cfg.Booking.SweepInterval) })
	if memCache != nil {
		g.Go(func() error { return memCache.Run(gctx, cachePurgeEvery) })
	}
	if cfg.RabbitMQ.URL != "" {
		g.Go(func() error {
			err := notify.Consume(gctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, seatUpdatesQueue, bookingService.HandleBookingEvent, logger)
			if err != nil {
				logger.WithError(err).Error("Seat update consumer stopped")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}
	logger.Info("Server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
