package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pimartlabs/pimart-backend/internal/payments"
	"github.com/pimartlabs/pimart-backend/internal/payouts"
	"github.com/pimartlabs/pimart-backend/internal/users"
	"github.com/pimartlabs/pimart-backend/internal/xref"
	"github.com/pimartlabs/pimart-backend/pkg/config"
	"github.com/pimartlabs/pimart-backend/pkg/db"
	"github.com/pimartlabs/pimart-backend/pkg/logger"
	"github.com/pimartlabs/pimart-backend/pkg/metrics"
	"github.com/pimartlabs/pimart-backend/pkg/migrate"
	"github.com/pimartlabs/pimart-backend/pkg/outbox"
	"github.com/pimartlabs/pimart-backend/pkg/pinetwork"
	"github.com/pimartlabs/pimart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "payout-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "payout-worker"

	logg = logger.New(logger.Options{
		ServiceName: "payout-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	platformClient, err := pinetwork.New(cfg.Platform)
	if err != nil {
		logg.Error(context.Background(), "failed to create platform client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gormDB), logg)

	usersRepo := users.NewRepository(gormDB)
	payoutsRepo := payouts.NewRepository(gormDB)

	xrefSvc, err := xref.NewService(xref.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create cross reference service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.NewRepository(gormDB), dbClient, outboxSvc, platformClient, xrefSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	gasFee, err := cfg.Payout.GasFeeAmount()
	if err != nil {
		logg.Error(context.Background(), "failed to parse gas fee", err)
		os.Exit(1)
	}

	collector, err := payouts.NewCollector(xrefSvc, usersRepo, payoutsRepo, gasFee, cfg.Payout.RecencyWindow, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout collector", err)
		os.Exit(1)
	}

	lock, err := payouts.NewRedisLock(redisClient, redisClient.LockKey("payout-worker"), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout lock", err)
		os.Exit(1)
	}

	workerMetrics := metrics.NewWorkerMetrics(prometheus.DefaultRegisterer)

	worker, err := payouts.NewWorker(payouts.WorkerOptions{
		Queue:       payoutsRepo,
		Payments:    paymentsSvc,
		Users:       usersRepo,
		Xrefs:       xrefSvc,
		Collector:   collector,
		Lock:        lock,
		TxRunner:    dbClient,
		Outbox:      outboxSvc,
		Logger:      logg,
		Metrics:     workerMetrics,
		MaxAttempts: cfg.Payout.MaxAttempts,
		Window:      cfg.Payout.RecencyWindow,
		Tick:        cfg.Payout.TickInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting payout worker")

	go serveMetrics(ctx, logg)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "payout worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "payout worker shutting down gracefully")
}

func serveMetrics(ctx context.Context, logg *logger.Logger) {
	port := os.Getenv("METRICS_PORT")
	if port == "" {
		port = "9091"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "metrics server stopped unexpectedly", err)
	}
}
