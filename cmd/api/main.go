package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/pimartlabs/pimart-backend/api/routes"
	"github.com/pimartlabs/pimart-backend/internal/memberships"
	"github.com/pimartlabs/pimart-backend/internal/orders"
	"github.com/pimartlabs/pimart-backend/internal/payments"
	"github.com/pimartlabs/pimart-backend/internal/payouts"
	"github.com/pimartlabs/pimart-backend/internal/reconcile"
	"github.com/pimartlabs/pimart-backend/internal/stock"
	"github.com/pimartlabs/pimart-backend/internal/users"
	"github.com/pimartlabs/pimart-backend/internal/xref"
	"github.com/pimartlabs/pimart-backend/pkg/config"
	"github.com/pimartlabs/pimart-backend/pkg/db"
	"github.com/pimartlabs/pimart-backend/pkg/logger"
	"github.com/pimartlabs/pimart-backend/pkg/migrate"
	"github.com/pimartlabs/pimart-backend/pkg/outbox"
	"github.com/pimartlabs/pimart-backend/pkg/pinetwork"
	"github.com/pimartlabs/pimart-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	ordersRepo := orders.NewRepository(gormDB)
	xrefRepo := xref.NewRepository(gormDB)
	paymentsRepo := payments.NewRepository(gormDB)
	payoutsRepo := payouts.NewRepository(gormDB)

	adjuster, err := stock.NewAdjuster(stock.NewRepository(gormDB))
	if err != nil {
		logg.Error(context.Background(), "failed to create stock adjuster", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(ordersRepo, dbClient, outboxSvc, adjuster)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	xrefSvc, err := xref.NewService(xrefRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cross reference service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(paymentsRepo, dbClient, outboxSvc, platformClient, xrefSvc, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	membershipsSvc, err := memberships.NewService(memberships.NewRepository(gormDB), usersRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create memberships service", err)
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

	orchestrator, err := reconcile.New(reconcile.Options{
		Platform:    platformClient,
		Payments:    paymentsSvc,
		Orders:      ordersSvc,
		OrderReader: ordersRepo,
		Xrefs:       xrefSvc,
		Memberships: membershipsSvc,
		Users:       usersRepo,
		Collector:   collector,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile orchestrator", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, orchestrator),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
