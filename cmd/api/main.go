package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"

	"github.com/saysophanna/babybear-backend/api/routes"
	"github.com/saysophanna/babybear-backend/internal/checkout"
	"github.com/saysophanna/babybear-backend/internal/cron"
	"github.com/saysophanna/babybear-backend/internal/orders"
	"github.com/saysophanna/babybear-backend/internal/payments/bakong"
	"github.com/saysophanna/babybear-backend/internal/promo"
	"github.com/saysophanna/babybear-backend/internal/proofs"
	"github.com/saysophanna/babybear-backend/pkg/config"
	"github.com/saysophanna/babybear-backend/pkg/db"
	"github.com/saysophanna/babybear-backend/pkg/logger"
	"github.com/saysophanna/babybear-backend/pkg/metrics"
	"github.com/saysophanna/babybear-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "babybear-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "babybear-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
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

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	promoService, err := promo.NewService(promo.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create promo service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	proofStore, err := proofs.NewDiskStore(cfg.Upload.Dir, cfg.Upload.PublicBase)
	if err != nil {
		logg.Error(context.Background(), "failed to create proof store", err)
		os.Exit(1)
	}
	proofService, err := proofs.NewService(proofs.NewRepository(dbClient.DB()), proofStore, cfg.Upload.MaxUploadMB)
	if err != nil {
		logg.Error(context.Background(), "failed to create proof service", err)
		os.Exit(1)
	}

	gateway, err := bakong.NewClient(context.Background(), cfg.Bakong, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway client", err)
		os.Exit(1)
	}

	deliveryFee, err := decimal.NewFromString(cfg.Checkout.DeliveryFee)
	if err != nil {
		logg.Error(context.Background(), "invalid delivery fee configuration", err)
		os.Exit(1)
	}
	checkoutManager, err := checkout.NewManager(gateway, ordersService, promoService, proofService, checkout.Rules{
		PollInterval:         cfg.Checkout.PollInterval,
		PollTimeout:          cfg.Checkout.PollTimeout,
		DeliveryFee:          deliveryFee,
		FreeDeliveryMinItems: cfg.Checkout.FreeDeliveryMinItems,
	}, logg, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout manager", err)
		os.Exit(1)
	}

	proofCleanup, err := cron.NewProofCleanupJob(cron.ProofCleanupJobParams{
		Logger:     logg,
		Repo:       proofs.NewRepository(dbClient.DB()),
		Files:      proofStore,
		PublicBase: cfg.Upload.PublicBase,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create proof cleanup job", err)
		os.Exit(1)
	}
	cronService, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(proofCleanup),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}
	cronCtx, stopCron := context.WithCancel(context.Background())
	defer stopCron()
	go func() {
		if err := cronService.Run(cronCtx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(cronCtx, "cron service stopped unexpectedly", err)
		}
	}()

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
		Handler: routes.NewRouter(cfg, logg, dbClient, registry, checkoutManager, ordersService, promoService, proofService),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
			os.Exit(1)
		}
	}
}
