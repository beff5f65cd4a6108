// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership-payments/internal/config"
	"membership-payments/internal/domain/ports/adapter"
	pg "membership-payments/internal/infra/db/postgres"
	"membership-payments/internal/infra/logging"
	pay "membership-payments/internal/infra/payment"
	red "membership-payments/internal/infra/redis"
	"membership-payments/internal/infra/sched"
	"membership-payments/internal/infra/web"
	"membership-payments/internal/infra/worker"
	"membership-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logging, relaxed gates)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	logger.Info().Str("environment", cfg.Environment).Msg("starting membership-payments")

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	sessions := red.NewPendingPaymentStore(redisClient, cfg.Redis.SessionTTL)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	planRepo := pg.NewPlanRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	eventRepo := pg.NewEventRepo(pool)
	donationRepo := pg.NewDonationRepo(pool)

	// ---- Gateways ----
	gateways := []adapter.PaymentGateway{
		pay.NewPesapalGateway(cfg.Payment.Pesapal),
	}
	if cfg.MockEndpointsAllowed() {
		gateways = append(gateways, pay.NewMockGateway(sessions, cfg.Redis.SessionTTL, cfg.Server.FrontendURL))
	}
	registry := pay.NewRegistry(cfg.Payment.DefaultGateway, gateways...)

	// ---- Use cases ----
	callbackURL := cfg.Payment.Pesapal.CallbackURL
	sessionTTL := cfg.Redis.SessionTTL

	activator := usecase.NewActivator(subRepo, userRepo, eventRepo, donationRepo, logger)
	webhookUC := usecase.NewWebhookUseCase(tm, paymentRepo, sessions, registry, activator, logger)
	paymentUC := usecase.NewPaymentUseCase(tm, paymentRepo, eventRepo, logger)
	subUC := usecase.NewSubscriptionUseCase(tm, subRepo, planRepo, userRepo, paymentRepo, sessions, registry, sessionTTL, callbackURL, logger)
	orderUC := usecase.NewEventOrderUseCase(tm, eventRepo, subRepo, paymentRepo, sessions, registry, sessionTTL, callbackURL, logger)
	donationUC := usecase.NewDonationUseCase(tm, donationRepo, paymentRepo, sessions, registry, sessionTTL, callbackURL, logger)

	// ---- Webhook worker pool ----
	wpool := worker.NewPool(8, logger)
	wpool.Start(ctx)
	defer wpool.Stop()

	// ---- Background workers ----
	reconciler := sched.NewPaymentReconciler(webhookUC, paymentRepo, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.StaleAfter, logger)
	go func() { _ = reconciler.Run(ctx) }()

	sweeper := sched.NewSessionSweeper(sessions, paymentRepo, cfg.Scheduler.SweepInterval, logger)
	go func() { _ = sweeper.Run(ctx) }()

	expiry := sched.NewExpiryWorker(time.Hour, subUC, logger)
	go func() { _ = expiry.Run(ctx) }()

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Environment == "production", "", cfg.Admin.SessionTTL)
	srv := web.NewServer(cfg, subUC, orderUC, donationUC, paymentUC, webhookUC, wpool, rateLimiter, auth, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	cancel()
}
