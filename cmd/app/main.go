package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"framely/internal/config"
	pg "framely/internal/infra/db/postgres"
	"framely/internal/infra/logging"
	"framely/internal/infra/metrics"
	pay "framely/internal/infra/payment"
	red "framely/internal/infra/redis"
	"framely/internal/infra/sched"
	"framely/internal/infra/web"
	"framely/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, sandbox gateway)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	if err := pg.RunMigrations(ctx, pool, logger); err != nil {
		logger.Fatal().Err(err).Msg("migrations")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Metrics ----
	met := metrics.New(prometheus.DefaultRegisterer)

	// ---- Repositories ----
	campaignRepo := pg.NewCampaignRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	auditRepo := pg.NewAuditRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Payment gateway ----
	cfCfg := cfg.Payment.Cashfree
	gateway := pay.NewCashfreeDirectGateway(cfCfg.AppID, cfCfg.SecretKey, cfCfg.Sandbox || cfg.Runtime.Dev)
	logger.Info().Str("gateway", gateway.Name()).Bool("sandbox", cfCfg.Sandbox || cfg.Runtime.Dev).Msg("payment gateway configured")

	// ---- Use cases ----
	activationUC := usecase.NewActivationUseCase(campaignRepo, userRepo, auditRepo, txManager, met, logger)
	ledgerUC := usecase.NewLedgerUseCase(paymentRepo, campaignRepo, userRepo, auditRepo, gateway, activationUC, txManager, met, logger, cfCfg.ReturnURL, cfCfg.NotifyURL)
	sweepUC := usecase.NewSweepUseCase(campaignRepo, auditRepo, txManager, cfg.Jobs.BatchSize, met, logger)
	reconcileUC := usecase.NewReconcileUseCase(campaignRepo, paymentRepo, userRepo, auditRepo, activationUC, txManager, cfg.Jobs.BatchSize, met, logger)
	adminUC := usecase.NewAdminUseCase(activationUC, sweepUC, reconcileUC, campaignRepo, paymentRepo, logger)

	// ---- Background jobs ----
	sweepWorker := sched.NewSweepWorker(cfg.Jobs.SweepInterval, sweepUC, locker, logger)
	go func() {
		if err := sweepWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("sweep worker stopped")
		}
	}()
	reconcileWorker := sched.NewReconcileWorker(cfg.Jobs.ReconcileInterval, reconcileUC, locker, logger)
	go func() {
		if err := reconcileWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("reconcile worker stopped")
		}
	}()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Admin.SessionSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	server := web.NewServer(ledgerUC, activationUC, adminUC, auth, rateLimiter, cfg.Admin.APIKey, cfCfg.WebhookSecret, logger)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", httpSrv.Addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
