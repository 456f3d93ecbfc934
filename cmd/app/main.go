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

	"github.com/go-chi/chi/v5"

	"agri-sponsorship/internal/config"
	"agri-sponsorship/internal/infra/adapters/activation"
	"agri-sponsorship/internal/infra/adapters/delivery"
	pg "agri-sponsorship/internal/infra/db/postgres"
	"agri-sponsorship/internal/infra/logging"
	"agri-sponsorship/internal/infra/metrics"
	red "agri-sponsorship/internal/infra/redis"
	"agri-sponsorship/internal/infra/sched"
	"agri-sponsorship/internal/infra/web"
	"agri-sponsorship/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed auth)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 30*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	codeRepo := pg.NewCodeRepo(pool)
	purchaseRepo := pg.NewPurchaseRepo(pool)
	tierRepo := pg.NewTierRepoCacheDecorator(pg.NewTierRepo(pool), redisClient)
	analysisRepo := pg.NewAnalysisRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	txm := pg.NewTxManager(pool)
	auditSink := pg.NewAuditSink(pool)

	// ---- Adapters ----
	activator := activation.NewPostgresActivator(pool, logger)
	deliverer := delivery.NewLogDelivery(cfg.Delivery.RedemptionBase, cfg.Runtime.Dev, logger)

	// ---- Use cases ----
	purchaseUC := usecase.NewPurchaseUseCase(purchaseRepo, codeRepo, tierRepo, txm, auditSink, logger)
	allocUC := usecase.NewAllocationUseCase(codeRepo, tierRepo, txm, locker, logger)
	distUC := usecase.NewDistributionUseCase(allocUC, deliverer, cfg.Delivery.Workers, logger)
	redeemUC := usecase.NewRedemptionUseCase(codeRepo, purchaseRepo, activator, txm, rateLimiter, logger)
	disclosureUC := usecase.NewDisclosureUseCase(analysisRepo, userRepo, purchaseRepo, tierRepo, auditSink, logger)
	codeAdminUC := usecase.NewCodeAdminUseCase(codeRepo, txm, auditSink, logger)
	statsUC := usecase.NewStatsUseCase(purchaseRepo, logger)

	// ---- HTTP server ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	srv := web.NewServer(purchaseUC, allocUC, distUC, redeemUC, disclosureUC, codeAdminUC, statsUC, auth, cfg.Admin.APIKey, logger)

	router := chi.NewRouter()
	srv.RegisterRoutes(router)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: router}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Reservation sweeper ----
	sweeper := sched.NewReservationSweeper(cfg.Codes.SweepInterval, cfg.Codes.ReservationMaxAge, allocUC, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
}
