package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/academix-erp/academix/internal/accounting"
	"github.com/academix-erp/academix/internal/app"
	"github.com/academix-erp/academix/internal/ar"
	"github.com/academix-erp/academix/internal/auth"
	"github.com/academix-erp/academix/internal/observability"
	"github.com/academix-erp/academix/internal/platform/cache"
	"github.com/academix-erp/academix/internal/platform/db"
	"github.com/academix-erp/academix/internal/pricing"
	"github.com/academix-erp/academix/internal/reporting"
	"github.com/academix-erp/academix/internal/settings"
	"github.com/academix-erp/academix/internal/shared"
	"github.com/academix-erp/academix/internal/vouchers"
	"github.com/academix-erp/academix/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// A missing Redis only disables the statement cache, it never blocks boot.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, statement cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(dbpool)
	metrics := observability.NewMetrics()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)

	accountingRepo := accounting.NewRepository(dbpool)
	accountingService := accounting.NewService(accountingRepo, auditLogger)
	accountingHandler := accounting.NewHandler(logger, accountingService, metrics)

	vouchersRepo := vouchers.NewRepository(dbpool)
	vouchersService := vouchers.NewService(vouchersRepo, auditLogger)
	vouchersHandler := vouchers.NewHandler(logger, vouchersService, metrics)

	pricingRepo := pricing.NewRepository(dbpool)
	pricingService := pricing.NewService(pricingRepo)
	pricingHandler := pricing.NewHandler(logger, pricingService)

	settingsRepo := settings.NewRepository(dbpool)
	settingsService := settings.NewService(settingsRepo)

	arRepo := ar.NewRepository(dbpool)
	arService := ar.NewService(arRepo, pricingService, settingsService, vouchersService, auditLogger)
	arHandler := ar.NewHandler(logger, arService, metrics)

	statementCache := cache.NewCache(redisClient, cfg.CacheTTL)
	reportingService := reporting.NewService(accountingService, statementCache)
	reportingHandler := reporting.NewHandler(logger, reportingService)

	// Ledger writes expire every cached statement at once.
	accountingService.SetStatementInvalidator(reportingService)
	vouchersService.SetStatementInvalidator(reportingService)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("asynq client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthService:       authService,
		AccountingHandler: accountingHandler,
		VouchersHandler:   vouchersHandler,
		ARHandler:         arHandler,
		PricingHandler:    pricingHandler,
		ReportingHandler:  reportingHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
