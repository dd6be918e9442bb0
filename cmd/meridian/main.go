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

	"github.com/meridian-moto/meridian-erp/internal/accounting/accounts"
	"github.com/meridian-moto/meridian-erp/internal/accounting/journals"
	"github.com/meridian-moto/meridian-erp/internal/accounting/periods"
	"github.com/meridian-moto/meridian-erp/internal/ap"
	"github.com/meridian-moto/meridian-erp/internal/app"
	"github.com/meridian-moto/meridian-erp/internal/cod"
	"github.com/meridian-moto/meridian-erp/internal/creditnote"
	"github.com/meridian-moto/meridian-erp/internal/inventory"
	"github.com/meridian-moto/meridian-erp/internal/observability"
	"github.com/meridian-moto/meridian-erp/internal/platform/cache"
	"github.com/meridian-moto/meridian-erp/internal/platform/db"
	"github.com/meridian-moto/meridian-erp/internal/reports"
	"github.com/meridian-moto/meridian-erp/internal/shared"
	"github.com/meridian-moto/meridian-erp/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// Reports fall back to direct queries when the cache is unavailable.
		logger.Warn("connect redis", slog.Any("error", err))
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
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	accountsRepo := accounts.NewRepository(dbpool)
	accountsService := accounts.NewService(accountsRepo)
	accountsHandler := accounts.NewHandler(logger, accountsService)

	periodsRepo := periods.NewRepository(dbpool)
	periodsService := periods.NewService(periodsRepo, auditLogger)
	periodsHandler := periods.NewHandler(logger, periodsService)

	journalsRepo := journals.NewRepository(dbpool)
	journalsService := journals.NewService(journalsRepo, auditLogger)
	journalsHandler := journals.NewHandler(logger, journalsService)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, jobsClient)

	apRepo := ap.NewRepository(dbpool)
	apService := ap.NewService(apRepo, auditLogger, ap.LedgerAccounts{
		AccountsPayable: cfg.AccountAP,
	})
	apHandler := ap.NewHandler(logger, apService)

	creditNoteRepo := creditnote.NewRepository(dbpool)
	creditNoteService := creditnote.NewService(creditNoteRepo, auditLogger, creditnote.LedgerAccounts{
		SalesReturns:       cfg.AccountSalesReturns,
		TaxPayable:         cfg.AccountTaxPayable,
		AccountsReceivable: cfg.AccountAR,
		Cash:               cfg.AccountCash,
	})
	creditNoteHandler := creditnote.NewHandler(logger, creditNoteService)

	codRepo := cod.NewRepository(dbpool)
	codService := cod.NewService(codRepo, auditLogger, cod.LedgerAccounts{
		CodClearing: cfg.AccountCodClearing,
		Cash:        cfg.AccountCash,
	})
	codHandler := cod.NewHandler(logger, codService)

	reportsRepo := reports.NewRepository(dbpool)
	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	reportsService := reports.NewService(reportsRepo, reportsCache, cfg.AccountTaxPayable)
	reportsHandler := reports.NewHandler(logger, reportsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, jobsClient, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AccountsHandler:   accountsHandler,
		PeriodsHandler:    periodsHandler,
		JournalsHandler:   journalsHandler,
		InventoryHandler:  inventoryHandler,
		APHandler:         apHandler,
		CreditNoteHandler: creditNoteHandler,
		CodHandler:        codHandler,
		ReportsHandler:    reportsHandler,
		JobsHandler:       jobsHandler,
		Metrics:           metrics,
		Idempotency:       idempotencyStore,
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
