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

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/customers"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/locations"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/products"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/suppliers"
	"github.com/meridian-erp/meridian-erp/internal/masterdata/taxes"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/procurement"
	"github.com/meridian-erp/meridian-erp/internal/sales/invoices"
	"github.com/meridian-erp/meridian-erp/internal/sales/quotations"
	"github.com/meridian-erp/meridian-erp/internal/sequence"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, tax rate caching disabled", slog.Any("error", err))
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

	allocator := sequence.NewAllocator(sequence.NewRepository(pool))
	auditor := shared.NewAuditLogger(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)
	idempotency := shared.NewIdempotencyStore(pool)

	productsService := products.NewService(products.NewRepository(pool))
	locationsService := locations.NewService(locations.NewRepository(pool))
	customersService := customers.NewService(customers.NewRepository(pool), allocator)
	suppliersService := suppliers.NewService(suppliers.NewRepository(pool), allocator)

	taxesService := taxes.NewService(taxes.NewRepository(pool))
	rates := taxes.NewRateCache(taxesService, redisClient, cfg.TaxCacheTTL)

	inventoryService := inventory.NewService(inventory.NewRepository(pool), logger)

	invoicesService := invoices.NewService(invoices.NewRepository(pool), allocator, rates,
		inventoryService, approvals, auditor, logger, cfg.DefaultLocationID)
	quotationsService := quotations.NewService(quotations.NewRepository(pool), allocator, rates,
		invoicesService, auditor, logger)

	procurementService := procurement.NewService(procurement.NewRepository(pool), allocator, rates,
		inventoryService, idempotency, approvals, auditor, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProductsHandler:    products.NewHandler(logger, productsService),
		LocationsHandler:   locations.NewHandler(logger, locationsService),
		CustomersHandler:   customers.NewHandler(logger, customersService),
		SuppliersHandler:   suppliers.NewHandler(logger, suppliersService),
		TaxesHandler:       taxes.NewHandler(logger, taxesService),
		InventoryHandler:   inventory.NewHandler(logger, inventoryService),
		QuotationsHandler:  quotations.NewHandler(logger, quotationsService),
		InvoicesHandler:    invoices.NewHandler(logger, invoicesService),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
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
