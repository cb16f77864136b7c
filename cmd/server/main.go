// channelsync keeps an upstream inventory system and a downstream
// marketplace consistent: stock levels flow out (webhook-driven pushes plus
// a periodic reconciliation sweep), orders and shipments flow in.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	appintegration "github.com/erp/channelsync/internal/application/integration"
	"github.com/erp/channelsync/internal/domain/integration"
	"github.com/erp/channelsync/internal/infrastructure/cache"
	"github.com/erp/channelsync/internal/infrastructure/config"
	"github.com/erp/channelsync/internal/infrastructure/inventory"
	"github.com/erp/channelsync/internal/infrastructure/logger"
	"github.com/erp/channelsync/internal/infrastructure/marketplace"
	"github.com/erp/channelsync/internal/infrastructure/persistence"
	"github.com/erp/channelsync/internal/infrastructure/retry"
	"github.com/erp/channelsync/internal/infrastructure/scheduler"
	"github.com/erp/channelsync/internal/infrastructure/store"
	"github.com/erp/channelsync/internal/infrastructure/telemetry"
	"github.com/erp/channelsync/internal/interfaces/http/handler"
	"github.com/erp/channelsync/internal/interfaces/http/router"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "channelsync: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	ctx := context.Background()

	// Telemetry providers. Each degrades to a no-op when disabled.
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize meter provider: %w", err)
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilerEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeAddress,
		ApplicationName: cfg.App.Name,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize profiler: %w", err)
	}

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.TracingEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
		SpanProfiles:      cfg.Telemetry.ProfilerEnabled,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize tracer provider: %w", err)
	}

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.App.Name,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("initialize logger provider: %w", err)
	}
	log = log.WithOptions(zap.WrapCore(loggerProvider.WrapZapCore))

	syncMetrics, err := telemetry.NewSyncMetrics(meterProvider.Meter("channelsync"))
	if err != nil {
		return fmt.Errorf("initialize sync metrics: %w", err)
	}

	// Mapping stores and the mapper facade.
	productStore := store.NewMappingStore(store.MappingStoreConfig{
		Path:             cfg.Mapping.ProductFile,
		LockPollInterval: cfg.Mapping.LockPollInterval,
		LockTimeout:      cfg.Mapping.LockTimeout,
	}, log)
	orderStore := store.NewOrderMappingStore(store.OrderMappingStoreConfig{
		Path:             cfg.Mapping.OrderFile,
		LockPollInterval: cfg.Mapping.LockPollInterval,
		LockTimeout:      cfg.Mapping.LockTimeout,
	}, log)
	mapper := appintegration.NewMapper(productStore, orderStore, syncMetrics, log)

	// A corrupt mapping file on the startup path is fatal: running without
	// the id table would skip every item and push nothing.
	count, err := mapper.LoadMappings(ctx)
	if err != nil {
		return fmt.Errorf("load product mappings: %w", err)
	}
	log.Info("Product mappings loaded", zap.Int("count", count))

	// Upstream clients.
	inventoryClient := inventory.NewClient(inventory.Config{
		BaseURL:        cfg.Inventory.BaseURL,
		APIKey:         cfg.Inventory.APIKey,
		RequestTimeout: cfg.Inventory.RequestTimeout,
	}, log)
	marketplaceClient := marketplace.NewClient(marketplace.Config{
		BaseURL:        cfg.Marketplace.BaseURL,
		APIKey:         cfg.Marketplace.APIKey,
		RequestTimeout: cfg.Marketplace.RequestTimeout,
		WarehouseID:    cfg.Marketplace.WarehouseID,
		PushRetry: retry.Config{
			MaxRetries: cfg.Marketplace.MaxRetries,
			BaseDelay:  cfg.Marketplace.PushRetryBaseDelay,
		},
		PollRetry: retry.Config{
			MaxRetries: cfg.Marketplace.MaxRetries,
			BaseDelay:  cfg.Marketplace.PollRetryBaseDelay,
		},
	}, log)

	// Processed-order de-dup set: Redis when configured, in-memory default.
	var processed integration.ProcessedOrderStore
	var resetter handler.ProcessedResetter
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisProcessedOrderStore(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		processed = redisStore
	} else {
		memStore := cache.NewInMemoryProcessedOrderStore()
		processed = memStore
		resetter = memStore
	}
	defer processed.Close()

	// Optional run history.
	var runRepo *persistence.SyncRunRepository
	var recorder scheduler.RunRecorder
	var runLister handler.RunLister
	if cfg.History.Enabled {
		runRepo, err = persistence.NewSyncRunRepository(cfg.History.Path, log)
		if err != nil {
			return fmt.Errorf("open sync run history: %w", err)
		}
		defer runRepo.Close()
		recorder = runRepo
		runLister = runRepo
	}

	// Synchronizers and the scheduler on top of them.
	stockSync := appintegration.NewStockSynchronizer(mapper, inventoryClient, marketplaceClient, syncMetrics, log)
	orderSync := appintegration.NewOrderSynchronizer(mapper, inventoryClient, marketplaceClient, processed, syncMetrics, log)

	syncScheduler := scheduler.NewSyncScheduler(scheduler.Config{
		StockSyncInterval: cfg.Sync.StockSyncInterval(),
		OrderPollInterval: cfg.Sync.OrderPollInterval(),
		HistorySize:       cfg.Sync.RunHistorySize,
	}, stockSync, orderSync, recorder, log)

	if cfg.Sync.Enabled {
		syncScheduler.Start(ctx)
	} else {
		log.Info("Periodic sync disabled, sweeps run on manual trigger only")
	}

	// HTTP surface.
	engine := router.New(router.Config{
		ServiceName:    cfg.App.Name,
		Env:            cfg.App.Env,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		TracingEnabled: cfg.Telemetry.TracingEnabled,
	}, router.Handlers{
		System: handler.NewSystemHandler(cfg.App.Name),
		Webhook: handler.NewWebhookHandler(handler.WebhookConfig{
			Token:             cfg.Webhook.Token,
			ExpectedUserAgent: cfg.Webhook.ExpectedUserAgent,
			AllowedResources:  cfg.Webhook.AllowedResources,
		}, stockSync, syncMetrics, log),
		Sync: handler.NewSyncHandler(syncScheduler, mapper, runLister, resetter, log),
	}, log)

	server := &http.Server{
		Addr:         cfg.HTTP.Host + ":" + cfg.HTTP.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-quit:
		log.Info("Shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Error("Scheduler stop failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer provider shutdown failed", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter provider shutdown failed", zap.Error(err))
	}
	if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Logger provider shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Profiler stop failed", zap.Error(err))
	}

	log.Info("Shutdown complete")
	return nil
}
