package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"lpg-service/internal/api"
	"lpg-service/internal/api/handlers"
	"lpg-service/internal/audit"
	"lpg-service/internal/auth"
	"lpg-service/internal/cache"
	"lpg-service/internal/config"
	"lpg-service/internal/database"
	"lpg-service/internal/logging"
	"lpg-service/internal/pricing"
	"lpg-service/internal/realtime"
	"lpg-service/internal/repository"
	"lpg-service/internal/service"
	"lpg-service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to postgres", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.DBName))

	if err := database.Migrate(ctx, pool, logger); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()

	var auditor audit.Auditor = audit.Noop{}
	if cfg.MongoDB.URI != "" {
		mongoAuditor, err := audit.NewMongoAuditor(ctx, cfg.MongoDB)
		if err != nil {
			logger.Warn("audit trail disabled, mongodb unavailable", zap.Error(err))
		} else {
			defer mongoAuditor.Close(context.Background())
			auditor = mongoAuditor
			logger.Info("audit trail enabled", zap.String("database", cfg.MongoDB.Database))
		}
	}

	var images storage.ImageStore = storage.Disabled{}
	if cfg.Storage.Bucket != "" {
		client, err := gcs.NewClient(ctx)
		if err != nil {
			logger.Warn("image uploads disabled, storage client failed", zap.Error(err))
		} else {
			defer client.Close()
			images = storage.NewGCSImageStore(client, cfg.Storage.Bucket, cfg.Storage.PublicBaseURL)
			logger.Info("image uploads enabled", zap.String("bucket", cfg.Storage.Bucket))
		}
	}

	swapPrice, err := cfg.Pricing.SwapPrice()
	if err != nil {
		return err
	}

	hub := realtime.NewHub(cfg.Realtime.BufferSize, logger)
	broker := realtime.NewRedisBroker(rdb, cfg.Realtime.ChannelPrefix)
	relay := realtime.NewRelay(broker, hub, logger, 0)

	relayDone := make(chan error, 1)
	go func() { relayDone <- relay.Run(ctx) }()

	products := cache.NewCachedProductRepository(repository.NewProductRepository(pool), rdb, logger)
	orders := repository.NewOrderRepository(pool)
	carts := repository.NewCartRepository(pool)

	notifier := service.NewNotifier(broker, auditor, logger)
	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, auth.NewRedisDenylist(rdb))

	catalog := service.NewCatalogService(
		products,
		repository.NewOperationRepository(pool),
		repository.NewStockAlertRepository(pool),
		orders,
		images,
		notifier,
		service.CatalogConfig{LowStockThreshold: cfg.Stock.LowThreshold, MaxImageBytes: cfg.Storage.MaxImageBytes},
		logger,
	)
	authService := service.NewAuthService(repository.NewUserRepository(pool), repository.NewAdminRepository(pool), tokens, cfg.Auth.BcryptCost, logger)

	router := api.NewRouter(api.Deps{
		Auth:          authService,
		Drafts:        service.NewSignupDrafts(authService, cfg.Auth.DraftTTL),
		Catalog:       catalog,
		Cart:          service.NewCartLedger(carts, products, pricing.New(swapPrice), notifier, logger),
		Orders:        service.NewOrderCoordinator(orders, carts, catalog, notifier, logger),
		Chat:          service.NewChatRelay(repository.NewMessageRepository(pool), notifier, logger),
		Locations:     service.NewLocationService(repository.NewLocationRepository(pool), orders, notifier, logger),
		Hub:           hub,
		MaxImageBytes: cfg.Storage.MaxImageBytes,
		Checks: map[string]handlers.Pinger{
			"postgres": pool,
			"redis":    handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	srv.RegisterOnShutdown(hub.Close)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case err := <-relayDone:
		logger.Error("realtime relay gave up", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("server stopped")
	return nil
}
