package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"lpg-service/internal/audit"
	"lpg-service/internal/auth"
	"lpg-service/internal/config"
	"lpg-service/internal/database"
	"lpg-service/internal/logging"
	"lpg-service/internal/models"
	"lpg-service/internal/pricing"
	"lpg-service/internal/realtime"
	"lpg-service/internal/repository"
	"lpg-service/internal/service"
	"lpg-service/internal/storage"
)

var tanks = []models.Product{
	{Name: "LPG Tank 11kg", Description: "Household cylinder", Weight: "11kg", Price: decimal.NewFromInt(950), Option: models.OptionNew, StockQuantity: 40},
	{Name: "LPG Tank 22kg", Description: "Restaurant cylinder", Weight: "22kg", Price: decimal.NewFromInt(1850), Option: models.OptionNew, StockQuantity: 20},
	{Name: "LPG Tank 50kg", Description: "Industrial cylinder", Weight: "50kg", Price: decimal.NewFromInt(4200), Option: models.OptionNew, StockQuantity: 8},
}

// seed creates the depot admin and the starter catalog, then optionally runs
// one cart to checkout pass against the fresh database.
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

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	if err := seedAdmin(ctx, repository.NewAdminRepository(pool), cfg.Auth.BcryptCost); err != nil {
		logger.Fatal("failed to seed admin", zap.Error(err))
	}

	products := repository.NewProductRepository(pool)
	if err := seedProducts(ctx, products); err != nil {
		logger.Fatal("failed to seed products", zap.Error(err))
	}

	if os.Getenv("SEED_SMOKE") != "true" {
		return
	}

	swapPrice, err := cfg.Pricing.SwapPrice()
	if err != nil {
		logger.Fatal("invalid swap price", zap.Error(err))
	}

	notifier := service.NewNotifier(realtime.NewHub(0, logger), audit.Noop{}, logger)
	orders := repository.NewOrderRepository(pool)
	carts := repository.NewCartRepository(pool)
	catalog := service.NewCatalogService(
		products,
		repository.NewOperationRepository(pool),
		repository.NewStockAlertRepository(pool),
		orders,
		storage.Disabled{},
		notifier,
		service.CatalogConfig{LowStockThreshold: cfg.Stock.LowThreshold, MaxImageBytes: cfg.Storage.MaxImageBytes},
		logger,
	)
	accounts := service.NewAuthService(
		repository.NewUserRepository(pool),
		repository.NewAdminRepository(pool),
		auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, auth.NewMemoryDenylist()),
		cfg.Auth.BcryptCost,
		logger,
	)

	ledger := service.NewCartLedger(carts, products, pricing.New(swapPrice), notifier, logger)
	coordinator := service.NewOrderCoordinator(orders, carts, catalog, notifier, logger)
	tracking := service.NewLocationService(repository.NewLocationRepository(pool), orders, notifier, logger)

	if err := smoke(ctx, accounts, products, ledger, coordinator, tracking, logger); err != nil {
		logger.Fatal("smoke run failed", zap.Error(err))
	}
}

func seedAdmin(ctx context.Context, admins repository.AdminRepository, cost int) error {
	username := os.Getenv("SEED_ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	secret := os.Getenv("SEED_ADMIN_PASSWORD")
	if secret == "" {
		fmt.Println("SEED_ADMIN_PASSWORD not set, skipping admin")
		return nil
	}

	hash, err := auth.HashPassword(secret, cost)
	if err != nil {
		return err
	}

	err = admins.Create(ctx, &models.Admin{Username: username, PasswordHash: hash})
	if errors.Is(err, repository.ErrDuplicate) {
		fmt.Printf("admin %q already exists\n", username)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("created admin %q\n", username)
	return nil
}

func seedProducts(ctx context.Context, products repository.ProductRepository) error {
	_, total, err := products.List(ctx, repository.ProductFilter{Limit: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		fmt.Printf("catalog already has %d products\n", total)
		return nil
	}

	for i := range tanks {
		p := tanks[i]
		p.IsActive = true
		if err := products.Create(ctx, &p); err != nil {
			return fmt.Errorf("create %s: %w", p.Name, err)
		}
		fmt.Printf("created product %s (%s) stock=%d\n", p.Name, p.ID, p.StockQuantity)
	}

	return nil
}

func smoke(
	ctx context.Context,
	accounts *service.AuthService,
	products repository.ProductRepository,
	ledger *service.CartLedger,
	coordinator *service.OrderCoordinator,
	tracking *service.LocationService,
	logger *zap.Logger,
) error {
	fmt.Println("\n=== Smoke run ===")

	email := fmt.Sprintf("smoke-%s@example.com", uuid.NewString()[:8])
	session, err := accounts.SignUp(ctx, email, "smoke-secret-1", models.Profile{FullName: "Smoke Customer"})
	if err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	userID := session.User.ID
	fmt.Printf("signed up %s\n", email)

	list, _, err := products.List(ctx, repository.ProductFilter{ActiveOnly: true, Limit: 1})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return errors.New("no active product to buy")
	}
	tank := list[0]

	line, err := ledger.AddLine(ctx, userID, tank.ID, 2, models.OptionSwap)
	if err != nil {
		return fmt.Errorf("add line: %w", err)
	}
	fmt.Printf("cart line %s: %d x %s (%s) total=%s\n", line.ID, line.Quantity, tank.Name, line.Option, line.TotalPrice)

	total, n, err := ledger.SelectionTotal(ctx, userID, []uuid.UUID{line.ID})
	if err != nil {
		return err
	}
	fmt.Printf("selection total=%s over %d line(s)\n", total, n)

	order, err := coordinator.SubmitOrder(ctx, userID, service.SubmitRequest{
		LineIDs:         []uuid.UUID{line.ID},
		PaymentMethod:   "cod",
		DeliveryAddress: "Purok 3, Barangay San Isidro",
	})
	if err != nil {
		return fmt.Errorf("submit order: %w", err)
	}
	fmt.Printf("order %s status=%s total=%s\n", order.ID, order.Status, order.TotalAmount)

	after, err := products.GetByID(ctx, tank.ID)
	if err != nil {
		return err
	}
	fmt.Printf("stock %d -> %d\n", tank.StockQuantity, after.StockQuantity)

	left, err := ledger.ListLines(ctx, userID)
	if err != nil {
		return err
	}
	if len(left) != 0 {
		return fmt.Errorf("cart should be empty after checkout, has %d lines", len(left))
	}
	fmt.Println("cart cleared")

	return deliver(ctx, coordinator, tracking, order.ID, logger)
}

var depotAdmin = auth.Principal{Role: models.RoleAdmin, TokenID: "seed"}

// deliver walks the order through the delivery workflow with a courier
// replaying depotRoute, then checks the trail is closed once it is delivered.
func deliver(ctx context.Context, coordinator *service.OrderCoordinator, tracking *service.LocationService, orderID uuid.UUID, logger *zap.Logger) error {
	for _, next := range []models.OrderStatus{models.StatusConfirmed, models.StatusPreparing, models.StatusOutForDelivery} {
		if _, err := coordinator.AdvanceStatus(ctx, depotAdmin, orderID, next); err != nil {
			return fmt.Errorf("advance to %s: %w", next, err)
		}
		fmt.Printf("order status=%s\n", next)
	}

	tracker := service.NewTracker(
		newRouteSource(depotRoute),
		tracking,
		orderID,
		service.TrackerConfig{Interval: 100 * time.Millisecond, MinDistance: 25},
		logger,
	)
	if err := tracker.Start(ctx); err != nil {
		return err
	}

	trail, err := waitForTrail(ctx, tracking, orderID, len(depotRoute))
	tracker.Stop()
	if err != nil {
		return err
	}
	if err := tracker.Err(); err != nil {
		return fmt.Errorf("tracking ended early: %w", err)
	}
	for _, s := range trail {
		fmt.Printf("courier at %.4f,%.4f accuracy=%.0fm\n", s.Latitude, s.Longitude, s.Accuracy)
	}

	if _, err := coordinator.AdvanceStatus(ctx, depotAdmin, orderID, models.StatusDelivered); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	fmt.Println("order status=delivered")

	last := depotRoute[len(depotRoute)-1]
	err = tracking.Record(ctx, orderID, &models.LocationSample{Latitude: last.Latitude, Longitude: last.Longitude})
	if !errors.Is(err, service.ErrNotDelivering) {
		return fmt.Errorf("trail should be closed after delivery, got %v", err)
	}
	fmt.Println("tracking closed")

	return nil
}

func waitForTrail(ctx context.Context, tracking *service.LocationService, orderID uuid.UUID, want int) ([]models.LocationSample, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		trail, err := tracking.History(ctx, depotAdmin, orderID)
		if err != nil {
			return nil, err
		}
		if len(trail) >= want {
			return trail, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("courier trail has %d of %d stops: %w", len(trail), want, ctx.Err())
		case <-ticker.C:
		}
	}
}
