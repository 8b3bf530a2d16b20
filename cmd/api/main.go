package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/scoopworks/creamery-backend/api/routes"
	"github.com/scoopworks/creamery-backend/internal/cancellation"
	"github.com/scoopworks/creamery-backend/internal/cart"
	"github.com/scoopworks/creamery-backend/internal/checkout"
	"github.com/scoopworks/creamery-backend/internal/delivery"
	"github.com/scoopworks/creamery-backend/internal/orders"
	"github.com/scoopworks/creamery-backend/internal/points"
	"github.com/scoopworks/creamery-backend/internal/users"
	"github.com/scoopworks/creamery-backend/pkg/config"
	"github.com/scoopworks/creamery-backend/pkg/db"
	"github.com/scoopworks/creamery-backend/pkg/logger"
	"github.com/scoopworks/creamery-backend/pkg/paypal"
	"github.com/scoopworks/creamery-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var gateway *paypal.Client
	if cfg.PayPal.ClientID != "" {
		gateway, err = paypal.NewClient(cfg.PayPal, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create paypal client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "paypal credentials not set, payment routes disabled")
	}

	usersRepo := users.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())
	pointsRepo := points.NewRepository(dbClient.DB())

	pointsService, err := points.NewService(pointsRepo, usersRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create points service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(cartRepo, cart.NewProductSource(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	deliveryService, err := delivery.NewService(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery service", err)
		os.Exit(1)
	}

	cancelService, err := cancellation.NewService(ordersRepo, pointsService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cancellation service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(ordersRepo, pointsService, usersRepo, cancelService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		cartRepo,
		ordersRepo,
		usersRepo,
		pointsService,
		deliveryService,
		dbClient,
		logg,
		cfg.Checkout,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

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
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:           cfg,
			Logger:           logg,
			DBPinger:         dbClient,
			RedisPinger:      redisClient,
			IdempotencyStore: redisClient,
			Gateway:          gateway,
			CartRepo:         cartRepo,
			CartService:      cartService,
			CheckoutService:  checkoutService,
			OrdersService:    ordersService,
			PointsService:    pointsService,
			DeliveryService:  deliveryService,
			CancelService:    cancelService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
