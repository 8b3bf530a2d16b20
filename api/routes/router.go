package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scoopworks/creamery-backend/api/controllers"
	"github.com/scoopworks/creamery-backend/api/middleware"
	"github.com/scoopworks/creamery-backend/internal/cancellation"
	cartsvc "github.com/scoopworks/creamery-backend/internal/cart"
	checkoutsvc "github.com/scoopworks/creamery-backend/internal/checkout"
	deliverysvc "github.com/scoopworks/creamery-backend/internal/delivery"
	ordersvc "github.com/scoopworks/creamery-backend/internal/orders"
	pointsvc "github.com/scoopworks/creamery-backend/internal/points"
	"github.com/scoopworks/creamery-backend/pkg/config"
	"github.com/scoopworks/creamery-backend/pkg/logger"
	"github.com/scoopworks/creamery-backend/pkg/paypal"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger    controllers.Pinger
	RedisPinger controllers.Pinger

	IdempotencyStore middleware.IdempotencyStore
	Gateway          *paypal.Client

	CartRepo        cartsvc.Repository
	CartService     cartsvc.Service
	CheckoutService checkoutsvc.Service
	OrdersService   ordersvc.Service
	PointsService   pointsvc.Service
	DeliveryService deliverysvc.Service
	CancelService   cancellation.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisPinger))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, cfg.Checkout.IdempotencyTTL, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.GetCart(deps.CartService, logg))
			r.Post("/items", controllers.AddCartItem(deps.CartService, logg))
			r.Patch("/items/{itemID}", controllers.UpdateCartItem(deps.CartService, logg))
			r.Delete("/items/{itemID}", controllers.RemoveCartItem(deps.CartService, logg))
		})

		r.Post("/payments/orders", controllers.CreatePaymentOrder(deps.Gateway, deps.CartRepo, cfg.Checkout, logg))
		r.Post("/checkout", controllers.Checkout(deps.CheckoutService, deps.Gateway, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.OrdersService, logg))
			r.Get("/{id}", controllers.GetOrder(deps.OrdersService, logg))
			r.Post("/{id}/cancel", controllers.CancelOrder(deps.CancelService, logg))
			r.With(middleware.RequireStaff(logg)).
				Patch("/{id}/status", controllers.UpdateOrderStatus(deps.OrdersService, logg))
		})

		r.Route("/points", func(r chi.Router) {
			r.Get("/", controllers.GetPointsBalance(deps.PointsService, logg))
			r.Get("/history", controllers.GetPointsHistory(deps.PointsService, logg))
		})

		r.With(middleware.RequireStaff(logg)).
			Get("/delivery/workload", controllers.DeliveryWorkload(deps.DeliveryService, logg))
	})

	return r
}
