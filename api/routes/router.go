package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/smesmis/pos-checkout/api/controllers"
	"github.com/smesmis/pos-checkout/api/middleware"
	"github.com/smesmis/pos-checkout/internal/cart"
	"github.com/smesmis/pos-checkout/internal/catalog"
	"github.com/smesmis/pos-checkout/internal/checkout"
	"github.com/smesmis/pos-checkout/internal/discounts"
	"github.com/smesmis/pos-checkout/pkg/config"
	"github.com/smesmis/pos-checkout/pkg/enums"
	"github.com/smesmis/pos-checkout/pkg/logger"
	"github.com/smesmis/pos-checkout/pkg/redis"
)

// NewRouter mounts the health, metrics, cart and checkout routes. A nil
// redisClient disables idempotency replay and the readiness ping.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	cartService cart.Service,
	catalogService catalog.Service,
	discountService discounts.Service,
	checkoutService checkout.Service,
	tracker *checkout.Tracker,
) http.Handler {
	var (
		readiness controllers.Pinger
		idemStore redis.IdempotencyStore
	)
	if redisClient != nil {
		readiness = redisClient
		idemStore = redisClient
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/session/logout", controllers.SessionLogout(cartService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(enums.PermissionPOSAccess, logg))
			r.Use(middleware.Idempotency(idemStore, cfg.Checkout.IdempotencyTTL, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(cartService, logg))
				r.Delete("/", controllers.CartClear(cartService, logg))
				r.Post("/items", controllers.CartAddItem(cartService, catalogService, logg))
				r.Patch("/items/{productId}", controllers.CartUpdateItem(cartService, logg))
				r.Delete("/items/{productId}", controllers.CartRemoveItem(cartService, logg))
				r.With(middleware.RequirePermission(enums.PermissionDiscountApply, logg)).
					Post("/discount", controllers.CartApplyDiscount(cartService, discountService, logg))
				r.Delete("/discount", controllers.CartRemoveDiscount(cartService, logg))
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", controllers.Checkout(checkoutService, logg))
				r.Post("/sessions", controllers.CheckoutSessionStart(tracker, logg))
				r.Get("/sessions/{sessionId}", controllers.CheckoutSessionGet(tracker, logg))
				r.Delete("/sessions/{sessionId}", controllers.CheckoutSessionCancel(tracker, logg))
			})
		})
	})

	return r
}
