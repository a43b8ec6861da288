package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saysophanna/babybear-backend/api/controllers"
	"github.com/saysophanna/babybear-backend/api/middleware"
	"github.com/saysophanna/babybear-backend/internal/checkout"
	"github.com/saysophanna/babybear-backend/internal/orders"
	"github.com/saysophanna/babybear-backend/internal/promo"
	"github.com/saysophanna/babybear-backend/internal/proofs"
	"github.com/saysophanna/babybear-backend/pkg/config"
	"github.com/saysophanna/babybear-backend/pkg/db"
	"github.com/saysophanna/babybear-backend/pkg/enums"
	"github.com/saysophanna/babybear-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	registry *prometheus.Registry,
	checkoutManager *checkout.Manager,
	ordersService orders.Service,
	promoService promo.Service,
	proofService proofs.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	// Uploaded proofs are served as static files in this deployment.
	r.Handle(cfg.Upload.PublicBase+"/*",
		http.StripPrefix(cfg.Upload.PublicBase+"/", http.FileServer(http.Dir(cfg.Upload.Dir))))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/checkout/sessions", func(r chi.Router) {
			r.Post("/", controllers.CheckoutSessionCreate(checkoutManager, logg))
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", controllers.CheckoutSessionDetail(checkoutManager, logg))
				r.Delete("/", controllers.CheckoutSessionDelete(checkoutManager, logg))
				r.Put("/items", controllers.CheckoutSetItems(checkoutManager, logg))
				r.Put("/address", controllers.CheckoutSelectAddress(checkoutManager, logg))
				r.Put("/method", controllers.CheckoutSelectMethod(checkoutManager, logg))
				r.Post("/promo", controllers.CheckoutApplyPromo(checkoutManager, logg))
				r.Delete("/promo", controllers.CheckoutRemovePromo(checkoutManager, logg))
				r.Post("/proof", controllers.CheckoutAttachProof(checkoutManager, proofService, logg))
				r.Post("/submit", controllers.CheckoutSubmit(checkoutManager, logg))
				r.Post("/cancel-polling", controllers.CheckoutCancelPolling(checkoutManager, logg))
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Post("/{orderId}/cancel", controllers.OrderCancel(ordersService, logg))
		})

		r.Route("/proofs", func(r chi.Router) {
			r.Post("/", controllers.ProofUpload(proofService, cfg.Upload.MaxUploadMB, logg))
			r.Get("/{proofId}", controllers.ProofDetail(proofService, logg))
		})

		r.Post("/promos/validate", controllers.PromoValidate(promoService, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(string(enums.UserRoleAdmin), logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminOrdersList(ordersService, logg))
			r.Get("/by-charge-ref/{chargeRef}", controllers.AdminOrderByChargeRef(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
			r.Post("/{orderId}/status", controllers.AdminOrderSetStatus(ordersService, logg))
			r.Post("/{orderId}/confirm-payment", controllers.AdminOrderConfirmPayment(ordersService, proofService, logg))
			r.Post("/{orderId}/reject-payment", controllers.AdminOrderRejectPayment(ordersService, proofService, logg))
		})

		r.Route("/promos", func(r chi.Router) {
			r.Get("/", controllers.AdminPromoList(promoService, logg))
			r.Post("/", controllers.AdminPromoCreate(promoService, logg))
			r.Patch("/{promoId}", controllers.AdminPromoUpdate(promoService, logg))
			r.Delete("/{promoId}", controllers.AdminPromoDelete(promoService, logg))
		})
	})

	return r
}
