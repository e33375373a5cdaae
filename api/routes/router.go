package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/artisancrate/billing-engine/api/controllers"
	invoicecontrollers "github.com/artisancrate/billing-engine/api/controllers/invoices"
	ordercontrollers "github.com/artisancrate/billing-engine/api/controllers/orders"
	subscriptioncontrollers "github.com/artisancrate/billing-engine/api/controllers/subscriptions"
	webhookcontrollers "github.com/artisancrate/billing-engine/api/controllers/webhooks"
	"github.com/artisancrate/billing-engine/api/middleware"
	"github.com/artisancrate/billing-engine/internal/billing"
	"github.com/artisancrate/billing-engine/internal/orders"
	"github.com/artisancrate/billing-engine/internal/payments"
	"github.com/artisancrate/billing-engine/internal/subscriptions"
	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

// ReplayGuard filters byte-identical webhook deliveries.
type ReplayGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Dependencies are the services mounted by the router. A nil ReplayGuard
// disables replay filtering; a nil MetricsHandler hides /metrics.
type Dependencies struct {
	Invoices       *billing.InvoiceReader
	Reconciler     *payments.Reconciler
	Subscriptions  subscriptions.Service
	Orders         orders.Service
	ReplayGuard    ReplayGuard
	Readiness      map[string]controllers.Pinger
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/midtrans", webhookcontrollers.MidtransNotification(deps.Reconciler, deps.ReplayGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", invoicecontrollers.List(deps.Invoices, logg))
			r.Get("/{invoiceId}", invoicecontrollers.Get(deps.Invoices, logg))
			r.Post("/{invoiceId}/pay", invoicecontrollers.Pay(deps.Invoices, deps.Reconciler, logg))
		})
		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", subscriptioncontrollers.List(deps.Subscriptions, logg))
			r.Post("/", subscriptioncontrollers.Create(deps.Subscriptions, logg))
			r.Get("/{subscriptionId}", subscriptioncontrollers.Get(deps.Subscriptions, logg))
			r.Post("/{subscriptionId}/cancel", subscriptioncontrollers.Cancel(deps.Subscriptions, logg))
			r.Post("/{subscriptionId}/pause", subscriptioncontrollers.Pause(deps.Subscriptions, logg))
			r.Post("/{subscriptionId}/resume", subscriptioncontrollers.Resume(deps.Subscriptions, logg))
		})
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.List(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Get(deps.Orders, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

		r.Get("/invoices", invoicecontrollers.AdminList(deps.Invoices, logg))
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordercontrollers.AdminList(deps.Orders, logg))
			r.Patch("/{orderId}/status", ordercontrollers.AdminUpdateStatus(deps.Orders, logg))
		})
		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", subscriptioncontrollers.AdminList(deps.Subscriptions, logg))
			r.Patch("/{subscriptionId}/status", subscriptioncontrollers.AdminSetStatus(deps.Subscriptions, logg))
		})
	})

	return r
}

// MetricsHandler serves the default Prometheus registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
