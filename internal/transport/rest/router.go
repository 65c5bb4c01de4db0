package rest

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/frahmantamala/order-assistant/internal/auth"
	"github.com/frahmantamala/order-assistant/internal/menu"
	"github.com/frahmantamala/order-assistant/internal/order"
	"github.com/frahmantamala/order-assistant/internal/payment"
	"github.com/frahmantamala/order-assistant/internal/reminder"
	"github.com/frahmantamala/order-assistant/internal/transport/middleware"
	"github.com/frahmantamala/order-assistant/internal/transport/swagger"
	"github.com/frahmantamala/order-assistant/internal/user"
)

// RouterDeps carries every handler the HTTP surface mounts. Nil handlers are skipped.
type RouterDeps struct {
	Logger *slog.Logger

	Health   map[string]Pinger
	Auth     *auth.Handler
	RBAC     *auth.RBACAuthorization
	User     *user.Handler
	Menu     *menu.Handler
	Order    *order.Handler
	Payment  *payment.Handler
	Webhook  *payment.WebhookHandler
	Reminder *reminder.Handler

	WebhookSecret  string
	AllowedOrigins string
	OpenAPIPath    string

	// MetricsPath is left unmounted when Gatherer is nil.
	MetricsPath string
	Registerer  prometheus.Registerer
	Gatherer    prometheus.Gatherer
}

func RegisterAllRoutes(router *chi.Mux, deps RouterDeps) {
	lg := deps.Logger
	if lg == nil {
		lg = slog.Default()
	}

	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(lg))
	router.Use(middleware.LoggingMiddleware(lg, deps.MetricsPath))
	if deps.Registerer != nil {
		router.Use(middleware.NewHTTPMetrics(deps.Registerer).Middleware)
	}

	if deps.Gatherer != nil && deps.MetricsPath != "" {
		router.Handle(deps.MetricsPath, promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	openAPIPath := deps.OpenAPIPath
	if openAPIPath == "" {
		openAPIPath = "./api/openapi.yml"
	}
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, openAPIPath)
	})
	router.Handle("/swagger/*", swagger.Handler())

	healthHandler := NewHealthHandler(deps.Health)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if deps.Webhook != nil {
			r.Route("/webhooks/chat", func(wr chi.Router) {
				wr.Use(middleware.WebhookSecret(deps.WebhookSecret, lg))
				wr.Post("/payment-proof", deps.Webhook.HandlePaymentProof)
				wr.Post("/confirmation", deps.Webhook.HandleConfirmationReply)
			})
		}

		if deps.Menu != nil {
			r.Get("/menu", deps.Menu.GetMenu)
		}

		if deps.Auth == nil {
			return
		}

		r.Route("/auth", func(ar chi.Router) {
			ar.Post("/login", deps.Auth.Login)
			ar.Post("/refresh", deps.Auth.RefreshToken)
		})

		rbac := deps.RBAC
		if rbac == nil {
			rbac = auth.NewRBACAuthorization(deps.Auth.BaseHandler, lg)
		}

		r.Group(func(pr chi.Router) {
			pr.Use(deps.Auth.AuthMiddleware)
			pr.Use(middleware.ActorLogger)

			if deps.Menu != nil {
				pr.With(rbac.RequireAdmin()).Put("/menu", deps.Menu.SaveItem)
			}

			if deps.User != nil {
				pr.Get("/users/me", deps.User.GetCurrentUser)
			}

			pr.Route("/orders", func(or chi.Router) {
				if deps.Order != nil {
					or.Group(func(mr chi.Router) {
						mr.Use(rbac.RequireManageOrders())
						mr.Post("/", deps.Order.CreateOrder)
						mr.Get("/", deps.Order.ListOrders)
						mr.Get("/{id}", deps.Order.GetOrder)
						mr.Patch("/{id}/confirm", deps.Order.ConfirmOrder)
						mr.Patch("/{id}/cancel", deps.Order.CancelOrder)
						mr.Patch("/{id}/complete", deps.Order.CompleteOrder)
					})
				}

				if deps.Payment != nil {
					or.Group(func(pmr chi.Router) {
						pmr.Use(rbac.RequireRecordPayments())
						pmr.Post("/{id}/payments", deps.Payment.RecordPayment)
						pmr.Get("/{id}/payments", deps.Payment.ListPayments)
						pmr.Post("/{id}/payments/confirmation", deps.Payment.ConfirmPayment)
					})
				}
			})

			if deps.Reminder != nil {
				pr.Route("/reminders", func(rr chi.Router) {
					rr.Use(rbac.RequireRunReminders())
					rr.Post("/run", deps.Reminder.RunReminders)
					rr.Get("/log", deps.Reminder.ListLog)
				})
			}
		})
	})
}
