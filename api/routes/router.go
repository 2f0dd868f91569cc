package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vendorflow-backend/api/controllers"
	assignmentcontrollers "github.com/angelmondragon/vendorflow-backend/api/controllers/assignments"
	dispatchcontrollers "github.com/angelmondragon/vendorflow-backend/api/controllers/dispatches"
	grncontrollers "github.com/angelmondragon/vendorflow-backend/api/controllers/grn"
	ordercontrollers "github.com/angelmondragon/vendorflow-backend/api/controllers/orders"
	"github.com/angelmondragon/vendorflow-backend/api/middleware"
	"github.com/angelmondragon/vendorflow-backend/internal/assignments"
	"github.com/angelmondragon/vendorflow-backend/internal/audit"
	"github.com/angelmondragon/vendorflow-backend/internal/dispatches"
	"github.com/angelmondragon/vendorflow-backend/internal/grn"
	"github.com/angelmondragon/vendorflow-backend/internal/imports"
	"github.com/angelmondragon/vendorflow-backend/internal/notifications"
	"github.com/angelmondragon/vendorflow-backend/internal/orders"
	"github.com/angelmondragon/vendorflow-backend/pkg/config"
	"github.com/angelmondragon/vendorflow-backend/pkg/enums"
	"github.com/angelmondragon/vendorflow-backend/pkg/logger"
	"github.com/angelmondragon/vendorflow-backend/pkg/redis"
)

// Services are the domain services the HTTP surface exposes.
type Services struct {
	Orders        orders.Service
	Assignments   assignments.Service
	Dispatches    dispatches.Service
	GRN           grn.Service
	Audit         audit.Service
	Notifications notifications.Service
	Importer      *imports.Importer
}

// Infra carries the shared clients the router needs beyond the services.
type Infra struct {
	// Redis backs idempotency and rate limiting; nil disables both.
	Redis *redis.Client
	// Ready lists dependencies pinged by /health/ready.
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services, infra Infra) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.RequestMeta(),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	staff := []enums.Role{enums.RoleAdmin, enums.RoleOperations, enums.RoleAccounts}
	operators := []enums.Role{enums.RoleAdmin, enums.RoleOperations}
	maxUpload := cfg.Media.MaxUploadBytes()

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, infra.Ready))
	})

	if infra.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		var store *redis.Client
		if infra.Redis != nil {
			store = infra.Redis
			r.Use(middleware.Idempotency(store, logg))
		}

		r.Get("/v1/me", controllers.Me)

		r.Route("/v1/orders", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, staff...))
				r.Get("/", ordercontrollers.List(svc.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Get(svc.Orders, logg))
				r.Get("/{orderId}/audit", ordercontrollers.AuditTrail(svc.Orders, svc.Audit, logg))
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, operators...))
				r.Post("/", ordercontrollers.Create(svc.Orders, logg))
				r.Put("/{orderId}", ordercontrollers.Update(svc.Orders, logg))
				r.Delete("/{orderId}", ordercontrollers.Delete(svc.Orders, logg))
				r.Post("/{orderId}/assign-vendor", ordercontrollers.AssignVendor(svc.Orders, logg))
				r.Post("/{orderId}/cancel", ordercontrollers.Cancel(svc.Orders, logg))
				r.Post("/{orderId}/close", ordercontrollers.Close(svc.Orders, logg))
				if svc.Importer != nil {
					limit := middleware.RateLimitPolicy{Name: "order-import", Limit: cfg.App.ImportsPerHour, Window: time.Hour}
					var limiter func(http.Handler) http.Handler = passthrough
					if store != nil {
						limiter = middleware.UserRateLimit(limit, store, logg)
					}
					r.With(limiter).Post("/import", ordercontrollers.Import(svc.Importer, maxUpload, logg))
				}
			})
		})

		r.Route("/v1/vendor", func(r chi.Router) {
			r.Use(middleware.RequireVendor(logg))
			r.Route("/assignments", func(r chi.Router) {
				r.Get("/", assignmentcontrollers.List(svc.Assignments, logg))
				r.Post("/{assignmentId}/status", assignmentcontrollers.UpdateStatus(svc.Assignments, logg))
				r.Post("/{assignmentId}/invoice", assignmentcontrollers.AttachInvoice(svc.Assignments, maxUpload, logg))
			})
			r.Route("/dispatches", func(r chi.Router) {
				r.Get("/", dispatchcontrollers.List(svc.Dispatches, logg))
				r.Post("/", dispatchcontrollers.Create(svc.Dispatches, logg))
			})
		})

		r.Route("/v1/dispatches", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, staff...)).Get("/", dispatchcontrollers.List(svc.Dispatches, logg))
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleOperations, enums.RoleAccounts, enums.RoleVendor))
				r.Get("/{dispatchId}", dispatchcontrollers.Get(svc.Dispatches, logg))
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.RoleAdmin, enums.RoleOperations, enums.RoleVendor))
				r.Post("/{dispatchId}/proof", dispatchcontrollers.UploadProof(svc.Dispatches, maxUpload, logg))
				r.Post("/{dispatchId}/status", dispatchcontrollers.UpdateStatus(svc.Dispatches, logg))
			})
			r.With(middleware.RequireRole(logg, operators...)).Post("/{dispatchId}/grn", grncontrollers.Record(svc.GRN, logg))
		})

		r.Route("/v1/grns", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, staff...))
			r.Get("/{grnId}", grncontrollers.Get(svc.GRN, logg))
		})

		r.Route("/v1/tickets", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, staff...)).Get("/", grncontrollers.ListTickets(svc.GRN, logg))
			r.With(middleware.RequireRole(logg, operators...)).Post("/{ticketId}/resolve", grncontrollers.ResolveTicket(svc.GRN, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svc.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(svc.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svc.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(svc.Notifications, logg))
		})

		r.With(middleware.RequireRole(logg, enums.RoleAdmin)).Get("/v1/audit", controllers.ListAuditByActor(svc.Audit, logg))
	})

	return r
}

func passthrough(next http.Handler) http.Handler { return next }
