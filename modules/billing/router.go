package billing

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/saasbilling/handler"
	"github.com/dmitrymomot/saasbilling/pkg/jwt"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

// RouterOptions holds the services behind the billing API. Plans,
// Subscriptions, Payments and Tokens are required. Optional services gate
// their routes: Webhooks the webhook receiver, Users the admin dashboard
// and user management, Audit the audit listing.
type RouterOptions struct {
	Plans         PlanManager
	Subscriptions SubscriptionManager
	Payments      PaymentLister
	Webhooks      WebhookReceiver
	Users         UserAdmin
	Audit         AuditFinder
	Tokens        *jwt.Service
	Logger        *slog.Logger
}

type handlers struct {
	plans         PlanManager
	subscriptions SubscriptionManager
	payments      PaymentLister
	webhooks      WebhookReceiver
	users         UserAdmin
	audit         AuditFinder
	logger        *slog.Logger
	onError       handler.ErrorHandler
}

// Router builds the billing API router.
func Router(opts RouterOptions) chi.Router {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &handlers{
		plans:         opts.Plans,
		subscriptions: opts.Subscriptions,
		payments:      opts.Payments,
		webhooks:      opts.Webhooks,
		users:         opts.Users,
		audit:         opts.Audit,
		logger:        log.With(logger.Component("billing.http")),
	}
	h.onError = handler.NewErrorHandler(h.logger, classify)

	authenticated := jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{
		Service:      opts.Tokens,
		ErrorHandler: authError,
	})

	r := chi.NewRouter()

	r.Get("/plans", wrap(h, h.listPlans, queryBinders...))
	r.Get("/plans/{id}", wrap(h, h.getPlan, pathBinders...))

	if h.webhooks != nil {
		r.Post("/stripe/webhook", h.stripeWebhook)
	}

	r.Group(func(r chi.Router) {
		r.Use(authenticated)

		r.Get("/subscriptions/me", wrap(h, h.mySubscriptions))
		r.Post("/subscriptions/subscribe", wrap(h, h.subscribe, bodyBinders...))
		r.Post("/subscriptions/upgrade", wrap(h, h.upgrade, bodyBinders...))
		r.Post("/subscriptions/cancel", wrap(h, h.cancel))
		r.Get("/payments/me", wrap(h, h.myPayments))
		r.Get("/premium/{tier}", wrap(h, h.premium, pathBinders...))

		r.Group(func(r chi.Router) {
			r.Use(jwt.RequireAdmin(authError))

			r.Post("/plans", wrap(h, h.createPlan, bodyBinders...))
			r.Patch("/plans/{id}", wrap(h, h.updatePlan, pathBinders[0], bodyBinders[0]))
			r.Delete("/plans/{id}", wrap(h, h.deletePlan, pathBinders...))

			r.Get("/admin/plans", wrap(h, h.adminListPlans, queryBinders...))
			r.Get("/admin/subscriptions", wrap(h, h.adminListSubscriptions, queryBinders...))
			r.Get("/admin/payments", wrap(h, h.adminListPayments, queryBinders...))
			if h.users != nil {
				r.Get("/admin/stats", wrap(h, h.adminStats))
				r.Get("/admin/users", wrap(h, h.adminListUsers, queryBinders...))
				r.Get("/admin/users/{id}", wrap(h, h.adminGetUser, pathBinders...))
				r.Patch("/admin/users/{id}/status", wrap(h, h.adminUpdateUserStatus, pathBinders[0], bodyBinders[0]))
				r.Patch("/admin/users/{id}/role", wrap(h, h.adminUpdateUserRole, pathBinders[0], bodyBinders[0]))
				r.Post("/admin/users/{id}/verify", wrap(h, h.adminVerifyUser, pathBinders...))
			}
			if h.audit != nil {
				r.Get("/admin/audit", wrap(h, h.adminListAudit, queryBinders...))
			}
		})
	})

	return r
}

// wrap adapts a typed handler with the module's binders and error handler.
func wrap[R any](h *handlers, fn handler.HandlerFunc[R], binders ...handler.Bind) http.HandlerFunc {
	return handler.Wrap(fn,
		handler.WithBinders[R](binders...),
		handler.WithErrorHandler[R](h.onError))
}
