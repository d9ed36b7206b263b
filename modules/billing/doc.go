// Package billing mounts the billing HTTP API: the plan catalog, the
// subscriber's subscription and payment endpoints, the admin dashboard with
// user management, the tier-gated premium check and the Stripe webhook
// receiver.
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//		Plans:         planSvc,
//		Subscriptions: subSvc,
//		Payments:      paymentSvc,
//		Webhooks:      reconciler,
//		Users:         adminSvc,
//		Audit:         auditLogger,
//		Tokens:        jwtSvc,
//		Logger:        log,
//	}))
package billing
