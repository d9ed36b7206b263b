// Package billing keeps local plans, subscriptions and payments consistent
// with Stripe.
//
// User actions never mutate subscription state directly. SubscriptionService
// asks the Gateway for a hosted checkout session and returns its URL; the
// local record changes only when the Reconciler applies the webhook events
// Stripe delivers afterwards. Events may arrive more than once and out of
// order, so every handler is an idempotent get-or-create keyed by
// (provider, provider subscription id), backed by a unique constraint in
// storage.
//
// Subscription status follows a small transition table:
//
//	(none) -> past_due (checkout completed, first invoice pending)
//	past_due|active -> active (invoice paid)
//	active|past_due -> past_due (invoice payment failed)
//	any -> canceled (subscription deleted, or replaced by an upgrade)
//
// canceled is terminal. CancelAtPeriodEnd is a flag on an active row, not a
// status.
//
// Plans are mirrored into Stripe products and prices by PlanService. Price
// changes create a new Stripe price because prices are immutable there. Sync
// failures are logged and leave the plan unsynced without failing the local
// write.
package billing
