package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

// Reconciler applies provider webhook events to local state.
type Reconciler struct {
	plans    PlanStore
	subs     SubscriptionStore
	payments PaymentStore
	gateway  Gateway
	notifier Notifier
	dedup    EventDeduplicator
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewReconciler returns a Reconciler applying provider webhook events to the
// given stores. The gateway verifies signatures and resolves the subscription
// behind an invoice. Deduplication is off unless WithDeduplicator is passed.
func NewReconciler(plans PlanStore, subs SubscriptionStore, payments PaymentStore, gateway Gateway, opts ...Option) *Reconciler {
	o := applyOptions(opts)
	return &Reconciler{
		plans:    plans,
		subs:     subs,
		payments: payments,
		gateway:  gateway,
		notifier: o.notifier,
		dedup:    o.dedup,
		timeout:  o.webhookTimeout,
		logger:   o.logger.With(logger.Component("billing.reconciler")),
		now:      o.now,
	}
}

// WebhookOutcome tells the transport how a delivery was handled.
type WebhookOutcome string

const (
	WebhookProcessed WebhookOutcome = "processed"
	// WebhookIgnored covers bad signatures and event types nobody handles.
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookDuplicate WebhookOutcome = "duplicate"
)

// WebhookResult describes a handled delivery. Subscription is the row as
// stored after the event, nil when the event changed none.
type WebhookResult struct {
	Outcome      WebhookOutcome `json:"outcome"`
	EventID      string         `json:"event_id,omitempty"`
	EventType    string         `json:"event_type,omitempty"`
	Subscription *Subscription  `json:"subscription,omitempty"`
}

// HandleWebhook verifies, deduplicates and applies one delivery.
//
// A bad signature is logged and reported as WebhookIgnored with a nil error,
// so the provider does not retry it. Errors matching IsClientError will not
// succeed on redelivery; any other error should be answered with a server
// error so the provider retries.
func (r *Reconciler) HandleWebhook(ctx context.Context, payload []byte, signature string) (WebhookResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ev, err := r.gateway.ParseEvent(payload, signature)
	if err != nil {
		if errors.Is(err, ErrInvalidSignature) {
			r.logger.WarnContext(ctx, "rejected webhook with invalid signature", logger.Error(err))
			return WebhookResult{Outcome: WebhookIgnored}, nil
		}
		return WebhookResult{}, err
	}

	meta := ev.Meta()
	result := WebhookResult{EventID: meta.ID, EventType: meta.Type}
	log := r.logger.With(logger.EventID(meta.ID), logger.EventType(meta.Type))

	if _, ok := ev.(UnhandledEvent); ok {
		log.DebugContext(ctx, "ignoring unhandled webhook event")
		result.Outcome = WebhookIgnored
		return result, nil
	}

	if r.dedup != nil {
		claimed, err := r.dedup.Claim(ctx, meta.ID, r.timeout)
		switch {
		case err != nil:
			// Handlers are idempotent, so processing without a claim is safe.
			log.WarnContext(ctx, "webhook dedup unavailable", logger.Error(err))
		case !claimed:
			log.InfoContext(ctx, "skipping duplicate webhook delivery")
			result.Outcome = WebhookDuplicate
			return result, nil
		}
	}

	start := r.now()
	sub, err := r.Handle(ctx, ev)
	if err != nil {
		if r.dedup != nil {
			if rerr := r.dedup.Release(context.WithoutCancel(ctx), meta.ID); rerr != nil {
				log.WarnContext(ctx, "failed to release webhook event claim", logger.Error(rerr))
			}
		}
		log.ErrorContext(ctx, "webhook processing failed", logger.Error(err))
		return result, err
	}

	if r.dedup != nil {
		if err := r.dedup.Complete(context.WithoutCancel(ctx), meta.ID); err != nil {
			log.WarnContext(ctx, "failed to complete webhook event claim", logger.Error(err))
		}
	}

	log.InfoContext(ctx, "webhook processed", logger.Duration(r.now().Sub(start)))
	result.Outcome = WebhookProcessed
	result.Subscription = sub
	return result, nil
}

// Handle applies a single event. It returns the affected subscription, or
// nil when the event changed nothing that exists locally.
func (r *Reconciler) Handle(ctx context.Context, ev Event) (*Subscription, error) {
	switch e := ev.(type) {
	case CheckoutCompleted:
		return r.handleCheckoutCompleted(ctx, e)
	case InvoicePaid:
		return r.handleInvoicePaid(ctx, e)
	case InvoicePaymentFailed:
		return r.handlePaymentFailed(ctx, e)
	case SubscriptionDeleted:
		return r.handleSubscriptionDeleted(ctx, e)
	case UnhandledEvent:
		r.logger.DebugContext(ctx, "ignoring unhandled event", logger.EventType(e.Type))
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unsupported event %T", ErrMalformedEvent, ev)
	}
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, e CheckoutCompleted) (*Subscription, error) {
	if e.ProviderSubscriptionID == "" {
		return nil, fmt.Errorf("%w: checkout session %s has no subscription", ErrMalformedEvent, e.SessionID)
	}

	// The session payload lacks plan metadata.
	ps, err := r.gateway.RetrieveSubscription(ctx, e.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}

	userID := e.UserID
	if userID == uuid.Nil {
		userID = ps.UserID
	}
	if userID == uuid.Nil || ps.PlanID == uuid.Nil {
		return nil, fmt.Errorf("%w: subscription %s lacks user or plan metadata", ErrMalformedEvent, ps.ID)
	}
	if _, err := r.plans.GetPlanByID(ctx, ps.PlanID); err != nil {
		return nil, fmt.Errorf("checkout for plan %s: %w", ps.PlanID, err)
	}

	if old := ps.UpgradeFromSubscriptionID; old != "" && old != e.ProviderSubscriptionID {
		if err := r.retireUpgradedSubscription(ctx, old); err != nil {
			return nil, err
		}
	}

	customerID := e.CustomerID
	if customerID == "" {
		customerID = ps.CustomerID
	}

	sub, err := r.subs.GetSubscriptionByProviderID(ctx, ProviderStripe, e.ProviderSubscriptionID)
	if err == nil {
		return sub, nil
	}
	if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	now := r.now().UTC()
	sub = &Subscription{
		ID:                     uuid.New(),
		UserID:                 userID,
		PlanID:                 ps.PlanID,
		Provider:               ProviderStripe,
		ProviderSubscriptionID: e.ProviderSubscriptionID,
		ProviderCustomerID:     customerID,
		// Provisional until the first invoice is paid.
		Status:    StatusPastDue,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.subs.CreateSubscription(ctx, sub); err != nil {
		if errors.Is(err, ErrSubscriptionAlreadyExists) {
			return r.subs.GetSubscriptionByProviderID(ctx, ProviderStripe, e.ProviderSubscriptionID)
		}
		return nil, err
	}

	r.logger.InfoContext(ctx, "subscription created from checkout",
		logger.SubscriptionID(sub.ID),
		logger.UserID(sub.UserID),
		logger.PlanID(sub.PlanID),
		logger.ProviderSubscriptionID(sub.ProviderSubscriptionID))
	return sub, nil
}

// retireUpgradedSubscription cancels the subscription an upgrade replaces,
// both at the provider and locally, revoking its access now.
func (r *Reconciler) retireUpgradedSubscription(ctx context.Context, providerSubscriptionID string) error {
	old, err := r.subs.GetSubscriptionByProviderID(ctx, ProviderStripe, providerSubscriptionID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		old = nil
	case err != nil:
		return err
	case old.Status == StatusCanceled:
		return nil
	}

	if err := r.gateway.CancelSubscription(ctx, providerSubscriptionID); err != nil {
		if !errors.Is(err, ErrProviderSubscriptionNotFound) {
			return err
		}
		r.logger.InfoContext(ctx, "upgraded subscription already gone at provider",
			logger.ProviderSubscriptionID(providerSubscriptionID))
	}
	if old == nil {
		return nil
	}

	now := r.now().UTC()
	old.Status, _ = Transition(old.Status, TriggerCanceled)
	old.CanceledAt = &now
	old.CurrentPeriodEnd = &now
	old.UpdatedAt = now
	if _, saved, err := r.save(ctx, old); err != nil || !saved {
		return err
	}

	r.logger.InfoContext(ctx, "upgraded subscription canceled",
		logger.SubscriptionID(old.ID),
		logger.ProviderSubscriptionID(providerSubscriptionID))
	return nil
}

func (r *Reconciler) handleInvoicePaid(ctx context.Context, e InvoicePaid) (*Subscription, error) {
	if e.ProviderSubscriptionID == "" {
		return nil, fmt.Errorf("%w: invoice %s has no subscription", ErrMalformedEvent, e.InvoiceID)
	}

	// The invoice does not reliably carry the period bounds.
	ps, err := r.gateway.RetrieveSubscription(ctx, e.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}

	sub, err := r.activate(ctx, ps)
	if err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(e.Currency))
	if currency == "" {
		currency = "USD"
	}
	payment := &Payment{
		ID:                uuid.New(),
		UserID:            sub.UserID,
		SubscriptionID:    sub.ID,
		Provider:          ProviderStripe,
		ProviderInvoiceID: e.InvoiceID,
		AmountCents:       e.AmountPaid,
		Currency:          currency,
		Status:            PaymentSucceeded,
		CreatedAt:         r.now().UTC(),
	}
	if err := r.payments.CreatePayment(ctx, payment); err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			r.logger.InfoContext(ctx, "invoice payment already recorded", logger.InvoiceID(e.InvoiceID))
			return sub, nil
		}
		return nil, err
	}

	r.logger.InfoContext(ctx, "invoice payment recorded",
		logger.SubscriptionID(sub.ID),
		logger.InvoiceID(e.InvoiceID),
		slog.Int64("amount_cents", e.AmountPaid),
		slog.String("currency", currency))

	if sub.Status == StatusCanceled {
		return sub, nil
	}
	switch e.BillingReason {
	case BillingReasonSubscriptionCycle:
		r.notify(ctx, NotifyRenewedSubscription, sub)
	case BillingReasonSubscriptionCreate:
		r.notify(ctx, NotifyNewSubscription, sub)
	}
	return sub, nil
}

// activate marks the local row paid with the provider's period bounds,
// creating it from metadata when the checkout event has not been seen.
func (r *Reconciler) activate(ctx context.Context, ps *ProviderSubscription) (*Subscription, error) {
	sub, err := r.subs.GetSubscriptionByProviderID(ctx, ProviderStripe, ps.ID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		sub, err = r.createActive(ctx, ps)
		if !errors.Is(err, ErrSubscriptionAlreadyExists) {
			return sub, err
		}
		// Lost the race with checkout completion; update the winner.
		sub, err = r.subs.GetSubscriptionByProviderID(ctx, ProviderStripe, ps.ID)
	}
	if err != nil {
		return nil, err
	}

	status, terr := Transition(sub.Status, TriggerPaymentSucceeded)
	if terr != nil {
		r.logger.WarnContext(ctx, "payment for canceled subscription, status kept",
			logger.SubscriptionID(sub.ID),
			logger.Status(string(sub.Status)))
		return sub, nil
	}

	sub.Status = status
	if ps.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = ps.CurrentPeriodStart
	}
	if ps.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = ps.CurrentPeriodEnd
	}
	if sub.ProviderCustomerID == "" {
		sub.ProviderCustomerID = ps.CustomerID
	}
	sub.UpdatedAt = r.now().UTC()
	sub, _, err = r.save(ctx, sub)
	return sub, err
}

func (r *Reconciler) createActive(ctx context.Context, ps *ProviderSubscription) (*Subscription, error) {
	if ps.PlanID == uuid.Nil || ps.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: subscription %s lacks user or plan metadata", ErrMalformedEvent, ps.ID)
	}

	now := r.now().UTC()
	sub := &Subscription{
		ID:                     uuid.New(),
		UserID:                 ps.UserID,
		PlanID:                 ps.PlanID,
		Provider:               ProviderStripe,
		ProviderSubscriptionID: ps.ID,
		ProviderCustomerID:     ps.CustomerID,
		Status:                 StatusActive,
		CurrentPeriodStart:     ps.CurrentPeriodStart,
		CurrentPeriodEnd:       ps.CurrentPeriodEnd,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := r.subs.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	r.logger.InfoContext(ctx, "subscription created from paid invoice",
		logger.SubscriptionID(sub.ID),
		logger.UserID(sub.UserID),
		logger.ProviderSubscriptionID(sub.ProviderSubscriptionID))
	return sub, nil
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, e SubscriptionDeleted) (*Subscription, error) {
	if e.ProviderSubscriptionID == "" {
		return nil, fmt.Errorf("%w: deleted subscription has no id", ErrMalformedEvent)
	}

	sub, err := r.subs.GetSubscriptionByProviderID(ctx, ProviderStripe, e.ProviderSubscriptionID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return nil, fmt.Errorf("deleted subscription %s: %w", e.ProviderSubscriptionID, err)
		}
		return nil, err
	}
	if sub.Status == StatusCanceled {
		return sub, nil
	}

	now := r.now().UTC()
	canceledAt := now
	if e.CanceledAt != nil {
		canceledAt = *e.CanceledAt
	}
	sub.Status, _ = Transition(sub.Status, TriggerCanceled)
	sub.CanceledAt = &canceledAt
	// Deletion ends access immediately, unlike cancel at period end.
	sub.CurrentPeriodEnd = &now
	sub.UpdatedAt = now
	sub, saved, err := r.save(ctx, sub)
	if err != nil || !saved {
		return sub, err
	}

	r.logger.InfoContext(ctx, "subscription canceled by provider",
		logger.SubscriptionID(sub.ID),
		logger.ProviderSubscriptionID(sub.ProviderSubscriptionID))
	r.notify(ctx, NotifyCanceledSubscription, sub)
	return sub, nil
}

func (r *Reconciler) handlePaymentFailed(ctx context.Context, e InvoicePaymentFailed) (*Subscription, error) {
	if e.ProviderSubscriptionID == "" {
		return nil, fmt.Errorf("%w: invoice %s has no subscription", ErrMalformedEvent, e.InvoiceID)
	}

	sub, err := r.subs.GetSubscriptionByProviderID(ctx, ProviderStripe, e.ProviderSubscriptionID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			r.logger.WarnContext(ctx, "payment failed for unknown subscription",
				logger.ProviderSubscriptionID(e.ProviderSubscriptionID),
				logger.InvoiceID(e.InvoiceID))
			return nil, nil
		}
		return nil, err
	}

	status, err := Transition(sub.Status, TriggerPaymentFailed)
	if err != nil {
		r.logger.WarnContext(ctx, "payment failed for canceled subscription",
			logger.SubscriptionID(sub.ID),
			logger.InvoiceID(e.InvoiceID))
		return sub, nil
	}

	sub.Status = status
	sub.UpdatedAt = r.now().UTC()
	sub, saved, err := r.save(ctx, sub)
	if err != nil || !saved {
		return sub, err
	}

	r.logger.InfoContext(ctx, "subscription marked past due",
		logger.SubscriptionID(sub.ID),
		logger.InvoiceID(e.InvoiceID))
	r.notify(ctx, NotifyPaymentFailed, sub)
	return sub, nil
}

// save writes sub. When another delivery canceled the row after sub was
// read, the write is dropped and the stored row is returned with saved false.
func (r *Reconciler) save(ctx context.Context, sub *Subscription) (stored *Subscription, saved bool, err error) {
	err = r.subs.UpdateSubscription(ctx, sub)
	if err == nil {
		return sub, true, nil
	}
	if !errors.Is(err, ErrSubscriptionCanceled) {
		return nil, false, err
	}

	r.logger.WarnContext(ctx, "subscription canceled concurrently, update dropped",
		logger.SubscriptionID(sub.ID),
		logger.Status(string(sub.Status)))
	stored, err = r.subs.GetSubscriptionByID(ctx, sub.ID)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

// notify never fails the webhook: the state change is already committed.
func (r *Reconciler) notify(ctx context.Context, kind NotificationKind, sub *Subscription) {
	if err := r.notifier.Notify(ctx, kind, *sub); err != nil {
		r.logger.ErrorContext(ctx, "failed to enqueue notification",
			slog.String("kind", string(kind)),
			logger.SubscriptionID(sub.ID),
			logger.Error(err))
	}
}
