package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

// StripeConfig holds Stripe credentials.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
	// APIBase overrides the API URL, for stripe-mock in development.
	APIBase string `env:"STRIPE_API_BASE"`
}

// StripeGateway implements Gateway with an explicit Stripe client.
type StripeGateway struct {
	client        *stripe.Client
	webhookSecret string
	users         UserStore
	logger        *slog.Logger
	now           func() time.Time
}

// NewStripeGateway creates a gateway. users receives new customer ids.
func NewStripeGateway(cfg StripeConfig, users UserStore, opts ...Option) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: stripe secret key is required", ErrInvalidInput)
	}
	if users == nil {
		return nil, fmt.Errorf("%w: user store is required", ErrInvalidInput)
	}
	o := applyOptions(opts)

	var client *stripe.Client
	if cfg.APIBase != "" {
		backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{URL: stripe.String(cfg.APIBase)})
		client = stripe.NewClient(cfg.SecretKey, stripe.WithBackends(backends))
	} else {
		client = stripe.NewClient(cfg.SecretKey)
	}

	return &StripeGateway{
		client:        client,
		webhookSecret: cfg.WebhookSecret,
		users:         users,
		logger:        o.logger.With(logger.Component("billing.stripe")),
		now:           o.now,
	}, nil
}

// EnsureCustomer creates the Stripe customer for user on first use and stores
// its id. A user that already has one is returned as is.
func (g *StripeGateway) EnsureCustomer(ctx context.Context, user *User) (*User, error) {
	if user.StripeCustomerID != "" {
		return user, nil
	}

	customer, err := g.client.V1Customers.Create(ctx, &stripe.CustomerCreateParams{
		Email:    stripe.String(user.Email),
		Metadata: map[string]string{MetaUserID: user.ID.String()},
	})
	if err != nil {
		return nil, providerError("create customer", err)
	}

	if err := g.users.SetStripeCustomerID(ctx, user.ID, customer.ID); err != nil {
		return nil, fmt.Errorf("persist stripe customer id: %w", err)
	}

	g.logger.InfoContext(ctx, "stripe customer created",
		logger.UserID(user.ID),
		slog.String("customer_id", customer.ID))

	updated := *user
	updated.StripeCustomerID = customer.ID
	return &updated, nil
}

// CreateCheckoutSession starts a subscription checkout for the plan's current
// price. The plan and user ids travel in the subscription metadata, where the
// reconciler reads them back when the first invoice is paid. An upgrade
// carries the id of the subscription it replaces.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.User == nil || req.Plan == nil {
		return nil, fmt.Errorf("%w: checkout needs a user and a plan", ErrInvalidInput)
	}
	if !req.Plan.Synced() {
		return nil, ErrPlanNotSynced
	}

	user, err := g.EnsureCustomer(ctx, req.User)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		MetaPlanID:   req.Plan.ID.String(),
		MetaPlanCode: req.Plan.Code,
		MetaPlanName: req.Plan.Name,
		MetaUserID:   user.ID.String(),
	}
	if req.UpgradeFromSubscriptionID != "" {
		metadata[MetaUpgradeFrom] = req.UpgradeFromSubscriptionID
	}

	session, err := g.client.V1CheckoutSessions.Create(ctx, &stripe.CheckoutSessionCreateParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer: stripe.String(user.StripeCustomerID),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{{
			Price:    stripe.String(req.Plan.StripePriceID),
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(user.ID.String()),
		SubscriptionData: &stripe.CheckoutSessionCreateSubscriptionDataParams{
			Metadata: metadata,
		},
	})
	if err != nil {
		return nil, providerError("create checkout session", err)
	}

	g.logger.InfoContext(ctx, "checkout session created",
		logger.UserID(user.ID),
		logger.PlanCode(req.Plan.Code),
		slog.String("session_id", session.ID),
		slog.String("upgrade_from", req.UpgradeFromSubscriptionID))

	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *StripeGateway) CancelAtPeriodEnd(ctx context.Context, sub *Subscription) (CancelResult, error) {
	result := CancelResult{CanceledAt: g.now().UTC(), CurrentPeriodEnd: sub.CurrentPeriodEnd}
	if sub.Provider != ProviderStripe || sub.ProviderSubscriptionID == "" {
		return result, nil
	}

	updated, err := g.client.V1Subscriptions.Update(ctx, sub.ProviderSubscriptionID, &stripe.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return result, providerError("cancel subscription at period end", err)
	}

	if updated.CanceledAt > 0 {
		result.CanceledAt = time.Unix(updated.CanceledAt, 0).UTC()
	}
	if _, end := itemPeriod(updated); end != nil {
		result.CurrentPeriodEnd = end
	}
	return result, nil
}

// CancelSubscription cancels immediately at Stripe. It returns
// ErrProviderSubscriptionNotFound when Stripe no longer knows the id.
func (g *StripeGateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	_, err := g.client.V1Subscriptions.Cancel(ctx, providerSubscriptionID, &stripe.SubscriptionCancelParams{})
	if err != nil {
		if isResourceMissing(err) {
			return ErrProviderSubscriptionNotFound
		}
		return providerError("cancel subscription", err)
	}
	return nil
}

func (g *StripeGateway) RetrieveSubscription(ctx context.Context, providerSubscriptionID string) (*ProviderSubscription, error) {
	sub, err := g.client.V1Subscriptions.Retrieve(ctx, providerSubscriptionID, &stripe.SubscriptionRetrieveParams{})
	if err != nil {
		if isResourceMissing(err) {
			return nil, ErrProviderSubscriptionNotFound
		}
		return nil, providerError("retrieve subscription", err)
	}
	return toProviderSubscription(sub), nil
}

// SyncPlan creates the product and price a plan is missing. Ids are set on
// plan as soon as Stripe assigns them, so a product created before a failed
// price call is still reported to the caller.
func (g *StripeGateway) SyncPlan(ctx context.Context, plan *Plan) error {
	if plan.StripeProductID == "" {
		product, err := g.client.V1Products.Create(ctx, &stripe.ProductCreateParams{
			Name:     stripe.String(plan.Name),
			Metadata: map[string]string{MetaPlanID: plan.ID.String(), MetaPlanCode: plan.Code},
		})
		if err != nil {
			return providerError("create product", err)
		}
		plan.StripeProductID = product.ID
	}

	if plan.StripePriceID == "" {
		priceID, err := g.createPrice(ctx, plan)
		if err != nil {
			return err
		}
		plan.StripePriceID = priceID
	}

	g.logger.InfoContext(ctx, "plan synced to stripe",
		logger.PlanCode(plan.Code),
		slog.String("product_id", plan.StripeProductID),
		slog.String("price_id", plan.StripePriceID))
	return nil
}

func (g *StripeGateway) UpdatePlan(ctx context.Context, plan *Plan, change PlanChange) error {
	if plan.StripeProductID == "" {
		return g.SyncPlan(ctx, plan)
	}

	if change.Renamed {
		if _, err := g.client.V1Products.Update(ctx, plan.StripeProductID, &stripe.ProductUpdateParams{
			Name: stripe.String(plan.Name),
		}); err != nil {
			return providerError("update product", err)
		}
	}

	if change.Repriced || plan.StripePriceID == "" {
		oldPriceID := plan.StripePriceID
		priceID, err := g.createPrice(ctx, plan)
		if err != nil {
			return err
		}
		plan.StripePriceID = priceID

		if oldPriceID != "" {
			if err := g.deactivatePrice(ctx, oldPriceID); err != nil {
				// The new price is already in place; the old one only lingers.
				g.logger.WarnContext(ctx, "failed to archive old stripe price",
					logger.PlanCode(plan.Code),
					slog.String("price_id", oldPriceID),
					logger.Error(err))
			}
		}
	}
	return nil
}

func (g *StripeGateway) DeactivatePlan(ctx context.Context, plan *Plan) error {
	if plan.StripePriceID != "" {
		if err := g.deactivatePrice(ctx, plan.StripePriceID); err != nil {
			return err
		}
	}
	if plan.StripeProductID != "" {
		if _, err := g.client.V1Products.Update(ctx, plan.StripeProductID, &stripe.ProductUpdateParams{
			Active: stripe.Bool(false),
		}); err != nil {
			return providerError("archive product", err)
		}
	}
	return nil
}

// ParseEvent verifies the Stripe-Signature header against the endpoint secret
// and decodes the event. Verification failures wrap ErrInvalidSignature.
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidSignature, err)
	}
	return DecodeEvent(&ev)
}

func (g *StripeGateway) createPrice(ctx context.Context, plan *Plan) (string, error) {
	price, err := g.client.V1Prices.Create(ctx, &stripe.PriceCreateParams{
		Product:    stripe.String(plan.StripeProductID),
		UnitAmount: stripe.Int64(plan.PriceCents),
		Currency:   stripe.String(strings.ToLower(plan.Currency)),
		Recurring: &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(plan.BillingPeriod.Interval()),
		},
		Metadata: map[string]string{MetaPlanID: plan.ID.String(), MetaPlanCode: plan.Code},
	})
	if err != nil {
		return "", providerError("create price", err)
	}
	return price.ID, nil
}

func (g *StripeGateway) deactivatePrice(ctx context.Context, priceID string) error {
	if _, err := g.client.V1Prices.Update(ctx, priceID, &stripe.PriceUpdateParams{
		Active: stripe.Bool(false),
	}); err != nil {
		return providerError("archive price", err)
	}
	return nil
}

func toProviderSubscription(sub *stripe.Subscription) *ProviderSubscription {
	ps := &ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		ps.CustomerID = sub.Customer.ID
	}
	if sub.Metadata != nil {
		ps.PlanID, _ = uuid.Parse(sub.Metadata[MetaPlanID])
		ps.UserID, _ = uuid.Parse(sub.Metadata[MetaUserID])
		ps.UpgradeFromSubscriptionID = sub.Metadata[MetaUpgradeFrom]
	}
	ps.CurrentPeriodStart, ps.CurrentPeriodEnd = itemPeriod(sub)
	if sub.CanceledAt > 0 {
		t := time.Unix(sub.CanceledAt, 0).UTC()
		ps.CanceledAt = &t
	}
	return ps
}

// itemPeriod reads the period bounds from the first subscription item.
func itemPeriod(sub *stripe.Subscription) (start, end *time.Time) {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0] == nil {
		return nil, nil
	}
	item := sub.Items.Data[0]
	if item.CurrentPeriodStart > 0 {
		t := time.Unix(item.CurrentPeriodStart, 0).UTC()
		start = &t
	}
	if item.CurrentPeriodEnd > 0 {
		t := time.Unix(item.CurrentPeriodEnd, 0).UTC()
		end = &t
	}
	return start, end
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	return errors.As(err, &stripeErr) && stripeErr.Code == stripe.ErrorCodeResourceMissing
}

func providerError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProviderRequest, op, err)
}
