package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Gateway is the only component that calls the payment provider.
type Gateway interface {
	// EnsureCustomer creates a provider customer for user when it has none
	// and persists the id. It returns the up-to-date user.
	EnsureCustomer(ctx context.Context, user *User) (*User, error)
	// CreateCheckoutSession starts a hosted checkout. It never touches local
	// subscription state.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CancelAtPeriodEnd(ctx context.Context, sub *Subscription) (CancelResult, error)
	// CancelSubscription cancels immediately. Returns
	// ErrProviderSubscriptionNotFound when the provider no longer knows it.
	CancelSubscription(ctx context.Context, providerSubscriptionID string) error
	RetrieveSubscription(ctx context.Context, providerSubscriptionID string) (*ProviderSubscription, error)

	// SyncPlan creates the missing product and price and stores their ids on plan.
	SyncPlan(ctx context.Context, plan *Plan) error
	// UpdatePlan mirrors change. A price change creates a new price and
	// updates plan.StripePriceID.
	UpdatePlan(ctx context.Context, plan *Plan, change PlanChange) error
	DeactivatePlan(ctx context.Context, plan *Plan) error

	// ParseEvent verifies a webhook signature and decodes the event.
	ParseEvent(payload []byte, signature string) (Event, error)
}

type CheckoutRequest struct {
	User *User
	Plan *Plan
	// UpgradeFromSubscriptionID is the provider id of the subscription the
	// new one replaces.
	UpgradeFromSubscriptionID string
	SuccessURL                string
	CancelURL                 string
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type CancelResult struct {
	CanceledAt       time.Time
	CurrentPeriodEnd *time.Time
}

// ProviderSubscription is the provider's view of a subscription. PlanID and
// UserID come from metadata and are uuid.Nil when absent.
type ProviderSubscription struct {
	ID                        string
	CustomerID                string
	Status                    string
	PlanID                    uuid.UUID
	UserID                    uuid.UUID
	UpgradeFromSubscriptionID string
	CurrentPeriodStart        *time.Time
	CurrentPeriodEnd          *time.Time
	CancelAtPeriodEnd         bool
	CanceledAt                *time.Time
}

// PlanChange describes which provider-visible fields of a plan changed.
type PlanChange struct {
	Renamed  bool
	Repriced bool
}

func (c PlanChange) Empty() bool { return !c.Renamed && !c.Repriced }

// Metadata keys written on checkout subscriptions.
const (
	MetaPlanID      = "plan_id"
	MetaPlanCode    = "plan_code"
	MetaPlanName    = "plan_name"
	MetaUserID      = "user_id"
	MetaUpgradeFrom = "upgrade_from_subscription_id"
)
