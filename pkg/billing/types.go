package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tier orders plans for access checks.
type Tier int

const (
	TierFree Tier = iota
	TierPro
	TierVIP
)

var tierNames = [...]string{TierFree: "free", TierPro: "pro", TierVIP: "vip"}

// Valid reports whether t is one of the defined tiers.
func (t Tier) Valid() bool { return t >= TierFree && t <= TierVIP }

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// AtLeast reports whether t satisfies a required tier.
func (t Tier) AtLeast(required Tier) bool { return t >= required }

// ParseTier accepts a tier name or its numeric rank.
func ParseTier(s string) (Tier, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range tierNames {
		if s == name || s == fmt.Sprint(i) {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, s)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: tier %d", ErrInvalidInput, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// BillingPeriod is how often a plan renews.
type BillingPeriod string

const (
	BillingPeriodMonthly BillingPeriod = "monthly"
	BillingPeriodYearly  BillingPeriod = "yearly"
)

func (p BillingPeriod) Valid() bool {
	return p == BillingPeriodMonthly || p == BillingPeriodYearly
}

// Interval is the Stripe recurring interval for p.
func (p BillingPeriod) Interval() string {
	if p == BillingPeriodYearly {
		return "year"
	}
	return "month"
}

type Provider string

const ProviderStripe Provider = "stripe"

type SubscriptionStatus string

const (
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusCanceled SubscriptionStatus = "canceled"
)

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Plan is a catalog entry mirrored into a Stripe product and price.
type Plan struct {
	ID              uuid.UUID     `json:"id"`
	Code            string        `json:"code"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	PriceCents      int64         `json:"price_cents"`
	Currency        string        `json:"currency"`
	BillingPeriod   BillingPeriod `json:"billing_period"`
	Tier            Tier          `json:"tier"`
	StripeProductID string        `json:"stripe_product_id,omitempty"`
	StripePriceID   string        `json:"stripe_price_id,omitempty"`
	IsActive        bool          `json:"is_active"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Synced reports whether the plan can be sold through checkout.
func (p *Plan) Synced() bool { return p.StripePriceID != "" }

// Subscription is the local record of a provider subscription.
// Period bounds are nil until the first invoice is paid.
type Subscription struct {
	ID                     uuid.UUID          `json:"id"`
	UserID                 uuid.UUID          `json:"user_id"`
	PlanID                 uuid.UUID          `json:"plan_id"`
	Provider               Provider           `json:"provider"`
	ProviderSubscriptionID string             `json:"provider_subscription_id"`
	ProviderCustomerID     string             `json:"provider_customer_id,omitempty"`
	Status                 SubscriptionStatus `json:"status"`
	CurrentPeriodStart     *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd       *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool               `json:"cancel_at_period_end"`
	CanceledAt             *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// HasAccess reports whether the subscription grants access at now.
func (s *Subscription) HasAccess(now time.Time) bool {
	return s.Status != StatusCanceled && s.CurrentPeriodEnd != nil && !now.After(*s.CurrentPeriodEnd)
}

// Payment is an append-only record of a paid invoice.
type Payment struct {
	ID                uuid.UUID     `json:"id"`
	UserID            uuid.UUID     `json:"user_id"`
	SubscriptionID    uuid.UUID     `json:"subscription_id"`
	Provider          Provider      `json:"provider"`
	ProviderInvoiceID string        `json:"provider_invoice_id"`
	AmountCents       int64         `json:"amount_cents"`
	Currency          string        `json:"currency"`
	Status            PaymentStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
}

// User is the billing projection of an account. A suspended user keeps
// existing subscriptions but cannot start a checkout.
type User struct {
	ID               uuid.UUID `json:"id"`
	Email            string    `json:"email"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty"`
	IsAdmin          bool      `json:"is_admin"`
	IsVerified       bool      `json:"is_verified"`
	Suspended        bool      `json:"suspended"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserFilter narrows the admin user listing. Nil fields match any value.
type UserFilter struct {
	Admin     *bool
	Verified  *bool
	Suspended *bool
}

// Match reports whether u passes the filter.
func (f UserFilter) Match(u User) bool {
	return (f.Admin == nil || *f.Admin == u.IsAdmin) &&
		(f.Verified == nil || *f.Verified == u.IsVerified) &&
		(f.Suspended == nil || *f.Suspended == u.Suspended)
}

// Totals are the dashboard counters.
type Totals struct {
	Users               int64 `json:"users"`
	Subscriptions       int64 `json:"subscriptions"`
	ActiveSubscriptions int64 `json:"active_subscriptions"`
	Payments            int64 `json:"payments"`
}

// UserDetail is a user with their full billing history.
type UserDetail struct {
	User          *User          `json:"user"`
	Subscriptions []Subscription `json:"subscriptions"`
	Payments      []Payment      `json:"payments"`
}

// Access is a subscription that currently grants access, with its plan.
type Access struct {
	Subscription *Subscription `json:"subscription"`
	Plan         *Plan         `json:"plan"`
}

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// Page is a limit/offset window.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Normalize applies the default and maximum limit.
func (p Page) Normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
