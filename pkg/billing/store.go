package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PlanStore persists the plan catalog.
type PlanStore interface {
	GetPlanByID(ctx context.Context, id uuid.UUID) (*Plan, error)
	// GetPlanByCode returns active plans only.
	GetPlanByCode(ctx context.Context, code string) (*Plan, error)
	ListPlans(ctx context.Context, activeOnly bool, page Page) ([]Plan, error)
	// CreatePlan returns ErrPlanCodeTaken when the code exists.
	CreatePlan(ctx context.Context, plan *Plan) error
	UpdatePlan(ctx context.Context, plan *Plan) error
	SoftDeletePlan(ctx context.Context, id uuid.UUID, at time.Time) error
}

// SubscriptionStore persists subscriptions. Rows are never deleted.
type SubscriptionStore interface {
	GetSubscriptionByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetSubscriptionByProviderID(ctx context.Context, provider Provider, providerSubscriptionID string) (*Subscription, error)
	// GetSubscriptionWithAccess returns the most recent non-canceled
	// subscription of the user whose period end is not before now.
	GetSubscriptionWithAccess(ctx context.Context, userID uuid.UUID, now time.Time) (*Subscription, error)
	// CreateSubscription returns ErrSubscriptionAlreadyExists on a
	// (provider, provider subscription id) conflict.
	CreateSubscription(ctx context.Context, sub *Subscription) error
	// UpdateSubscription overwrites the row unless the stored row is
	// already canceled, in which case it returns ErrSubscriptionCanceled
	// and writes nothing. Canceled is terminal even under concurrent writers.
	UpdateSubscription(ctx context.Context, sub *Subscription) error
	ListSubscriptions(ctx context.Context, page Page) ([]Subscription, error)
	ListUserSubscriptions(ctx context.Context, userID uuid.UUID) ([]Subscription, error)
}

// PaymentStore is an append-only payment ledger.
type PaymentStore interface {
	// CreatePayment returns ErrDuplicatePayment on a
	// (provider, provider invoice id) conflict.
	CreatePayment(ctx context.Context, payment *Payment) error
	ListUserPayments(ctx context.Context, userID uuid.UUID) ([]Payment, error)
	ListPayments(ctx context.Context, page Page) ([]Payment, error)
}

// UserStore exposes the billing fields of users.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

// UserAdminStore backs the admin user views.
type UserAdminStore interface {
	UserStore
	// ListUsers returns matching users, newest first.
	ListUsers(ctx context.Context, filter UserFilter, page Page) ([]User, error)
	// UpdateUser writes the admin-managed flags: IsAdmin, IsVerified and
	// Suspended. Other fields are ignored.
	UpdateUser(ctx context.Context, user *User) error
	Totals(ctx context.Context) (Totals, error)
}
