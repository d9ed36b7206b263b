package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/pkg/audit"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
)

// PlanManager is implemented by billing.PlanService.
type PlanManager interface {
	CreatePlan(ctx context.Context, in billing.CreatePlanInput) (*billing.Plan, error)
	UpdatePlan(ctx context.Context, id uuid.UUID, in billing.UpdatePlanInput) (*billing.Plan, error)
	DeletePlan(ctx context.Context, id uuid.UUID) error
	GetPlan(ctx context.Context, id uuid.UUID) (*billing.Plan, error)
	ListPlans(ctx context.Context, activeOnly bool, page billing.Page) ([]billing.Plan, error)
}

// SubscriptionManager is implemented by billing.SubscriptionService.
type SubscriptionManager interface {
	Subscribe(ctx context.Context, userID uuid.UUID, planCode string) (*billing.CheckoutSession, error)
	Upgrade(ctx context.Context, userID uuid.UUID, planCode string) (*billing.CheckoutSession, error)
	CancelAtPeriodEnd(ctx context.Context, userID uuid.UUID) (*billing.Subscription, error)
	CurrentSubscription(ctx context.Context, userID uuid.UUID) (*billing.Access, error)
	ListUserSubscriptions(ctx context.Context, userID uuid.UUID) ([]billing.Subscription, error)
	ListSubscriptions(ctx context.Context, page billing.Page) ([]billing.Subscription, error)
	RequireTier(ctx context.Context, userID uuid.UUID, required billing.Tier) (*billing.Access, error)
}

// PaymentLister is implemented by billing.PaymentService.
type PaymentLister interface {
	ListMyPayments(ctx context.Context, userID uuid.UUID) ([]billing.Payment, error)
	ListPayments(ctx context.Context, page billing.Page) ([]billing.Payment, error)
}

// WebhookReceiver is implemented by billing.Reconciler.
type WebhookReceiver interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) (billing.WebhookResult, error)
}

// UserAdmin is implemented by billing.AdminService.
type UserAdmin interface {
	Stats(ctx context.Context) (billing.Totals, error)
	ListUsers(ctx context.Context, filter billing.UserFilter, page billing.Page) ([]billing.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*billing.UserDetail, error)
	SetUserActive(ctx context.Context, id uuid.UUID, active bool) (*billing.User, error)
	SetUserAdmin(ctx context.Context, id uuid.UUID, admin bool) (*billing.User, error)
	VerifyUser(ctx context.Context, id uuid.UUID) (*billing.User, error)
}

// AuditFinder is implemented by audit.Logger.
type AuditFinder interface {
	Find(ctx context.Context, criteria audit.Criteria) ([]audit.Event, error)
}
