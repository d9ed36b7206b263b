package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/pg"
)

const subscriptionColumns = `id, user_id, plan_id, provider, provider_subscription_id,
	COALESCE(provider_customer_id, ''), status, current_period_start, current_period_end,
	cancel_at_period_end, canceled_at, created_at, updated_at`

func scanSubscription(row rowScanner) (*billing.Subscription, error) {
	var (
		sub              billing.Subscription
		provider, status string
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.PlanID, &provider, &sub.ProviderSubscriptionID,
		&sub.ProviderCustomerID, &status, &sub.CurrentPeriodStart, &sub.CurrentPeriodEnd,
		&sub.CancelAtPeriodEnd, &sub.CanceledAt, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Provider = billing.Provider(provider)
	sub.Status = billing.SubscriptionStatus(status)
	return &sub, nil
}

func (s *Store) GetSubscriptionByID(ctx context.Context, id uuid.UUID) (*billing.Subscription, error) {
	return scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id))
}

func (s *Store) GetSubscriptionByProviderID(ctx context.Context, provider billing.Provider, providerSubscriptionID string) (*billing.Subscription, error) {
	return scanSubscription(s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider = $1 AND provider_subscription_id = $2`,
		string(provider), providerSubscriptionID))
}

func (s *Store) GetSubscriptionWithAccess(ctx context.Context, userID uuid.UUID, now time.Time) (*billing.Subscription, error) {
	return scanSubscription(s.pool.QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND status <> 'canceled' AND current_period_end >= $2
		ORDER BY created_at DESC
		LIMIT 1`, userID, now))
}

func (s *Store) CreateSubscription(ctx context.Context, sub *billing.Subscription) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO subscriptions (id, user_id, plan_id, provider, provider_subscription_id, provider_customer_id,
	status, current_period_start, current_period_end, cancel_at_period_end, canceled_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, $13)`,
		sub.ID, sub.UserID, sub.PlanID, string(sub.Provider), sub.ProviderSubscriptionID, sub.ProviderCustomerID,
		string(sub.Status), sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.CanceledAt,
		sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return billing.ErrSubscriptionAlreadyExists
		}
		if pg.IsForeignKeyViolationError(err) {
			return fmt.Errorf("%w: %s", billing.ErrInvalidInput, pg.ConstraintName(err))
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *billing.Subscription) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE subscriptions SET plan_id = $2, provider_customer_id = NULLIF($3, ''), status = $4,
	current_period_start = $5, current_period_end = $6, cancel_at_period_end = $7,
	canceled_at = $8, updated_at = $9
WHERE id = $1 AND status <> 'canceled'`,
		sub.ID, sub.PlanID, sub.ProviderCustomerID, string(sub.Status), sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.CanceledAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM subscriptions WHERE id = $1)`, sub.ID).Scan(&exists); err != nil {
			return fmt.Errorf("update subscription: %w", err)
		}
		if exists {
			return billing.ErrSubscriptionCanceled
		}
		return billing.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, page billing.Page) ([]billing.Subscription, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return collect(rows, scanSubscription)
}

func (s *Store) ListUserSubscriptions(ctx context.Context, userID uuid.UUID) ([]billing.Subscription, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user subscriptions: %w", err)
	}
	return collect(rows, scanSubscription)
}
