package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/pg"
)

const userColumns = `id, email, COALESCE(stripe_customer_id, ''), is_admin, is_verified, suspended, created_at`

func scanUser(row rowScanner) (*billing.User, error) {
	var u billing.User
	err := row.Scan(&u.ID, &u.Email, &u.StripeCustomerID, &u.IsAdmin, &u.IsVerified, &u.Suspended, &u.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*billing.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *Store) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE id = $1`, userID, customerID)
	if err != nil {
		return fmt.Errorf("set stripe customer id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrUserNotFound
	}
	return nil
}

// ListUsers applies each non-nil filter field as an equality condition.
func (s *Store) ListUsers(ctx context.Context, filter billing.UserFilter, page billing.Page) ([]billing.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users
		WHERE ($1::boolean IS NULL OR is_admin = $1)
			AND ($2::boolean IS NULL OR is_verified = $2)
			AND ($3::boolean IS NULL OR suspended = $3)
		ORDER BY created_at DESC, email
		LIMIT $4 OFFSET $5`,
		filter.Admin, filter.Verified, filter.Suspended, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return collect(rows, scanUser)
}

func (s *Store) UpdateUser(ctx context.Context, u *billing.User) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE users SET is_admin = $2, is_verified = $3, suspended = $4, updated_at = now()
WHERE id = $1`, u.ID, u.IsAdmin, u.IsVerified, u.Suspended)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrUserNotFound
	}
	return nil
}

// Totals counts in one round trip. The counts are not a snapshot across
// tables under concurrent writes.
func (s *Store) Totals(ctx context.Context) (billing.Totals, error) {
	var t billing.Totals
	err := s.pool.QueryRow(ctx, `
SELECT
	(SELECT count(*) FROM users),
	(SELECT count(*) FROM subscriptions),
	(SELECT count(*) FROM subscriptions WHERE status = 'active'),
	(SELECT count(*) FROM payments)`).
		Scan(&t.Users, &t.Subscriptions, &t.ActiveSubscriptions, &t.Payments)
	if err != nil {
		return billing.Totals{}, fmt.Errorf("count totals: %w", err)
	}
	return t, nil
}

// UpsertUser creates or refreshes the billing projection of an account.
// On conflict only the email is refreshed: the stripe customer id is kept
// once set and the admin-managed flags stay as admins left them.
func (s *Store) UpsertUser(ctx context.Context, u billing.User) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO users (id, email, stripe_customer_id, is_admin, is_verified, suspended)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email,
	stripe_customer_id = COALESCE(users.stripe_customer_id, EXCLUDED.stripe_customer_id),
	updated_at = now()`, u.ID, u.Email, u.StripeCustomerID, u.IsAdmin, u.IsVerified, u.Suspended)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

var (
	_ billing.PlanStore         = (*Store)(nil)
	_ billing.SubscriptionStore = (*Store)(nil)
	_ billing.PaymentStore      = (*Store)(nil)
	_ billing.UserAdminStore    = (*Store)(nil)
)
