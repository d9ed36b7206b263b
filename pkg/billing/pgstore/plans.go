package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/pg"
)

const planColumns = `id, code, name, description, price_cents, currency, billing_period, tier,
	COALESCE(stripe_product_id, ''), COALESCE(stripe_price_id, ''), is_active, created_at, updated_at`

func scanPlan(row rowScanner) (*billing.Plan, error) {
	var (
		p      billing.Plan
		period string
		tier   int16
	)
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &period, &tier,
		&p.StripeProductID, &p.StripePriceID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrPlanNotFound
		}
		return nil, fmt.Errorf("scan plan: %w", err)
	}
	p.BillingPeriod = billing.BillingPeriod(period)
	p.Tier = billing.Tier(tier)
	return &p, nil
}

func (s *Store) GetPlanByID(ctx context.Context, id uuid.UUID) (*billing.Plan, error) {
	return scanPlan(s.pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
}

func (s *Store) GetPlanByCode(ctx context.Context, code string) (*billing.Plan, error) {
	return scanPlan(s.pool.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans WHERE code = $1 AND is_active`, code))
}

func (s *Store) ListPlans(ctx context.Context, activeOnly bool, page billing.Page) ([]billing.Plan, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+planColumns+` FROM plans
		WHERE is_active OR NOT $1
		ORDER BY tier, price_cents, created_at
		LIMIT $2 OFFSET $3`, activeOnly, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return collect(rows, scanPlan)
}

func (s *Store) CreatePlan(ctx context.Context, p *billing.Plan) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO plans (id, code, name, description, price_cents, currency, billing_period, tier,
	stripe_product_id, stripe_price_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13)`,
		p.ID, p.Code, p.Name, p.Description, p.PriceCents, p.Currency, string(p.BillingPeriod), int16(p.Tier),
		p.StripeProductID, p.StripePriceID, p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return billing.ErrPlanCodeTaken
		}
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// UpdatePlan writes every mutable column. The code is immutable.
func (s *Store) UpdatePlan(ctx context.Context, p *billing.Plan) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE plans SET name = $2, description = $3, price_cents = $4, currency = $5, billing_period = $6,
	tier = $7, stripe_product_id = NULLIF($8, ''), stripe_price_id = NULLIF($9, ''),
	is_active = $10, updated_at = $11
WHERE id = $1`,
		p.ID, p.Name, p.Description, p.PriceCents, p.Currency, string(p.BillingPeriod), int16(p.Tier),
		p.StripeProductID, p.StripePriceID, p.IsActive, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrPlanNotFound
	}
	return nil
}

func (s *Store) SoftDeletePlan(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE plans SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrPlanNotFound
	}
	return nil
}
