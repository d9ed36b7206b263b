package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/pg"
)

const paymentColumns = `id, user_id, subscription_id, provider, provider_invoice_id,
	amount_cents, currency, status, created_at`

func scanPayment(row rowScanner) (*billing.Payment, error) {
	var (
		p                billing.Payment
		provider, status string
	)
	if err := row.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &provider, &p.ProviderInvoiceID,
		&p.AmountCents, &p.Currency, &status, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.Provider = billing.Provider(provider)
	p.Status = billing.PaymentStatus(status)
	return &p, nil
}

// CreatePayment relies on the (provider, provider_invoice_id) unique
// constraint to reject redelivered invoices.
func (s *Store) CreatePayment(ctx context.Context, p *billing.Payment) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO payments (id, user_id, subscription_id, provider, provider_invoice_id, amount_cents, currency, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.UserID, p.SubscriptionID, string(p.Provider), p.ProviderInvoiceID,
		p.AmountCents, p.Currency, string(p.Status), p.CreatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) && pg.ConstraintName(err) == "payments_provider_invoice_key" {
			return billing.ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Store) ListUserPayments(ctx context.Context, userID uuid.UUID) ([]billing.Payment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user payments: %w", err)
	}
	return collect(rows, scanPayment)
}

func (s *Store) ListPayments(ctx context.Context, page billing.Page) ([]billing.Payment, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return collect(rows, scanPayment)
}
