package billing

import (
	"context"

	"github.com/google/uuid"
)

// PaymentService reads the payment ledger.
type PaymentService struct {
	payments PaymentStore
}

func NewPaymentService(payments PaymentStore) *PaymentService {
	return &PaymentService{payments: payments}
}

// ListMyPayments returns every payment of userID, newest first.
func (s *PaymentService) ListMyPayments(ctx context.Context, userID uuid.UUID) ([]Payment, error) {
	return s.payments.ListUserPayments(ctx, userID)
}

// ListPayments returns one page of the whole ledger for admins.
func (s *PaymentService) ListPayments(ctx context.Context, page Page) ([]Payment, error) {
	return s.payments.ListPayments(ctx, page.Normalize())
}
