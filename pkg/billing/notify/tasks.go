package notify

import (
	"fmt"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
)

// Task payloads. Each carries a snapshot of the subscription taken when the
// event was reconciled.
type (
	NewSubscriptionTask struct {
		Subscription billing.Subscription `json:"subscription"`
	}
	RenewedSubscriptionTask struct {
		Subscription billing.Subscription `json:"subscription"`
	}
	CanceledSubscriptionTask struct {
		Subscription billing.Subscription `json:"subscription"`
	}
	PaymentFailedTask struct {
		Subscription billing.Subscription `json:"subscription"`
	}
)

func taskFor(kind billing.NotificationKind, sub billing.Subscription) (any, error) {
	switch kind {
	case billing.NotifyNewSubscription:
		return NewSubscriptionTask{Subscription: sub}, nil
	case billing.NotifyRenewedSubscription:
		return RenewedSubscriptionTask{Subscription: sub}, nil
	case billing.NotifyCanceledSubscription:
		return CanceledSubscriptionTask{Subscription: sub}, nil
	case billing.NotifyPaymentFailed:
		return PaymentFailedTask{Subscription: sub}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
