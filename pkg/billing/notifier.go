package billing

import "context"

// NotificationKind selects the message sent to the subscriber.
type NotificationKind string

const (
	NotifyNewSubscription      NotificationKind = "new_subscription"
	NotifyRenewedSubscription  NotificationKind = "renewed_subscription"
	NotifyCanceledSubscription NotificationKind = "canceled_subscription"
	NotifyPaymentFailed        NotificationKind = "payment_failed"
)

// Notifier hands subscription notifications to an asynchronous sender.
// The subscription is passed by value as a snapshot.
type Notifier interface {
	Notify(ctx context.Context, kind NotificationKind, sub Subscription) error
}

// NopNotifier drops notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, NotificationKind, Subscription) error { return nil }
