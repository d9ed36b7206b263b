package notify

import (
	"context"
	"errors"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/queue"
)

// Enqueuer is the part of queue.Enqueuer the notifier needs.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// QueueName is the queue notification tasks are enqueued on.
const QueueName = "notifications"

// QueueNotifier turns notifications into queue tasks.
type QueueNotifier struct {
	enqueuer Enqueuer
	opts     []queue.EnqueueOption
}

// NewQueueNotifier enqueues on QueueName with five delivery attempts;
// opts are appended and may override both.
func NewQueueNotifier(enqueuer Enqueuer, opts ...queue.EnqueueOption) *QueueNotifier {
	base := []queue.EnqueueOption{queue.WithQueue(QueueName), queue.WithMaxRetries(5)}
	return &QueueNotifier{enqueuer: enqueuer, opts: append(base, opts...)}
}

func (n *QueueNotifier) Notify(ctx context.Context, kind billing.NotificationKind, sub billing.Subscription) error {
	task, err := taskFor(kind, sub)
	if err != nil {
		return err
	}
	if err := n.enqueuer.Enqueue(ctx, task, n.opts...); err != nil {
		return errors.Join(ErrEnqueueFailed, err)
	}
	return nil
}

var _ billing.Notifier = (*QueueNotifier)(nil)
