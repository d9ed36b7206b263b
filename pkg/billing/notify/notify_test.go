package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/billing/memstore"
	"github.com/dmitrymomot/saasbilling/pkg/billing/notify"
	"github.com/dmitrymomot/saasbilling/pkg/email"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
	"github.com/dmitrymomot/saasbilling/pkg/queue"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	err  error
}

func (s *recordingSender) SendEmail(_ context.Context, p email.SendEmailParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, p)
	return nil
}

type fixture struct {
	store   *memstore.Store
	tasks   *queue.MemoryStorage
	sender  *recordingSender
	notify  *notify.QueueNotifier
	worker  *queue.Worker
	user    billing.User
	plan    *billing.Plan
	periodE time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memstore.New(),
		tasks:   queue.NewMemoryStorage(),
		sender:  &recordingSender{},
		user:    billing.User{ID: uuid.New(), Email: "ada@example.com"},
		periodE: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	f.store.PutUser(f.user)
	f.plan = &billing.Plan{
		ID: uuid.New(), Code: "pro", Name: "Pro", Currency: "usd", PriceCents: 1500,
		BillingPeriod: billing.BillingPeriodMonthly, Tier: billing.TierPro, IsActive: true,
	}
	require.NoError(t, f.store.CreatePlan(context.Background(), f.plan))

	enq, err := queue.NewEnqueuer(f.tasks)
	require.NoError(t, err)
	f.notify = notify.NewQueueNotifier(enq)

	mailer := notify.NewMailer(f.store, f.store, f.sender, "support@example.com", logger.Discard())
	f.worker, err = queue.NewWorker(f.tasks,
		queue.WithQueues(notify.QueueName),
		queue.WithWorkerLogger(logger.Discard()))
	require.NoError(t, err)
	require.NoError(t, f.worker.RegisterHandlers(mailer.Handlers()...))
	return f
}

func (f *fixture) subscription() billing.Subscription {
	return billing.Subscription{
		ID:               uuid.New(),
		UserID:           f.user.ID,
		PlanID:           f.plan.ID,
		Status:           billing.StatusActive,
		CurrentPeriodEnd: &f.periodE,
	}
}

func TestQueueNotifier_Delivery(t *testing.T) {
	t.Parallel()

	cases := []struct {
		kind    billing.NotificationKind
		subject string
		tag     string
		body    string
	}{
		{billing.NotifyNewSubscription, "Welcome to Pro", "subscription-new", "April 1, 2026"},
		{billing.NotifyRenewedSubscription, "Your subscription was renewed", "subscription-renewed", "April 1, 2026"},
		{billing.NotifyCanceledSubscription, "Your subscription was canceled", "subscription-canceled", "canceled on -"},
		{billing.NotifyPaymentFailed, "Payment failed", "payment-failed", "update your payment method"},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			ctx := context.Background()
			require.NoError(t, f.notify.Notify(ctx, tc.kind, f.subscription()))

			pending := f.tasks.Tasks(queue.TaskStatusPending)
			require.Len(t, pending, 1)
			assert.Equal(t, notify.QueueName, pending[0].Queue)
			assert.Equal(t, 5, pending[0].MaxRetries)

			require.True(t, f.worker.ProcessNext(ctx))
			assert.Len(t, f.tasks.Tasks(queue.TaskStatusCompleted), 1)

			require.Len(t, f.sender.sent, 1)
			msg := f.sender.sent[0]
			assert.Equal(t, "ada@example.com", msg.SendTo)
			assert.Equal(t, tc.subject, msg.Subject)
			assert.Equal(t, tc.tag, msg.Tag)
			assert.Contains(t, msg.BodyHTML, "<strong>Pro</strong>")
			assert.Contains(t, msg.BodyHTML, tc.body)
			assert.Contains(t, msg.BodyHTML, "support@example.com")
		})
	}
}

func TestQueueNotifier_UnknownKind(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	err := f.notify.Notify(context.Background(), "upsell", f.subscription())
	assert.ErrorIs(t, err, notify.ErrUnknownKind)
	assert.Empty(t, f.tasks.Tasks())
}

func TestMailer_Send(t *testing.T) {
	t.Parallel()

	t.Run("missing user is skipped", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		sub := f.subscription()
		sub.UserID = uuid.New()

		mailer := notify.NewMailer(f.store, f.store, f.sender, "support@example.com", logger.Discard())
		require.NoError(t, mailer.Send(context.Background(), billing.NotifyPaymentFailed, sub))
		assert.Empty(t, f.sender.sent)
	})

	t.Run("deleted plan falls back to generic name", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		sub := f.subscription()
		sub.PlanID = uuid.New()

		mailer := notify.NewMailer(f.store, f.store, f.sender, "support@example.com", logger.Discard())
		require.NoError(t, mailer.Send(context.Background(), billing.NotifyRenewedSubscription, sub))
		require.Len(t, f.sender.sent, 1)
		assert.Contains(t, f.sender.sent[0].BodyHTML, "your plan")
	})

	t.Run("send failure is retried", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		f.sender.err = errors.New("postmark unavailable")
		ctx := context.Background()

		require.NoError(t, f.notify.Notify(ctx, billing.NotifyNewSubscription, f.subscription()))
		require.True(t, f.worker.ProcessNext(ctx))

		pending := f.tasks.Tasks(queue.TaskStatusPending)
		require.Len(t, pending, 1)
		assert.Equal(t, 1, pending[0].RetryCount)
		assert.Contains(t, pending[0].Error, "postmark unavailable")
	})
}
