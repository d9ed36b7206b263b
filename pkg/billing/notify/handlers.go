package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/email"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
	"github.com/dmitrymomot/saasbilling/pkg/queue"
)

// Mailer renders notifications and sends them to the subscriber.
type Mailer struct {
	users   billing.UserStore
	plans   billing.PlanStore
	sender  email.EmailSender
	support string
	logger  *slog.Logger
}

// NewMailer returns the queue handler side of notifications. supportEmail is
// printed in the footer of every message.
func NewMailer(users billing.UserStore, plans billing.PlanStore, sender email.EmailSender, supportEmail string, log *slog.Logger) *Mailer {
	if log == nil {
		log = slog.Default()
	}
	return &Mailer{
		users:   users,
		plans:   plans,
		sender:  sender,
		support: supportEmail,
		logger:  log.With(logger.Component("billing.notify")),
	}
}

// Handlers returns one queue handler per notification task type.
func (m *Mailer) Handlers() []queue.Handler {
	return []queue.Handler{
		queue.NewTaskHandler(func(ctx context.Context, t NewSubscriptionTask) error {
			return m.Send(ctx, billing.NotifyNewSubscription, t.Subscription)
		}),
		queue.NewTaskHandler(func(ctx context.Context, t RenewedSubscriptionTask) error {
			return m.Send(ctx, billing.NotifyRenewedSubscription, t.Subscription)
		}),
		queue.NewTaskHandler(func(ctx context.Context, t CanceledSubscriptionTask) error {
			return m.Send(ctx, billing.NotifyCanceledSubscription, t.Subscription)
		}),
		queue.NewTaskHandler(func(ctx context.Context, t PaymentFailedTask) error {
			return m.Send(ctx, billing.NotifyPaymentFailed, t.Subscription)
		}),
	}
}

// Send delivers one notification. A user that no longer exists is skipped;
// other failures are returned so the queue retries the task.
func (m *Mailer) Send(ctx context.Context, kind billing.NotificationKind, sub billing.Subscription) error {
	user, err := m.users.GetUserByID(ctx, sub.UserID)
	if errors.Is(err, billing.ErrUserNotFound) {
		m.logger.WarnContext(ctx, "notification recipient not found",
			logger.UserID(sub.UserID),
			logger.SubscriptionID(sub.ID),
			slog.String("kind", string(kind)))
		return nil
	}
	if err != nil {
		return err
	}

	planName := "your plan"
	if plan, err := m.plans.GetPlanByID(ctx, sub.PlanID); err == nil {
		planName = plan.Name
	} else if !errors.Is(err, billing.ErrPlanNotFound) {
		return err
	}

	subject, body, tag, err := render(kind, messageData{Plan: planName, Support: m.support, Subscription: sub})
	if err != nil {
		return err
	}
	if err := m.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   user.Email,
		Subject:  subject,
		BodyHTML: body,
		Tag:      tag,
	}); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "notification sent",
		logger.UserID(sub.UserID),
		logger.SubscriptionID(sub.ID),
		slog.String("kind", string(kind)))
	return nil
}
