package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

// SubscriptionService implements the subscriber's billing actions and the
// tier check that gates premium features.
type SubscriptionService struct {
	plans      PlanStore
	subs       SubscriptionStore
	users      UserStore
	gateway    Gateway
	successURL string
	cancelURL  string
	logger     *slog.Logger
	now        func() time.Time
}

// NewSubscriptionService returns the user-facing subscription operations.
// cfg supplies the checkout redirect URLs.
func NewSubscriptionService(plans PlanStore, subs SubscriptionStore, users UserStore, gateway Gateway, cfg Config, opts ...Option) *SubscriptionService {
	o := applyOptions(opts)
	return &SubscriptionService{
		plans:      plans,
		subs:       subs,
		users:      users,
		gateway:    gateway,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		logger:     o.logger.With(logger.Component("billing.subscriptions")),
		now:        o.now,
	}
}

// Subscribe starts checkout for a user without access.
func (s *SubscriptionService) Subscribe(ctx context.Context, userID uuid.UUID, planCode string) (*CheckoutSession, error) {
	if _, err := s.activeSubscription(ctx, userID); err == nil {
		return nil, ErrActiveSubscriptionExists
	} else if !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}

	plan, err := s.purchasablePlan(ctx, planCode)
	if err != nil {
		return nil, err
	}
	user, err := s.checkoutUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		User:       user,
		Plan:       plan,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscribe checkout started", logger.UserID(userID), logger.PlanCode(plan.Code))
	return session, nil
}

// Upgrade starts checkout for a new plan that replaces the current
// subscription once the checkout completes.
func (s *SubscriptionService) Upgrade(ctx context.Context, userID uuid.UUID, planCode string) (*CheckoutSession, error) {
	current, err := s.activeSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.GetPlanByCode(ctx, planCode)
	if err != nil {
		return nil, err
	}
	if plan.ID == current.PlanID {
		return nil, ErrAlreadyOnPlan
	}
	if !plan.Synced() {
		return nil, ErrPlanNotSynced
	}

	user, err := s.checkoutUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		User:                      user,
		Plan:                      plan,
		UpgradeFromSubscriptionID: current.ProviderSubscriptionID,
		SuccessURL:                s.successURL,
		CancelURL:                 s.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "upgrade checkout started",
		logger.UserID(userID),
		logger.PlanCode(plan.Code),
		logger.SubscriptionID(current.ID))
	return session, nil
}

// CancelAtPeriodEnd stops renewal; access continues until the period ends.
func (s *SubscriptionService) CancelAtPeriodEnd(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.activeSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.CancelAtPeriodEnd {
		return nil, ErrAlreadyCanceling
	}

	res, err := s.gateway.CancelAtPeriodEnd(ctx, sub)
	if err != nil {
		return nil, err
	}

	canceledAt := res.CanceledAt
	sub.CancelAtPeriodEnd = true
	sub.CanceledAt = &canceledAt
	if res.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = res.CurrentPeriodEnd
	}
	sub.UpdatedAt = s.now().UTC()
	if err := s.subs.UpdateSubscription(ctx, sub); err != nil {
		if errors.Is(err, ErrSubscriptionCanceled) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription set to cancel at period end",
		logger.UserID(userID),
		logger.SubscriptionID(sub.ID))
	return sub, nil
}

// CurrentSubscription returns the subscription granting access with its plan.
func (s *SubscriptionService) CurrentSubscription(ctx context.Context, userID uuid.UUID) (*Access, error) {
	sub, err := s.activeSubscription(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.plans.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	return &Access{Subscription: sub, Plan: plan}, nil
}

// ListUserSubscriptions returns the user's subscription history.
func (s *SubscriptionService) ListUserSubscriptions(ctx context.Context, userID uuid.UUID) ([]Subscription, error) {
	return s.subs.ListUserSubscriptions(ctx, userID)
}

// ListSubscriptions returns all subscriptions for administrators.
func (s *SubscriptionService) ListSubscriptions(ctx context.Context, page Page) ([]Subscription, error) {
	return s.subs.ListSubscriptions(ctx, page.Normalize())
}

// RequireTier checks that the user's subscription plan reaches the required tier.
func (s *SubscriptionService) RequireTier(ctx context.Context, userID uuid.UUID, required Tier) (*Access, error) {
	sub, err := s.activeSubscription(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) {
			return nil, ErrSubscriptionRequired
		}
		return nil, err
	}

	plan, err := s.plans.GetPlanByID(ctx, sub.PlanID)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			return nil, ErrInvalidPlan
		}
		return nil, err
	}
	if !plan.Tier.AtLeast(required) {
		return nil, fmt.Errorf("%w: %s plan, %s required", ErrInsufficientTier, plan.Tier, required)
	}
	return &Access{Subscription: sub, Plan: plan}, nil
}

func (s *SubscriptionService) activeSubscription(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.subs.GetSubscriptionWithAccess(ctx, userID, s.now())
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil, ErrNoActiveSubscription
	}
	return sub, err
}

func (s *SubscriptionService) purchasablePlan(ctx context.Context, code string) (*Plan, error) {
	plan, err := s.plans.GetPlanByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !plan.Synced() {
		return nil, ErrPlanNotSynced
	}
	return plan, nil
}

func (s *SubscriptionService) checkoutUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Suspended {
		return nil, ErrUserSuspended
	}
	return user, nil
}
