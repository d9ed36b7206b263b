package billing

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrPlanNotFound       = errors.New("plan not found")
	ErrPlanCodeTaken      = errors.New("plan code already exists")
	ErrPlanAlreadyDeleted = errors.New("plan is already deleted")
	ErrPlanNotSynced      = errors.New("plan is not available for purchase yet")

	ErrUserNotFound  = errors.New("user not found")
	ErrUserSuspended = errors.New("user is suspended")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrActiveSubscriptionExists  = errors.New("user already has an active subscription")
	ErrNoActiveSubscription      = errors.New("no active subscription")
	ErrAlreadyOnPlan             = errors.New("already subscribed to this plan")
	ErrAlreadyCanceling          = errors.New("subscription is already set to cancel")
	ErrInvalidTransition         = errors.New("invalid subscription status transition")
	ErrSubscriptionCanceled      = errors.New("subscription is canceled")

	ErrSubscriptionRequired = errors.New("active subscription required")
	ErrInvalidPlan          = errors.New("subscription plan is invalid")
	ErrInsufficientTier     = errors.New("plan tier is insufficient")

	ErrDuplicatePayment = errors.New("payment for invoice already recorded")

	ErrInvalidSignature             = errors.New("invalid webhook signature")
	ErrMalformedEvent               = errors.New("malformed webhook event")
	ErrProviderRequest              = errors.New("payment provider request failed")
	ErrProviderSubscriptionNotFound = errors.New("provider subscription not found")
)

// IsClientError reports whether a webhook failure is caused by the event
// itself, so redelivery cannot fix it. That includes references the
// provider or the database no longer resolve, such as a purged provider
// subscription or metadata naming an unknown user.
func IsClientError(err error) bool {
	return errors.Is(err, ErrMalformedEvent) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrProviderSubscriptionNotFound) ||
		errors.Is(err, ErrInvalidInput)
}
