package billing

import "fmt"

// Trigger is a provider fact that moves a subscription between statuses.
type Trigger string

const (
	TriggerPaymentSucceeded Trigger = "payment_succeeded"
	TriggerPaymentFailed    Trigger = "payment_failed"
	TriggerCanceled         Trigger = "canceled"
)

// transitions lists every allowed move. Nothing leaves canceled except a
// repeated cancellation.
var transitions = map[SubscriptionStatus]map[Trigger]SubscriptionStatus{
	StatusPastDue: {
		TriggerPaymentSucceeded: StatusActive,
		TriggerPaymentFailed:    StatusPastDue,
		TriggerCanceled:         StatusCanceled,
	},
	StatusActive: {
		TriggerPaymentSucceeded: StatusActive,
		TriggerPaymentFailed:    StatusPastDue,
		TriggerCanceled:         StatusCanceled,
	},
	StatusCanceled: {
		TriggerCanceled: StatusCanceled,
	},
}

// Transition returns the status reached from from on trigger.
func Transition(from SubscriptionStatus, trigger Trigger) (SubscriptionStatus, error) {
	if to, ok := transitions[from][trigger]; ok {
		return to, nil
	}
	return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, trigger)
}
