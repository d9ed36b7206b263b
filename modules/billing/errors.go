package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/saasbilling/binder"
	"github.com/dmitrymomot/saasbilling/handler"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/jwt"
)

type errorMapping struct {
	target error
	status handler.HTTPError
}

// errorTable maps domain errors to responses. The first match wins.
var errorTable = []errorMapping{
	{billing.ErrInvalidInput, handler.NewHTTPError(http.StatusUnprocessableEntity, "invalid_input")},
	{billing.ErrPlanNotFound, handler.NewHTTPError(http.StatusNotFound, "plan_not_found")},
	{billing.ErrPlanCodeTaken, handler.NewHTTPError(http.StatusConflict, "plan_code_taken")},
	{billing.ErrPlanAlreadyDeleted, handler.NewHTTPError(http.StatusConflict, "plan_already_deleted")},
	{billing.ErrPlanNotSynced, handler.NewHTTPError(http.StatusConflict, "plan_not_synced")},
	{billing.ErrUserNotFound, handler.NewHTTPError(http.StatusNotFound, "user_not_found")},
	{billing.ErrUserSuspended, handler.NewHTTPError(http.StatusForbidden, "user_suspended")},
	{billing.ErrActiveSubscriptionExists, handler.NewHTTPError(http.StatusConflict, "active_subscription_exists")},
	{billing.ErrNoActiveSubscription, handler.NewHTTPError(http.StatusNotFound, "no_active_subscription")},
	{billing.ErrAlreadyOnPlan, handler.NewHTTPError(http.StatusConflict, "already_on_plan")},
	{billing.ErrAlreadyCanceling, handler.NewHTTPError(http.StatusConflict, "already_canceling")},
	{billing.ErrSubscriptionRequired, handler.NewHTTPError(http.StatusPaymentRequired, "subscription_required")},
	{billing.ErrInsufficientTier, handler.NewHTTPError(http.StatusForbidden, "insufficient_tier")},
	{billing.ErrInvalidPlan, handler.NewHTTPError(http.StatusForbidden, "invalid_plan")},
	{billing.ErrMalformedEvent, handler.NewHTTPError(http.StatusBadRequest, "malformed_event")},
	{billing.ErrSubscriptionNotFound, handler.NewHTTPError(http.StatusNotFound, "subscription_not_found")},
	{billing.ErrProviderSubscriptionNotFound, handler.NewHTTPError(http.StatusNotFound, "provider_subscription_not_found")},
	{billing.ErrProviderRequest, handler.ErrBadGateway},
	{jwt.ErrForbidden, handler.ErrForbidden},
}

func classify(err error) handler.HTTPError {
	if binder.IsBindError(err) {
		return handler.DefaultClassifier(err)
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return handler.DefaultClassifier(err)
}

func fail(err error) handler.Response {
	return handler.JSONError(err, handler.WithClassifier(classify))
}

// authError renders jwt middleware rejections in the JSON envelope.
func authError(w http.ResponseWriter, r *http.Request, err error) {
	status := handler.ErrUnauthorized
	if errors.Is(err, jwt.ErrForbidden) {
		status = handler.ErrForbidden
	}
	_ = handler.JSONError(status).Render(w, r)
}
