package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/handler"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/jwt"
)

// currentUser returns the subject of the verified token.
func currentUser(ctx handler.Context) (uuid.UUID, bool) {
	claims, ok := jwt.GetClaims(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return claims.UserID(), true
}

type mySubscriptionsResponse struct {
	Current *billing.Access        `json:"current"`
	History []billing.Subscription `json:"history"`
}

func (h *handlers) mySubscriptions(ctx handler.Context, _ struct{}) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return fail(handler.ErrUnauthorized)
	}

	current, err := h.subscriptions.CurrentSubscription(ctx, userID)
	if err != nil && !errors.Is(err, billing.ErrNoActiveSubscription) {
		return fail(err)
	}
	history, err := h.subscriptions.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(mySubscriptionsResponse{Current: current, History: history})
}

type checkoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

func (h *handlers) subscribe(ctx handler.Context, req planCodeRequest) handler.Response {
	return h.checkout(ctx, req, h.subscriptions.Subscribe)
}

func (h *handlers) upgrade(ctx handler.Context, req planCodeRequest) handler.Response {
	return h.checkout(ctx, req, h.subscriptions.Upgrade)
}

type checkoutFunc func(ctx context.Context, userID uuid.UUID, planCode string) (*billing.CheckoutSession, error)

func (h *handlers) checkout(ctx handler.Context, req planCodeRequest, start checkoutFunc) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return fail(handler.ErrUnauthorized)
	}
	if req.PlanCode == "" {
		return fail(handler.NewHTTPError(http.StatusUnprocessableEntity, "plan_code_required"))
	}

	session, err := start(ctx, userID, req.PlanCode)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(checkoutResponse{SessionID: session.ID, CheckoutURL: session.URL},
		handler.WithJSONStatus(http.StatusCreated))
}

func (h *handlers) cancel(ctx handler.Context, _ struct{}) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return fail(handler.ErrUnauthorized)
	}
	sub, err := h.subscriptions.CancelAtPeriodEnd(ctx, userID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(sub)
}

type premiumResponse struct {
	Tier           billing.Tier `json:"tier"`
	PlanCode       string       `json:"plan_code"`
	SubscriptionID uuid.UUID    `json:"subscription_id"`
}

// premium answers whether the caller's plan unlocks the requested tier.
func (h *handlers) premium(ctx handler.Context, req tierRequest) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return fail(handler.ErrUnauthorized)
	}
	access, err := h.subscriptions.RequireTier(ctx, userID, req.Tier)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(premiumResponse{
		Tier:           access.Plan.Tier,
		PlanCode:       access.Plan.Code,
		SubscriptionID: access.Subscription.ID,
	})
}

func (h *handlers) adminListSubscriptions(ctx handler.Context, req pageRequest) handler.Response {
	subs, err := h.subscriptions.ListSubscriptions(ctx, req.page())
	if err != nil {
		return fail(err)
	}
	return handler.JSON(subs)
}
