package billing

import (
	"net/http"

	"github.com/dmitrymomot/saasbilling/handler"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
)

func (h *handlers) listPlans(ctx handler.Context, req pageRequest) handler.Response {
	plans, err := h.plans.ListPlans(ctx, true, req.page())
	if err != nil {
		return fail(err)
	}
	return handler.JSON(plans)
}

func (h *handlers) getPlan(ctx handler.Context, req planIDRequest) handler.Response {
	plan, err := h.plans.GetPlan(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(plan)
}

func (h *handlers) createPlan(ctx handler.Context, req billing.CreatePlanInput) handler.Response {
	plan, err := h.plans.CreatePlan(ctx, req)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(plan, handler.WithJSONStatus(http.StatusCreated))
}

func (h *handlers) updatePlan(ctx handler.Context, req updatePlanRequest) handler.Response {
	plan, err := h.plans.UpdatePlan(ctx, req.ID, req.UpdatePlanInput)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(plan)
}

func (h *handlers) deletePlan(ctx handler.Context, req planIDRequest) handler.Response {
	if err := h.plans.DeletePlan(ctx, req.ID); err != nil {
		return fail(err)
	}
	return handler.Empty()
}

func (h *handlers) adminListPlans(ctx handler.Context, req pageRequest) handler.Response {
	plans, err := h.plans.ListPlans(ctx, false, req.page())
	if err != nil {
		return fail(err)
	}
	return handler.JSON(plans)
}
