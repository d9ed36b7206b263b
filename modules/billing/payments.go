package billing

import (
	"github.com/dmitrymomot/saasbilling/handler"
	"github.com/dmitrymomot/saasbilling/pkg/audit"
)

func (h *handlers) myPayments(ctx handler.Context, _ struct{}) handler.Response {
	userID, ok := currentUser(ctx)
	if !ok {
		return fail(handler.ErrUnauthorized)
	}
	payments, err := h.payments.ListMyPayments(ctx, userID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(payments)
}

func (h *handlers) adminListPayments(ctx handler.Context, req pageRequest) handler.Response {
	payments, err := h.payments.ListPayments(ctx, req.page())
	if err != nil {
		return fail(err)
	}
	return handler.JSON(payments)
}

func (h *handlers) adminListAudit(ctx handler.Context, req auditRequest) handler.Response {
	page := pageRequest{Limit: req.Limit, Offset: req.Offset}.page()
	events, err := h.audit.Find(ctx, audit.Criteria{
		ActorID:    req.ActorID,
		Action:     req.Action,
		Resource:   req.Resource,
		ResourceID: req.ResourceID,
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	if err != nil {
		return fail(err)
	}
	return handler.JSON(events)
}
