package billing

import (
	"fmt"

	"github.com/dmitrymomot/saasbilling/handler"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
)

func (h *handlers) adminStats(ctx handler.Context, _ struct{}) handler.Response {
	totals, err := h.users.Stats(ctx)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(totals)
}

func (h *handlers) adminListUsers(ctx handler.Context, req listUsersRequest) handler.Response {
	page := pageRequest{Limit: req.Limit, Offset: req.Offset}.page()
	users, err := h.users.ListUsers(ctx, billing.UserFilter{
		Admin:     req.Admin,
		Verified:  req.Verified,
		Suspended: req.Suspended,
	}, page)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(users)
}

func (h *handlers) adminGetUser(ctx handler.Context, req userIDRequest) handler.Response {
	detail, err := h.users.GetUser(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(detail)
}

func (h *handlers) adminUpdateUserStatus(ctx handler.Context, req userStatusRequest) handler.Response {
	if req.IsActive == nil {
		return fail(fmt.Errorf("%w: is_active is required", billing.ErrInvalidInput))
	}
	user, err := h.users.SetUserActive(ctx, req.ID, *req.IsActive)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(user)
}

func (h *handlers) adminUpdateUserRole(ctx handler.Context, req userRoleRequest) handler.Response {
	if req.IsAdmin == nil {
		return fail(fmt.Errorf("%w: is_admin is required", billing.ErrInvalidInput))
	}
	user, err := h.users.SetUserAdmin(ctx, req.ID, *req.IsAdmin)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(user)
}

func (h *handlers) adminVerifyUser(ctx handler.Context, req userIDRequest) handler.Response {
	user, err := h.users.VerifyUser(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(user)
}
