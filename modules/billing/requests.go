package billing

import (
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/binder"
	"github.com/dmitrymomot/saasbilling/handler"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
)

var (
	bodyBinders  = []handler.Bind{binder.JSON()}
	pathBinders  = []handler.Bind{binder.Path(chi.URLParam)}
	queryBinders = []handler.Bind{binder.Query()}
)

type pageRequest struct {
	Limit  int `query:"limit"`
	Offset int `query:"offset"`
}

func (p pageRequest) page() billing.Page {
	return billing.Page{Limit: p.Limit, Offset: p.Offset}.Normalize()
}

type planIDRequest struct {
	ID uuid.UUID `path:"id"`
}

type updatePlanRequest struct {
	ID uuid.UUID `path:"id" json:"-"`
	billing.UpdatePlanInput
}

type planCodeRequest struct {
	PlanCode string `json:"plan_code"`
}

type tierRequest struct {
	Tier billing.Tier `path:"tier"`
}

type auditRequest struct {
	Limit      int    `query:"limit"`
	Offset     int    `query:"offset"`
	ActorID    string `query:"actor_id"`
	Action     string `query:"action"`
	Resource   string `query:"resource"`
	ResourceID string `query:"resource_id"`
}

type userIDRequest struct {
	ID uuid.UUID `path:"id"`
}

type listUsersRequest struct {
	Limit     int   `query:"limit"`
	Offset    int   `query:"offset"`
	Admin     *bool `query:"is_admin"`
	Verified  *bool `query:"is_verified"`
	Suspended *bool `query:"suspended"`
}

type userStatusRequest struct {
	ID       uuid.UUID `path:"id" json:"-"`
	IsActive *bool     `json:"is_active"`
}

type userRoleRequest struct {
	ID      uuid.UUID `path:"id" json:"-"`
	IsAdmin *bool     `json:"is_admin"`
}
