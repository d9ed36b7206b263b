package billing

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/saasbilling/pkg/audit"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

// Audit actions recorded by AdminService.
const (
	AuditUserStatusUpdated = "user.update_status"
	AuditUserRoleUpdated   = "user.update_role"
	AuditUserVerified      = "user.verify"
)

// AdminService backs the admin dashboard: totals, the user directory and
// the account flags admins manage. Every flag change is audited with the
// user before and after.
type AdminService struct {
	users    UserAdminStore
	subs     SubscriptionStore
	payments PaymentStore
	audit    AuditLogger
	logger   *slog.Logger
}

// NewAdminService returns an AdminService. Only WithLogger and WithAuditLogger
// apply to it.
func NewAdminService(users UserAdminStore, subs SubscriptionStore, payments PaymentStore, opts ...Option) *AdminService {
	o := applyOptions(opts)
	return &AdminService{
		users:    users,
		subs:     subs,
		payments: payments,
		audit:    o.audit,
		logger:   o.logger.With(logger.Component("billing.admin")),
	}
}

// Stats returns the dashboard totals.
func (s *AdminService) Stats(ctx context.Context) (Totals, error) {
	return s.users.Totals(ctx)
}

// ListUsers returns a page of users matching filter, newest first.
func (s *AdminService) ListUsers(ctx context.Context, filter UserFilter, page Page) ([]User, error) {
	return s.users.ListUsers(ctx, filter, page.Normalize())
}

// GetUser returns the user with every subscription and payment they have.
func (s *AdminService) GetUser(ctx context.Context, id uuid.UUID) (*UserDetail, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &UserDetail{User: user}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subs, err := s.subs.ListUserSubscriptions(gctx, id)
		detail.Subscriptions = subs
		return err
	})
	g.Go(func() error {
		payments, err := s.payments.ListUserPayments(gctx, id)
		detail.Payments = payments
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

// SetUserActive suspends or reinstates the user.
func (s *AdminService) SetUserActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	return s.updateUser(ctx, id, AuditUserStatusUpdated, func(u *User) { u.Suspended = !active })
}

// SetUserAdmin grants or revokes the admin role.
func (s *AdminService) SetUserAdmin(ctx context.Context, id uuid.UUID, admin bool) (*User, error) {
	return s.updateUser(ctx, id, AuditUserRoleUpdated, func(u *User) { u.IsAdmin = admin })
}

// VerifyUser marks the user verified. Verifying twice is a no-op.
func (s *AdminService) VerifyUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.updateUser(ctx, id, AuditUserVerified, func(u *User) { u.IsVerified = true })
}

// updateUser applies mutate and audits the change. A mutation that leaves
// the user as it was writes nothing.
func (s *AdminService) updateUser(ctx context.Context, id uuid.UUID, action string, mutate func(*User)) (*User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	before := *user
	mutate(user)
	if *user == before {
		return user, nil
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "user updated by admin",
		slog.String("action", action),
		logger.UserID(id))
	if err := s.audit.Log(ctx, action,
		audit.WithResource("user", id.String()),
		audit.WithChange(before, *user),
	); err != nil {
		s.logger.WarnContext(ctx, "failed to write audit event",
			slog.String("action", action),
			logger.Error(err))
	}
	return user, nil
}
