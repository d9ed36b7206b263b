package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"

	"github.com/dmitrymomot/saasbilling/pkg/audit"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

// Audit actions for plan administration.
const (
	AuditPlanCreated    = "plan.created"
	AuditPlanUpdated    = "plan.updated"
	AuditPlanDeleted    = "plan.deleted"
	AuditPlanSyncFailed = "plan.sync_failed"
)

var planCodeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{1,63}$`)

// CreatePlanInput describes a new plan.
type CreatePlanInput struct {
	Code          string        `json:"code" yaml:"code"`
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description" yaml:"description"`
	PriceCents    int64         `json:"price_cents" yaml:"price_cents"`
	Currency      string        `json:"currency" yaml:"currency"`
	BillingPeriod BillingPeriod `json:"billing_period" yaml:"billing_period"`
	Tier          Tier          `json:"tier" yaml:"tier"`
}

func (in *CreatePlanInput) normalize() {
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))
	in.Name = strings.TrimSpace(in.Name)
	in.Currency = strings.ToLower(strings.TrimSpace(in.Currency))
	if in.BillingPeriod == "" {
		in.BillingPeriod = BillingPeriodMonthly
	}
}

func (in CreatePlanInput) Validate() error {
	if !planCodeRe.MatchString(in.Code) {
		return fmt.Errorf("%w: code must be 2-64 lowercase letters, digits, '-' or '_'", ErrInvalidInput)
	}
	return validatePlanFields(in.Name, in.PriceCents, in.Currency, in.BillingPeriod, in.Tier)
}

// UpdatePlanInput is a partial update. The code cannot change.
type UpdatePlanInput struct {
	Name          *string        `json:"name,omitempty"`
	Description   *string        `json:"description,omitempty"`
	PriceCents    *int64         `json:"price_cents,omitempty"`
	Currency      *string        `json:"currency,omitempty"`
	BillingPeriod *BillingPeriod `json:"billing_period,omitempty"`
	Tier          *Tier          `json:"tier,omitempty"`
}

// apply changes plan in place and reports what the provider must mirror.
func (in UpdatePlanInput) apply(plan *Plan) PlanChange {
	var change PlanChange
	if in.Name != nil && strings.TrimSpace(*in.Name) != plan.Name {
		plan.Name = strings.TrimSpace(*in.Name)
		change.Renamed = true
	}
	if in.Description != nil {
		plan.Description = *in.Description
	}
	if in.PriceCents != nil && *in.PriceCents != plan.PriceCents {
		plan.PriceCents = *in.PriceCents
		change.Repriced = true
	}
	if in.Currency != nil {
		if c := strings.ToLower(strings.TrimSpace(*in.Currency)); c != plan.Currency {
			plan.Currency = c
			change.Repriced = true
		}
	}
	if in.BillingPeriod != nil && *in.BillingPeriod != plan.BillingPeriod {
		plan.BillingPeriod = *in.BillingPeriod
		change.Repriced = true
	}
	if in.Tier != nil {
		plan.Tier = *in.Tier
	}
	return change
}

func validatePlanFields(name string, priceCents int64, cur string, period BillingPeriod, tier Tier) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if priceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if _, err := currency.ParseISO(strings.ToUpper(cur)); err != nil || len(cur) != 3 {
		return fmt.Errorf("%w: unknown currency %q", ErrInvalidInput, cur)
	}
	if !period.Valid() {
		return fmt.Errorf("%w: billing period must be monthly or yearly", ErrInvalidInput)
	}
	if !tier.Valid() {
		return fmt.Errorf("%w: unknown tier %d", ErrInvalidInput, int(tier))
	}
	return nil
}

// PlanService manages the plan catalog and mirrors it into the provider.
type PlanService struct {
	plans   PlanStore
	gateway Gateway
	audit   AuditLogger
	logger  *slog.Logger
	now     func() time.Time
}

// NewPlanService returns a PlanService that mirrors catalog changes to gateway.
func NewPlanService(plans PlanStore, gateway Gateway, opts ...Option) *PlanService {
	o := applyOptions(opts)
	return &PlanService{
		plans:   plans,
		gateway: gateway,
		audit:   o.audit,
		logger:  o.logger.With(logger.Component("billing.plans")),
		now:     o.now,
	}
}

// CreatePlan stores the plan, then syncs it to the provider. A sync failure
// is logged and the plan is returned unsynced.
func (s *PlanService) CreatePlan(ctx context.Context, in CreatePlanInput) (*Plan, error) {
	in.normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	plan := &Plan{
		ID:            uuid.New(),
		Code:          in.Code,
		Name:          in.Name,
		Description:   in.Description,
		PriceCents:    in.PriceCents,
		Currency:      in.Currency,
		BillingPeriod: in.BillingPeriod,
		Tier:          in.Tier,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.plans.CreatePlan(ctx, plan); err != nil {
		return nil, err
	}

	s.logAudit(ctx, AuditPlanCreated, plan, audit.WithChange(nil, *plan))
	s.sync(ctx, plan, func(p *Plan) error { return s.gateway.SyncPlan(ctx, p) })
	return plan, nil
}

// UpdatePlan applies a partial update and mirrors price changes as a new
// provider price.
func (s *PlanService) UpdatePlan(ctx context.Context, id uuid.UUID, in UpdatePlanInput) (*Plan, error) {
	plan, err := s.plans.GetPlanByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanAlreadyDeleted
	}

	before := *plan
	change := in.apply(plan)
	if err := validatePlanFields(plan.Name, plan.PriceCents, plan.Currency, plan.BillingPeriod, plan.Tier); err != nil {
		return nil, err
	}

	plan.UpdatedAt = s.now().UTC()
	if err := s.plans.UpdatePlan(ctx, plan); err != nil {
		return nil, err
	}
	s.logAudit(ctx, AuditPlanUpdated, plan, audit.WithChange(before, *plan))

	if !change.Empty() || !plan.Synced() {
		s.sync(ctx, plan, func(p *Plan) error { return s.gateway.UpdatePlan(ctx, p, change) })
	}
	return plan, nil
}

// DeletePlan deactivates the plan locally and at the provider.
func (s *PlanService) DeletePlan(ctx context.Context, id uuid.UUID) error {
	plan, err := s.plans.GetPlanByID(ctx, id)
	if err != nil {
		return err
	}
	if !plan.IsActive {
		return ErrPlanAlreadyDeleted
	}

	before := *plan
	now := s.now().UTC()
	if err := s.plans.SoftDeletePlan(ctx, id, now); err != nil {
		return err
	}
	plan.IsActive = false
	plan.UpdatedAt = now
	s.logAudit(ctx, AuditPlanDeleted, plan, audit.WithChange(before, *plan))

	if err := s.gateway.DeactivatePlan(ctx, plan); err != nil {
		s.syncFailed(ctx, plan, err)
	}
	return nil
}

// GetPlan returns the plan by id, including deactivated ones.
func (s *PlanService) GetPlan(ctx context.Context, id uuid.UUID) (*Plan, error) {
	return s.plans.GetPlanByID(ctx, id)
}

// ListPlans returns a page of plans ordered by tier then price. With
// activeOnly set, deactivated plans are left out.
func (s *PlanService) ListPlans(ctx context.Context, activeOnly bool, page Page) ([]Plan, error) {
	return s.plans.ListPlans(ctx, activeOnly, page.Normalize())
}

// SeedPlans creates the plans whose codes do not exist yet.
func (s *PlanService) SeedPlans(ctx context.Context, inputs []CreatePlanInput) (int, error) {
	created := 0
	for _, in := range inputs {
		if _, err := s.CreatePlan(ctx, in); err != nil {
			if errors.Is(err, ErrPlanCodeTaken) {
				continue
			}
			return created, fmt.Errorf("seed plan %q: %w", in.Code, err)
		}
		created++
	}
	return created, nil
}

// sync runs a provider call and persists the provider ids it assigned.
// Ids assigned before a failure are kept so a retry reuses the product
// instead of creating a second one.
func (s *PlanService) sync(ctx context.Context, plan *Plan, call func(*Plan) error) {
	synced := *plan
	callErr := call(&synced)

	if synced.StripeProductID != plan.StripeProductID || synced.StripePriceID != plan.StripePriceID {
		plan.StripeProductID = synced.StripeProductID
		plan.StripePriceID = synced.StripePriceID
		if err := s.plans.UpdatePlan(ctx, plan); err != nil {
			s.syncFailed(ctx, plan, fmt.Errorf("persist provider ids: %w", err))
			return
		}
	}

	if callErr != nil {
		s.syncFailed(ctx, plan, callErr)
	}
}

func (s *PlanService) syncFailed(ctx context.Context, plan *Plan, err error) {
	s.logger.ErrorContext(ctx, "plan provider sync failed",
		logger.PlanID(plan.ID),
		logger.PlanCode(plan.Code),
		logger.Error(err))
	if aerr := s.audit.LogError(ctx, AuditPlanSyncFailed, err, audit.WithResource("plan", plan.ID.String())); aerr != nil {
		s.logger.WarnContext(ctx, "failed to write audit event", logger.Error(aerr))
	}
}

func (s *PlanService) logAudit(ctx context.Context, action string, plan *Plan, opts ...audit.EventOption) {
	opts = append(opts, audit.WithResource("plan", plan.ID.String()), audit.WithMetadata("code", plan.Code))
	if err := s.audit.Log(ctx, action, opts...); err != nil {
		s.logger.WarnContext(ctx, "failed to write audit event",
			slog.String("action", action),
			logger.Error(err))
	}
}
