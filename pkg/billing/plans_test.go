package billing_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/saasbilling/pkg/audit"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/billing/memstore"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

type planFixture struct {
	svc     *billing.PlanService
	store   *memstore.Store
	gateway *MockGateway
	audit   *audit.MemoryStorage
}

func newPlanFixture(t *testing.T) *planFixture {
	t.Helper()
	f := &planFixture{store: memstore.New(), gateway: new(MockGateway), audit: audit.NewMemoryStorage()}
	t.Cleanup(func() { f.gateway.AssertExpectations(t) })
	f.svc = billing.NewPlanService(f.store, f.gateway,
		billing.WithLogger(logger.Discard()),
		billing.WithClock(clock),
		billing.WithAuditLogger(audit.NewLogger(f.audit)))
	return f
}

func (f *planFixture) auditActions(t *testing.T) []string {
	t.Helper()
	events, err := f.audit.Query(context.Background(), audit.Criteria{Resource: "plan"})
	require.NoError(t, err)
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.Action)
	}
	return out
}

var proInput = billing.CreatePlanInput{
	Code:          "pro-monthly",
	Name:          "Pro",
	PriceCents:    1500,
	Currency:      "USD",
	BillingPeriod: billing.BillingPeriodMonthly,
	Tier:          billing.TierPro,
}

func syncIDs(product, price string) func(mock.Arguments) {
	return func(args mock.Arguments) {
		p := args.Get(1).(*billing.Plan)
		if p.StripeProductID == "" {
			p.StripeProductID = product
		}
		p.StripePriceID = price
	}
}

func TestPlanService_CreatePlan(t *testing.T) {
	t.Parallel()

	t.Run("creates and syncs", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		f.gateway.On("SyncPlan", mock.Anything, mock.Anything).Run(syncIDs("prod_1", "price_1")).Return(nil).Once()

		plan, err := f.svc.CreatePlan(context.Background(), proInput)
		require.NoError(t, err)
		assert.Equal(t, "usd", plan.Currency)
		assert.True(t, plan.IsActive)
		assert.Equal(t, "price_1", plan.StripePriceID)

		stored, err := f.store.GetPlanByCode(context.Background(), "pro-monthly")
		require.NoError(t, err)
		assert.Equal(t, "prod_1", stored.StripeProductID)
		assert.Equal(t, "price_1", stored.StripePriceID)
		assert.Equal(t, []string{billing.AuditPlanCreated}, f.auditActions(t))
	})

	t.Run("provider outage leaves plan unsynced", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		f.gateway.On("SyncPlan", mock.Anything, mock.Anything).Return(errors.New("stripe down")).Once()

		plan, err := f.svc.CreatePlan(context.Background(), proInput)
		require.NoError(t, err)
		assert.False(t, plan.Synced())

		stored, err := f.store.GetPlanByID(context.Background(), plan.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.StripePriceID)
		assert.Contains(t, f.auditActions(t), billing.AuditPlanSyncFailed)
	})

	t.Run("product created before price failure is kept", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		f.gateway.On("SyncPlan", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				args.Get(1).(*billing.Plan).StripeProductID = "prod_orphan"
			}).
			Return(errors.New("create price: stripe down")).Once()

		plan, err := f.svc.CreatePlan(context.Background(), proInput)
		require.NoError(t, err)
		assert.False(t, plan.Synced())

		stored, err := f.store.GetPlanByID(context.Background(), plan.ID)
		require.NoError(t, err)
		assert.Equal(t, "prod_orphan", stored.StripeProductID)
		assert.Empty(t, stored.StripePriceID)
		assert.Contains(t, f.auditActions(t), billing.AuditPlanSyncFailed)

		// An empty update retries the sync against the stored product.
		f.gateway.On("UpdatePlan", mock.Anything, mock.MatchedBy(func(p *billing.Plan) bool {
			return p.StripeProductID == "prod_orphan"
		}), billing.PlanChange{}).Run(syncIDs("", "price_retry")).Return(nil).Once()

		resynced, err := f.svc.UpdatePlan(context.Background(), plan.ID, billing.UpdatePlanInput{})
		require.NoError(t, err)
		assert.Equal(t, "prod_orphan", resynced.StripeProductID)
		assert.Equal(t, "price_retry", resynced.StripePriceID)
	})

	t.Run("duplicate code", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		f.gateway.On("SyncPlan", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := f.svc.CreatePlan(context.Background(), proInput)
		require.NoError(t, err)
		_, err = f.svc.CreatePlan(context.Background(), proInput)
		assert.ErrorIs(t, err, billing.ErrPlanCodeTaken)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		cases := map[string]func(*billing.CreatePlanInput){
			"bad code":     func(in *billing.CreatePlanInput) { in.Code = "Pro Plan!" },
			"no name":      func(in *billing.CreatePlanInput) { in.Name = " " },
			"negative":     func(in *billing.CreatePlanInput) { in.PriceCents = -1 },
			"bad currency": func(in *billing.CreatePlanInput) { in.Currency = "dollar" },
			"bad period":   func(in *billing.CreatePlanInput) { in.BillingPeriod = "weekly" },
			"bad tier":     func(in *billing.CreatePlanInput) { in.Tier = 7 },
		}
		for name, mutate := range cases {
			in := proInput
			mutate(&in)
			_, err := f.svc.CreatePlan(context.Background(), in)
			assert.ErrorIs(t, err, billing.ErrInvalidInput, name)
		}
	})
}

func TestPlanService_UpdatePlan(t *testing.T) {
	t.Parallel()

	t.Run("price change creates new price", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		plan := seedPlan(t, f.store, "pro", billing.TierPro)

		f.gateway.On("UpdatePlan", mock.Anything, mock.Anything, billing.PlanChange{Renamed: true, Repriced: true}).
			Run(syncIDs("", "price_new")).Return(nil).Once()

		updated, err := f.svc.UpdatePlan(context.Background(), plan.ID, billing.UpdatePlanInput{
			Name:       ptr("Pro Plus"),
			PriceCents: ptr(int64(2500)),
		})
		require.NoError(t, err)
		assert.Equal(t, "Pro Plus", updated.Name)
		assert.Equal(t, "price_new", updated.StripePriceID)
		assert.Equal(t, plan.StripeProductID, updated.StripeProductID)
		assert.Equal(t, plan.Code, updated.Code)

		events, err := f.audit.Query(context.Background(), audit.Criteria{Action: billing.AuditPlanUpdated})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "pro", events[0].Metadata["before"].(billing.Plan).Name)
		assert.Equal(t, "Pro Plus", events[0].Metadata["after"].(billing.Plan).Name)
	})

	t.Run("description only skips provider", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		plan := seedPlan(t, f.store, "pro", billing.TierPro)

		updated, err := f.svc.UpdatePlan(context.Background(), plan.ID, billing.UpdatePlanInput{Description: ptr("best value")})
		require.NoError(t, err)
		assert.Equal(t, "best value", updated.Description)
	})

	t.Run("invalid currency rejected", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		plan := seedPlan(t, f.store, "pro", billing.TierPro)

		_, err := f.svc.UpdatePlan(context.Background(), plan.ID, billing.UpdatePlanInput{Currency: ptr("dollars")})
		assert.ErrorIs(t, err, billing.ErrInvalidInput)
	})

	t.Run("missing plan", func(t *testing.T) {
		t.Parallel()

		f := newPlanFixture(t)
		_, err := f.svc.UpdatePlan(context.Background(), uuid.New(), billing.UpdatePlanInput{})
		assert.ErrorIs(t, err, billing.ErrPlanNotFound)
	})
}

func TestPlanService_DeletePlan(t *testing.T) {
	t.Parallel()

	f := newPlanFixture(t)
	plan := seedPlan(t, f.store, "pro", billing.TierPro)
	f.gateway.On("DeactivatePlan", mock.Anything, mock.Anything).Return(nil).Once()

	ctx := context.Background()
	require.NoError(t, f.svc.DeletePlan(ctx, plan.ID))

	stored, err := f.svc.GetPlan(ctx, plan.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	_, err = f.store.GetPlanByCode(ctx, "pro")
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)

	assert.ErrorIs(t, f.svc.DeletePlan(ctx, plan.ID), billing.ErrPlanAlreadyDeleted)
	assert.ErrorIs(t, f.svc.DeletePlan(ctx, uuid.New()), billing.ErrPlanNotFound)

	active, err := f.svc.ListPlans(ctx, true, billing.Page{})
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := f.svc.ListPlans(ctx, false, billing.Page{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestPlanService_SeedPlans(t *testing.T) {
	t.Parallel()

	f := newPlanFixture(t)
	f.gateway.On("SyncPlan", mock.Anything, mock.Anything).Return(nil)

	catalog, err := billing.LoadPlanCatalog(strings.NewReader(`
plans:
  - code: free
    name: Free
    price_cents: 0
    currency: usd
    tier: free
  - code: vip-yearly
    name: VIP
    price_cents: 19900
    currency: eur
    billing_period: yearly
    tier: vip
`))
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, billing.BillingPeriodMonthly, catalog[0].BillingPeriod)
	assert.Equal(t, billing.TierVIP, catalog[1].Tier)

	created, err := f.svc.SeedPlans(context.Background(), catalog)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = f.svc.SeedPlans(context.Background(), catalog)
	require.NoError(t, err)
	assert.Zero(t, created)
}

func TestLoadPlanCatalog_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown field": "plans:\n  - code: a1\n    nme: A\n",
		"bad tier":      "plans:\n  - code: a1\n    name: A\n    currency: usd\n    tier: gold\n",
		"duplicate": "plans:\n  - {code: a1, name: A, currency: usd, tier: free}\n" +
			"  - {code: a1, name: B, currency: usd, tier: pro}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := billing.LoadPlanCatalog(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}

	plans, err := billing.LoadPlanCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, plans)
}
