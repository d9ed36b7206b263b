package pgstore_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/saasbilling/migrations"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/billing/pgstore"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
	"github.com/dmitrymomot/saasbilling/pkg/pg"
)

// newStore connects to PG_TEST_URL and applies the migrations.
func newStore(t *testing.T) *pgstore.Store {
	t.Helper()
	url := os.Getenv("PG_TEST_URL")
	if url == "" {
		t.Skip("PG_TEST_URL is not set")
	}

	ctx := context.Background()
	cfg := pg.Config{
		ConnectionString:  url,
		MaxOpenConns:      4,
		MaxIdleConns:      1,
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   time.Minute,
		MaxConnLifetime:   time.Hour,
		RetryAttempts:     1,
		RetryInterval:     time.Second,
		MigrationsTable:   "schema_migrations",
	}
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, ".", cfg, logger.Discard()))

	return pgstore.New(pool)
}

func uniqueCode() string {
	return "plan-" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
}

func TestStore_Plans(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	plan := &billing.Plan{
		ID: uuid.New(), Code: uniqueCode(), Name: "Pro", PriceCents: 1500, Currency: "usd",
		BillingPeriod: billing.BillingPeriodMonthly, Tier: billing.TierPro, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreatePlan(ctx, plan))

	dup := *plan
	dup.ID = uuid.New()
	assert.ErrorIs(t, store.CreatePlan(ctx, &dup), billing.ErrPlanCodeTaken)

	got, err := store.GetPlanByCode(ctx, plan.Code)
	require.NoError(t, err)
	assert.Equal(t, billing.TierPro, got.Tier)
	assert.False(t, got.Synced())

	got.StripeProductID, got.StripePriceID = "prod_1", "price_1"
	require.NoError(t, store.UpdatePlan(ctx, got))

	require.NoError(t, store.SoftDeletePlan(ctx, plan.ID, now))
	_, err = store.GetPlanByCode(ctx, plan.Code)
	assert.ErrorIs(t, err, billing.ErrPlanNotFound)

	deleted, err := store.GetPlanByID(ctx, plan.ID)
	require.NoError(t, err)
	assert.False(t, deleted.IsActive)
	assert.Equal(t, "price_1", deleted.StripePriceID)

	assert.ErrorIs(t, store.SoftDeletePlan(ctx, uuid.New(), now), billing.ErrPlanNotFound)
}

func TestStore_SubscriptionsAndPayments(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	user := billing.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com"}
	require.NoError(t, store.UpsertUser(ctx, user))
	require.NoError(t, store.SetStripeCustomerID(ctx, user.ID, "cus_"+uuid.NewString()))

	plan := &billing.Plan{
		ID: uuid.New(), Code: uniqueCode(), Name: "VIP", PriceCents: 4900, Currency: "usd",
		BillingPeriod: billing.BillingPeriodYearly, Tier: billing.TierVIP, IsActive: true,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreatePlan(ctx, plan))

	providerID := "sub_" + uuid.NewString()
	sub := &billing.Subscription{
		ID: uuid.New(), UserID: user.ID, PlanID: plan.ID, Provider: billing.ProviderStripe,
		ProviderSubscriptionID: providerID, Status: billing.StatusPastDue,
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateSubscription(ctx, sub))

	again := *sub
	again.ID = uuid.New()
	assert.ErrorIs(t, store.CreateSubscription(ctx, &again), billing.ErrSubscriptionAlreadyExists)

	// Provisional rows have no period and grant no access.
	_, err := store.GetSubscriptionWithAccess(ctx, user.ID, now)
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)

	end := now.AddDate(1, 0, 0)
	sub.Status = billing.StatusActive
	sub.CurrentPeriodStart, sub.CurrentPeriodEnd = &now, &end
	require.NoError(t, store.UpdateSubscription(ctx, sub))

	active, err := store.GetSubscriptionWithAccess(ctx, user.ID, now)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, active.ID)
	assert.True(t, active.CurrentPeriodEnd.Equal(end))

	byProvider, err := store.GetSubscriptionByProviderID(ctx, billing.ProviderStripe, providerID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byProvider.ID)

	canceled := *sub
	canceled.Status = billing.StatusCanceled
	canceled.CanceledAt = &now
	require.NoError(t, store.UpdateSubscription(ctx, &canceled))
	revived := canceled
	revived.Status = billing.StatusActive
	assert.ErrorIs(t, store.UpdateSubscription(ctx, &revived), billing.ErrSubscriptionCanceled)

	payment := &billing.Payment{
		ID: uuid.New(), UserID: user.ID, SubscriptionID: sub.ID, Provider: billing.ProviderStripe,
		ProviderInvoiceID: "in_" + uuid.NewString(), AmountCents: 4900, Currency: "USD",
		Status: billing.PaymentSucceeded, CreatedAt: now,
	}
	require.NoError(t, store.CreatePayment(ctx, payment))
	replay := *payment
	replay.ID = uuid.New()
	assert.ErrorIs(t, store.CreatePayment(ctx, &replay), billing.ErrDuplicatePayment)

	payments, err := store.ListUserPayments(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(4900), payments[0].AmountCents)

	subs, err := store.ListUserSubscriptions(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestStore_Users(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	user := billing.User{ID: uuid.New(), Email: uuid.NewString() + "@example.com"}
	require.NoError(t, store.UpsertUser(ctx, user))

	before, err := store.Totals(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, before.Users, int64(1))

	got, err := store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, got.IsVerified)
	assert.False(t, got.Suspended)
	assert.False(t, got.CreatedAt.IsZero())

	got.IsAdmin, got.IsVerified, got.Suspended = true, true, true
	require.NoError(t, store.UpdateUser(ctx, got))

	// A later account sync does not undo admin decisions.
	user.Email = uuid.NewString() + "@example.com"
	require.NoError(t, store.UpsertUser(ctx, user))

	got, err = store.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
	assert.True(t, got.IsAdmin)
	assert.True(t, got.IsVerified)
	assert.True(t, got.Suspended)

	yes := true
	suspended, err := store.ListUsers(ctx, billing.UserFilter{Suspended: &yes, Admin: &yes}, billing.Page{Limit: billing.MaxPageLimit})
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(suspended))
	for _, u := range suspended {
		assert.True(t, u.Suspended && u.IsAdmin)
		ids = append(ids, u.ID)
	}
	assert.Contains(t, ids, user.ID)

	missing := billing.User{ID: uuid.New()}
	assert.ErrorIs(t, store.UpdateUser(ctx, &missing), billing.ErrUserNotFound)
}
