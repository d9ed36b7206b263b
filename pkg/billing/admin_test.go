package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/saasbilling/pkg/audit"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/billing/memstore"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

func newAdminService(t *testing.T) (*billing.AdminService, *memstore.Store, *audit.MemoryStorage) {
	t.Helper()
	store := memstore.New()
	events := audit.NewMemoryStorage()
	svc := billing.NewAdminService(store, store, store,
		billing.WithLogger(logger.Discard()),
		billing.WithAuditLogger(audit.NewLogger(events)))
	return svc, store, events
}

func userEvents(t *testing.T, events *audit.MemoryStorage, action string) []audit.Event {
	t.Helper()
	found, err := events.Query(context.Background(), audit.Criteria{Resource: "user", Action: action})
	require.NoError(t, err)
	return found
}

func TestAdminService_Stats(t *testing.T) {
	t.Parallel()

	svc, store, _ := newAdminService(t)
	plan := seedPlan(t, store, "pro", billing.TierPro)
	user := seedUser(store)
	store.PutUser(billing.User{ID: uuid.New(), Email: "other@example.com"})

	active := seedActive(t, store, user.ID, plan.ID, "sub_1")
	canceled := seedActive(t, store, user.ID, plan.ID, "sub_2")
	canceled.Status = billing.StatusCanceled
	require.NoError(t, store.UpdateSubscription(context.Background(), canceled))
	require.NoError(t, store.CreatePayment(context.Background(), &billing.Payment{
		ID: uuid.New(), UserID: user.ID, SubscriptionID: active.ID, Provider: billing.ProviderStripe,
		ProviderInvoiceID: "in_1", AmountCents: 2000, Currency: "usd", Status: billing.PaymentSucceeded, CreatedAt: testNow,
	}))

	totals, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, billing.Totals{Users: 2, Subscriptions: 2, ActiveSubscriptions: 1, Payments: 1}, totals)
}

func TestAdminService_Users(t *testing.T) {
	t.Parallel()

	t.Run("lists newest first with filters", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newAdminService(t)
		older := billing.User{ID: uuid.New(), Email: "a@example.com", IsVerified: true, CreatedAt: testNow.Add(-time.Hour)}
		newer := billing.User{ID: uuid.New(), Email: "b@example.com", IsAdmin: true, CreatedAt: testNow}
		store.PutUser(older)
		store.PutUser(newer)

		all, err := svc.ListUsers(context.Background(), billing.UserFilter{}, billing.Page{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, newer.ID, all[0].ID)

		yes := true
		verified, err := svc.ListUsers(context.Background(), billing.UserFilter{Verified: &yes}, billing.Page{})
		require.NoError(t, err)
		require.Len(t, verified, 1)
		assert.Equal(t, older.ID, verified[0].ID)

		paged, err := svc.ListUsers(context.Background(), billing.UserFilter{}, billing.Page{Limit: 1, Offset: 1})
		require.NoError(t, err)
		require.Len(t, paged, 1)
		assert.Equal(t, older.ID, paged[0].ID)
	})

	t.Run("detail includes history", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newAdminService(t)
		plan := seedPlan(t, store, "pro", billing.TierPro)
		user := seedUser(store)
		sub := seedActive(t, store, user.ID, plan.ID, "sub_1")
		require.NoError(t, store.CreatePayment(context.Background(), &billing.Payment{
			ID: uuid.New(), UserID: user.ID, SubscriptionID: sub.ID, Provider: billing.ProviderStripe,
			ProviderInvoiceID: "in_1", AmountCents: 2000, Currency: "usd", Status: billing.PaymentSucceeded, CreatedAt: testNow,
		}))

		detail, err := svc.GetUser(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.ID, detail.User.ID)
		require.Len(t, detail.Subscriptions, 1)
		assert.Equal(t, sub.ID, detail.Subscriptions[0].ID)
		require.Len(t, detail.Payments, 1)
		assert.Equal(t, "in_1", detail.Payments[0].ProviderInvoiceID)
	})

	t.Run("unknown user", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newAdminService(t)
		_, err := svc.GetUser(context.Background(), uuid.New())
		assert.ErrorIs(t, err, billing.ErrUserNotFound)
		_, err = svc.VerifyUser(context.Background(), uuid.New())
		assert.ErrorIs(t, err, billing.ErrUserNotFound)
	})
}

func TestAdminService_UpdateUser(t *testing.T) {
	t.Parallel()

	t.Run("suspend and reinstate are audited", func(t *testing.T) {
		t.Parallel()

		svc, store, events := newAdminService(t)
		user := seedUser(store)

		updated, err := svc.SetUserActive(context.Background(), user.ID, false)
		require.NoError(t, err)
		assert.True(t, updated.Suspended)

		stored, err := store.GetUserByID(context.Background(), user.ID)
		require.NoError(t, err)
		assert.True(t, stored.Suspended)

		_, err = svc.SetUserActive(context.Background(), user.ID, true)
		require.NoError(t, err)

		logged := userEvents(t, events, billing.AuditUserStatusUpdated)
		require.Len(t, logged, 2)
		for _, e := range logged {
			assert.Equal(t, user.ID.String(), e.ResourceID)
		}
		first := logged[0]
		if !first.Metadata["after"].(billing.User).Suspended {
			first = logged[1]
		}
		assert.False(t, first.Metadata["before"].(billing.User).Suspended)
		assert.True(t, first.Metadata["after"].(billing.User).Suspended)
	})

	t.Run("role change records before and after", func(t *testing.T) {
		t.Parallel()

		svc, store, events := newAdminService(t)
		user := seedUser(store)

		updated, err := svc.SetUserAdmin(context.Background(), user.ID, true)
		require.NoError(t, err)
		assert.True(t, updated.IsAdmin)

		logged := userEvents(t, events, billing.AuditUserRoleUpdated)
		require.Len(t, logged, 1)
		assert.False(t, logged[0].Metadata["before"].(billing.User).IsAdmin)
		assert.True(t, logged[0].Metadata["after"].(billing.User).IsAdmin)
	})

	t.Run("verify twice audits once", func(t *testing.T) {
		t.Parallel()

		svc, store, events := newAdminService(t)
		user := seedUser(store)

		for range 2 {
			verified, err := svc.VerifyUser(context.Background(), user.ID)
			require.NoError(t, err)
			assert.True(t, verified.IsVerified)
		}
		assert.Len(t, userEvents(t, events, billing.AuditUserVerified), 1)
	})

	t.Run("flag change keeps billing fields", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newAdminService(t)
		user := seedUser(store)

		_, err := svc.SetUserAdmin(context.Background(), user.ID, true)
		require.NoError(t, err)

		stored, err := store.GetUserByID(context.Background(), user.ID)
		require.NoError(t, err)
		assert.Equal(t, user.StripeCustomerID, stored.StripeCustomerID)
		assert.Equal(t, user.Email, stored.Email)
	})
}
