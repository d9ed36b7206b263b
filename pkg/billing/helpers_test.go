package billing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/billing/memstore"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) EnsureCustomer(ctx context.Context, user *billing.User) (*billing.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.User), args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.CheckoutSession), args.Error(1)
}

func (m *MockGateway) CancelAtPeriodEnd(ctx context.Context, sub *billing.Subscription) (billing.CancelResult, error) {
	args := m.Called(ctx, sub)
	return args.Get(0).(billing.CancelResult), args.Error(1)
}

func (m *MockGateway) CancelSubscription(ctx context.Context, providerSubscriptionID string) error {
	return m.Called(ctx, providerSubscriptionID).Error(0)
}

func (m *MockGateway) RetrieveSubscription(ctx context.Context, providerSubscriptionID string) (*billing.ProviderSubscription, error) {
	args := m.Called(ctx, providerSubscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.ProviderSubscription), args.Error(1)
}

func (m *MockGateway) SyncPlan(ctx context.Context, plan *billing.Plan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *MockGateway) UpdatePlan(ctx context.Context, plan *billing.Plan, change billing.PlanChange) error {
	return m.Called(ctx, plan, change).Error(0)
}

func (m *MockGateway) DeactivatePlan(ctx context.Context, plan *billing.Plan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *MockGateway) ParseEvent(payload []byte, signature string) (billing.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(billing.Event), args.Error(1)
}

type sentNotification struct {
	Kind billing.NotificationKind
	Sub  billing.Subscription
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, kind billing.NotificationKind, sub billing.Subscription) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Kind: kind, Sub: sub})
	return nil
}

func (n *recordingNotifier) kinds() []billing.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]billing.NotificationKind, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// seedPlan stores a synced active plan.
func seedPlan(t *testing.T, store *memstore.Store, code string, tier billing.Tier) *billing.Plan {
	t.Helper()
	plan := &billing.Plan{
		ID:              uuid.New(),
		Code:            code,
		Name:            code,
		PriceCents:      1000 * int64(tier+1),
		Currency:        "usd",
		BillingPeriod:   billing.BillingPeriodMonthly,
		Tier:            tier,
		StripeProductID: "prod_" + code,
		StripePriceID:   "price_" + code,
		IsActive:        true,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	require.NoError(t, store.CreatePlan(context.Background(), plan))
	return plan
}

func seedUser(store *memstore.Store) billing.User {
	u := billing.User{ID: uuid.New(), Email: "user@example.com", StripeCustomerID: "cus_1"}
	store.PutUser(u)
	return u
}

// seedActive stores an active subscription whose period covers testNow.
func seedActive(t *testing.T, store *memstore.Store, userID, planID uuid.UUID, providerID string) *billing.Subscription {
	t.Helper()
	sub := &billing.Subscription{
		ID:                     uuid.New(),
		UserID:                 userID,
		PlanID:                 planID,
		Provider:               billing.ProviderStripe,
		ProviderSubscriptionID: providerID,
		ProviderCustomerID:     "cus_1",
		Status:                 billing.StatusActive,
		CurrentPeriodStart:     ptr(testNow.Add(-24 * time.Hour)),
		CurrentPeriodEnd:       ptr(testNow.Add(29 * 24 * time.Hour)),
		CreatedAt:              testNow.Add(-24 * time.Hour),
		UpdatedAt:              testNow.Add(-24 * time.Hour),
	}
	require.NoError(t, store.CreateSubscription(context.Background(), sub))
	return sub
}

type reconcilerFixture struct {
	store    *memstore.Store
	gateway  *MockGateway
	notifier *recordingNotifier
	rec      *billing.Reconciler
}

func newReconcilerFixture(t *testing.T, opts ...billing.Option) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		store:    memstore.New(),
		gateway:  new(MockGateway),
		notifier: &recordingNotifier{},
	}
	opts = append([]billing.Option{
		billing.WithLogger(logger.Discard()),
		billing.WithClock(clock),
		billing.WithNotifier(f.notifier),
	}, opts...)
	f.rec = billing.NewReconciler(f.store, f.store, f.store, f.gateway, opts...)
	t.Cleanup(func() { f.gateway.AssertExpectations(t) })
	return f
}

func providerSub(id string, userID, planID uuid.UUID) *billing.ProviderSubscription {
	return &billing.ProviderSubscription{
		ID:                 id,
		CustomerID:         "cus_1",
		Status:             "active",
		PlanID:             planID,
		UserID:             userID,
		CurrentPeriodStart: ptr(testNow),
		CurrentPeriodEnd:   ptr(testNow.AddDate(0, 1, 0)),
	}
}
