// Package memstore implements the billing stores in process memory.
// Unique constraints match the PostgreSQL schema.
package memstore

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/saasbilling/pkg/billing"
)

// Store implements billing.PlanStore, SubscriptionStore, PaymentStore and
// UserAdminStore. Values are copied in and out.
type Store struct {
	mu       sync.RWMutex
	plans    map[uuid.UUID]billing.Plan
	subs     map[uuid.UUID]billing.Subscription
	payments []billing.Payment
	users    map[uuid.UUID]billing.User
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		plans: make(map[uuid.UUID]billing.Plan),
		subs:  make(map[uuid.UUID]billing.Subscription),
		users: make(map[uuid.UUID]billing.User),
	}
}

var (
	_ billing.PlanStore         = (*Store)(nil)
	_ billing.SubscriptionStore = (*Store)(nil)
	_ billing.PaymentStore      = (*Store)(nil)
	_ billing.UserStore         = (*Store)(nil)
	_ billing.UserAdminStore    = (*Store)(nil)
)

// PutUser creates or replaces a user.
func (s *Store) PutUser(u billing.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) GetUserByID(_ context.Context, id uuid.UUID) (*billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, billing.ErrUserNotFound
	}
	return &u, nil
}

func (s *Store) SetStripeCustomerID(_ context.Context, userID uuid.UUID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return billing.ErrUserNotFound
	}
	u.StripeCustomerID = customerID
	s.users[userID] = u
	return nil
}

func (s *Store) ListUsers(_ context.Context, filter billing.UserFilter, page billing.Page) ([]billing.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []billing.User{}
	for _, u := range s.users {
		if filter.Match(u) {
			out = append(out, u)
		}
	}
	slices.SortFunc(out, func(a, b billing.User) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.Email, b.Email))
	})
	return paginate(out, page), nil
}

func (s *Store) UpdateUser(_ context.Context, user *billing.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[user.ID]
	if !ok {
		return billing.ErrUserNotFound
	}
	u.IsAdmin = user.IsAdmin
	u.IsVerified = user.IsVerified
	u.Suspended = user.Suspended
	s.users[user.ID] = u
	return nil
}

func (s *Store) Totals(_ context.Context) (billing.Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := billing.Totals{
		Users:         int64(len(s.users)),
		Subscriptions: int64(len(s.subs)),
		Payments:      int64(len(s.payments)),
	}
	for _, sub := range s.subs {
		if sub.Status == billing.StatusActive {
			t.ActiveSubscriptions++
		}
	}
	return t, nil
}

func (s *Store) GetPlanByID(_ context.Context, id uuid.UUID) (*billing.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, billing.ErrPlanNotFound
	}
	return &p, nil
}

func (s *Store) GetPlanByCode(_ context.Context, code string) (*billing.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.plans {
		if p.Code == code && p.IsActive {
			return &p, nil
		}
	}
	return nil, billing.ErrPlanNotFound
}

func (s *Store) ListPlans(_ context.Context, activeOnly bool, page billing.Page) ([]billing.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b billing.Plan) int {
		return cmp.Or(cmp.Compare(a.Tier, b.Tier), cmp.Compare(a.PriceCents, b.PriceCents), cmp.Compare(a.Code, b.Code))
	})
	return paginate(out, page), nil
}

func (s *Store) CreatePlan(_ context.Context, plan *billing.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.plans {
		if p.Code == plan.Code {
			return billing.ErrPlanCodeTaken
		}
	}
	s.plans[plan.ID] = *plan
	return nil
}

func (s *Store) UpdatePlan(_ context.Context, plan *billing.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[plan.ID]; !ok {
		return billing.ErrPlanNotFound
	}
	s.plans[plan.ID] = *plan
	return nil
}

func (s *Store) SoftDeletePlan(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return billing.ErrPlanNotFound
	}
	p.IsActive = false
	p.UpdatedAt = at
	s.plans[id] = p
	return nil
}

func (s *Store) GetSubscriptionByID(_ context.Context, id uuid.UUID) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, billing.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *Store) GetSubscriptionByProviderID(_ context.Context, provider billing.Provider, providerSubscriptionID string) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.Provider == provider && sub.ProviderSubscriptionID == providerSubscriptionID {
			return &sub, nil
		}
	}
	return nil, billing.ErrSubscriptionNotFound
}

func (s *Store) GetSubscriptionWithAccess(_ context.Context, userID uuid.UUID, now time.Time) (*billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *billing.Subscription
	for _, sub := range s.subs {
		if sub.UserID != userID || !sub.HasAccess(now) {
			continue
		}
		if best == nil || sub.CreatedAt.After(best.CreatedAt) {
			sub := sub
			best = &sub
		}
	}
	if best == nil {
		return nil, billing.ErrSubscriptionNotFound
	}
	return best, nil
}

func (s *Store) CreateSubscription(_ context.Context, sub *billing.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs {
		if existing.Provider == sub.Provider && existing.ProviderSubscriptionID == sub.ProviderSubscriptionID {
			return billing.ErrSubscriptionAlreadyExists
		}
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *billing.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.subs[sub.ID]
	if !ok {
		return billing.ErrSubscriptionNotFound
	}
	if stored.Status == billing.StatusCanceled {
		return billing.ErrSubscriptionCanceled
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, page billing.Page) ([]billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paginate(s.sortedSubs(func(billing.Subscription) bool { return true }), page), nil
}

func (s *Store) ListUserSubscriptions(_ context.Context, userID uuid.UUID) ([]billing.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedSubs(func(sub billing.Subscription) bool { return sub.UserID == userID }), nil
}

func (s *Store) CreatePayment(_ context.Context, payment *billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.Provider == payment.Provider && p.ProviderInvoiceID == payment.ProviderInvoiceID {
			return billing.ErrDuplicatePayment
		}
	}
	s.payments = append(s.payments, *payment)
	return nil
}

func (s *Store) ListUserPayments(_ context.Context, userID uuid.UUID) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []billing.Payment{}
	for _, p := range slices.Backward(s.payments) {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListPayments(_ context.Context, page billing.Page) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]billing.Payment, 0, len(s.payments))
	for _, p := range slices.Backward(s.payments) {
		out = append(out, p)
	}
	return paginate(out, page), nil
}

// sortedSubs returns matching subscriptions, newest first.
func (s *Store) sortedSubs(keep func(billing.Subscription) bool) []billing.Subscription {
	out := []billing.Subscription{}
	for _, sub := range s.subs {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	slices.SortFunc(out, func(a, b billing.Subscription) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out
}

func paginate[T any](items []T, page billing.Page) []T {
	page = page.Normalize()
	if page.Offset >= len(items) {
		return []T{}
	}
	items = items[page.Offset:]
	if len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}
