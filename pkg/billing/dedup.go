package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduplicator suppresses repeated deliveries of a webhook event.
// Handlers are idempotent without it; it saves provider round trips and
// duplicate log noise.
//
// A delivery first takes a short lease with Claim. Only Complete makes the
// id stick for the retention period, so a process that dies mid-delivery
// leaves a lease that expires and the provider's retry is processed.
type EventDeduplicator interface {
	// Claim takes a lease on eventID for lease. It reports false while
	// another delivery holds the lease or the event was completed.
	Claim(ctx context.Context, eventID string, lease time.Duration) (bool, error)
	// Complete records eventID as processed for the retention period.
	Complete(ctx context.Context, eventID string) error
	// Release drops the lease so a redelivery is processed again.
	Release(ctx context.Context, eventID string) error
}

const (
	dedupProcessing = "processing"
	dedupDone       = "done"
)

// RedisDeduplicator keeps leases and completed ids as expiring Redis keys.
type RedisDeduplicator struct {
	client    redis.UniversalClient
	retention time.Duration
	prefix    string
}

// NewRedisDeduplicator returns a deduplicator that remembers completed
// events for retention, DefaultEventDedupTTL when zero.
func NewRedisDeduplicator(client redis.UniversalClient, retention time.Duration) *RedisDeduplicator {
	if retention <= 0 {
		retention = DefaultEventDedupTTL
	}
	return &RedisDeduplicator{client: client, retention: retention, prefix: "billing:webhook:event:"}
}

// Claim sets the key with SETNX so exactly one delivery wins the lease.
func (d *RedisDeduplicator) Claim(ctx context.Context, eventID string, lease time.Duration) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.prefix+eventID, dedupProcessing, lease).Result()
	if err != nil {
		return false, fmt.Errorf("claim webhook event: %w", err)
	}
	return ok, nil
}

// Complete replaces the lease with a marker that lives for the retention period.
func (d *RedisDeduplicator) Complete(ctx context.Context, eventID string) error {
	if err := d.client.Set(ctx, d.prefix+eventID, dedupDone, d.retention).Err(); err != nil {
		return fmt.Errorf("complete webhook event: %w", err)
	}
	return nil
}

// Release deletes the key.
func (d *RedisDeduplicator) Release(ctx context.Context, eventID string) error {
	if err := d.client.Del(ctx, d.prefix+eventID).Err(); err != nil {
		return fmt.Errorf("release webhook event: %w", err)
	}
	return nil
}

// MemoryDeduplicator is a process-local EventDeduplicator.
type MemoryDeduplicator struct {
	mu        sync.Mutex
	expires   map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// NewMemoryDeduplicator returns a deduplicator that remembers completed
// events for retention, DefaultEventDedupTTL when zero.
func NewMemoryDeduplicator(retention time.Duration) *MemoryDeduplicator {
	if retention <= 0 {
		retention = DefaultEventDedupTTL
	}
	return &MemoryDeduplicator{expires: make(map[string]time.Time), retention: retention, now: time.Now}
}

func (d *MemoryDeduplicator) Claim(_ context.Context, eventID string, lease time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for id, exp := range d.expires {
		if !now.Before(exp) {
			delete(d.expires, id)
		}
	}
	if _, ok := d.expires[eventID]; ok {
		return false, nil
	}
	d.expires[eventID] = now.Add(lease)
	return true, nil
}

func (d *MemoryDeduplicator) Complete(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.expires[eventID] = d.now().Add(d.retention)
	return nil
}

func (d *MemoryDeduplicator) Release(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.expires, eventID)
	return nil
}
