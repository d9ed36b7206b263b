package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/saasbilling/pkg/audit"
)

// Option configures billing components. Each constructor reads the options
// relevant to it and ignores the rest.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	now            func() time.Time
	notifier       Notifier
	dedup          EventDeduplicator
	webhookTimeout time.Duration
	audit          AuditLogger
}

// AuditLogger records administrative changes.
type AuditLogger interface {
	Log(ctx context.Context, action string, opts ...audit.EventOption) error
	LogError(ctx context.Context, action string, err error, opts ...audit.EventOption) error
}

// WithLogger sets the structured logger. A nil logger keeps slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithNotifier sets where payment failures and cancellations are reported.
// Without it notifications are dropped.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithDeduplicator enables webhook event deduplication. Passing nil disables
// it, leaving idempotency to the store's unique constraints.
func WithDeduplicator(d EventDeduplicator) Option {
	return func(o *options) { o.dedup = d }
}

// WithWebhookTimeout bounds the handling of a single webhook delivery.
func WithWebhookTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.webhookTimeout = d
		}
	}
}

// WithAuditLogger records plan and subscription changes.
func WithAuditLogger(a AuditLogger) Option {
	return func(o *options) {
		if a != nil {
			o.audit = a
		}
	}
}

func applyOptions(opts []Option) *options {
	o := &options{
		logger:         slog.Default(),
		now:            time.Now,
		notifier:       NopNotifier{},
		webhookTimeout: DefaultWebhookTimeout,
		audit:          nopAudit{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type nopAudit struct{}

func (nopAudit) Log(context.Context, string, ...audit.EventOption) error { return nil }

func (nopAudit) LogError(context.Context, string, error, ...audit.EventOption) error { return nil }
