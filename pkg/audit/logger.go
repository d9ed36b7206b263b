package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists and queries audit events.
type Storage interface {
	Store(ctx context.Context, events ...Event) error
	Query(ctx context.Context, criteria Criteria) ([]Event, error)
}

// ContextExtractor pulls a string value out of a request context.
type ContextExtractor func(context.Context) (string, bool)

// Logger writes audit events to storage.
type Logger struct {
	storage            Storage
	actorExtractor     ContextExtractor
	requestIDExtractor ContextExtractor
	now                func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

func WithActorExtractor(fn ContextExtractor) Option {
	return func(l *Logger) { l.actorExtractor = fn }
}

func WithRequestIDExtractor(fn ContextExtractor) Option {
	return func(l *Logger) { l.requestIDExtractor = fn }
}

func WithClock(now func() time.Time) Option {
	return func(l *Logger) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLogger creates a new audit logger
func NewLogger(storage Storage, opts ...Option) *Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	l := &Logger{storage: storage, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Log records a successful action
func (l *Logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	return l.store(ctx, action, ResultSuccess, "", opts)
}

// LogError records a failed action
func (l *Logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return l.store(ctx, action, ResultError, msg, opts)
}

// Find returns events matching criteria, newest first.
func (l *Logger) Find(ctx context.Context, criteria Criteria) ([]Event, error) {
	return l.storage.Query(ctx, criteria)
}

func (l *Logger) store(ctx context.Context, action string, result Result, errMsg string, opts []EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    result,
		Error:     errMsg,
		CreatedAt: l.now().UTC(),
	}
	if l.actorExtractor != nil {
		if id, ok := l.actorExtractor(ctx); ok {
			event.ActorID = id
		}
	}
	if l.requestIDExtractor != nil {
		if id, ok := l.requestIDExtractor(ctx); ok {
			event.RequestID = id
		}
	}
	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}
	return l.storage.Store(ctx, event)
}
