package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// WorkerRepository claims and settles tasks.
type WorkerRepository interface {
	// ClaimTask locks the next due task in one of queues until lockUntil.
	// Returns ErrNoTaskToClaim when nothing is due.
	ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockUntil time.Time) (*Task, error)
	CompleteTask(ctx context.Context, taskID uuid.UUID) error
	// RetryTask records the failure and reschedules the task at retryAt.
	RetryTask(ctx context.Context, taskID uuid.UUID, retryAt time.Time, errMsg string) error
	// FailTask marks the task terminally failed.
	FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error
}

// Worker polls storage and dispatches claimed tasks to handlers.
type Worker struct {
	id           uuid.UUID
	repo         WorkerRepository
	handlers     map[string]Handler
	queues       []string
	pollInterval time.Duration
	lockTimeout  time.Duration
	concurrency  int
	baseDelay    time.Duration
	maxDelay     time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu      sync.RWMutex
	running atomic.Bool
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

func WithQueues(queues ...string) WorkerOption {
	return func(w *Worker) {
		if len(queues) > 0 {
			w.queues = queues
		}
	}
}

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

func WithLockTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.lockTimeout = d
		}
	}
}

func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithRetryBackoff sets the base and ceiling of the exponential retry delay.
func WithRetryBackoff(base, maxDelay time.Duration) WorkerOption {
	return func(w *Worker) {
		if base > 0 {
			w.baseDelay = base
		}
		if maxDelay >= base {
			w.maxDelay = maxDelay
		}
	}
}

func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorker creates a worker over repo.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}
	w := &Worker{
		id:           uuid.New(),
		repo:         repo,
		handlers:     make(map[string]Handler),
		queues:       []string{DefaultQueueName},
		pollInterval: time.Second,
		lockTimeout:  5 * time.Minute,
		concurrency:  1,
		baseDelay:    5 * time.Second,
		maxDelay:     10 * time.Minute,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(slog.String("component", "queue.worker"), slog.String("worker_id", w.id.String()))
	return w, nil
}

// RegisterHandlers adds handlers, replacing any with the same name.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range handlers {
		if h == nil {
			continue
		}
		w.handlers[h.Name()] = h
	}
	if len(w.handlers) == 0 {
		return ErrNoHandlers
	}
	return nil
}

// Run processes tasks until ctx is cancelled. In-flight tasks finish with a
// context detached from ctx's cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrWorkerAlreadyRunning
	}
	defer w.running.Store(false)

	w.mu.RLock()
	n := len(w.handlers)
	w.mu.RUnlock()
	if n == 0 {
		return ErrNoHandlers
	}

	w.logger.InfoContext(ctx, "queue worker started",
		slog.Int("concurrency", w.concurrency),
		slog.Any("queues", w.queues))

	var wg sync.WaitGroup
	for range w.concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()

	w.logger.Info("queue worker stopped")
	return nil
}

func (w *Worker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		// Drain due tasks before waiting for the next tick.
		for ctx.Err() == nil && w.ProcessNext(ctx) {
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessNext claims and handles one task. It reports whether a task was
// claimed.
func (w *Worker) ProcessNext(ctx context.Context) bool {
	task, err := w.repo.ClaimTask(ctx, w.id, w.queues, w.now().Add(w.lockTimeout))
	if err != nil {
		if !errors.Is(err, ErrNoTaskToClaim) && ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "failed to claim task", slog.String("error", err.Error()))
		}
		return false
	}

	w.process(context.WithoutCancel(ctx), task)
	return true
}

func (w *Worker) process(ctx context.Context, task *Task) {
	log := w.logger.With(
		slog.String("task_id", task.ID.String()),
		slog.String("task_name", task.TaskName),
		slog.Int("attempt", task.RetryCount+1),
	)

	w.mu.RLock()
	h, ok := w.handlers[task.TaskName]
	w.mu.RUnlock()
	if !ok {
		log.ErrorContext(ctx, "no handler for task")
		if err := w.repo.FailTask(ctx, task.ID, ErrHandlerNotFound.Error()); err != nil {
			log.ErrorContext(ctx, "failed to mark task failed", slog.String("error", err.Error()))
		}
		return
	}

	start := w.now()
	err := w.safeHandle(ctx, h, task)
	if err == nil {
		if err := w.repo.CompleteTask(ctx, task.ID); err != nil {
			log.ErrorContext(ctx, "failed to complete task", slog.String("error", err.Error()))
			return
		}
		log.DebugContext(ctx, "task completed", slog.Duration("duration", w.now().Sub(start)))
		return
	}

	if task.RetryCount >= task.MaxRetries {
		log.ErrorContext(ctx, "task failed permanently", slog.String("error", err.Error()))
		if ferr := w.repo.FailTask(ctx, task.ID, err.Error()); ferr != nil {
			log.ErrorContext(ctx, "failed to mark task failed", slog.String("error", ferr.Error()))
		}
		return
	}

	retryAt := w.now().Add(w.backoff(task.RetryCount))
	log.WarnContext(ctx, "task failed, will retry",
		slog.String("error", err.Error()),
		slog.Time("retry_at", retryAt))
	if rerr := w.repo.RetryTask(ctx, task.ID, retryAt, err.Error()); rerr != nil {
		log.ErrorContext(ctx, "failed to reschedule task", slog.String("error", rerr.Error()))
	}
}

func (w *Worker) safeHandle(ctx context.Context, h Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, task.Payload)
}

func (w *Worker) backoff(attempt int) time.Duration {
	d := time.Duration(float64(w.baseDelay) * math.Pow(2, float64(attempt)))
	if d <= 0 || d > w.maxDelay {
		return w.maxDelay
	}
	return d
}
