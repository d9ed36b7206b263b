package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/saasbilling/pkg/logger"
	"github.com/dmitrymomot/saasbilling/pkg/queue"
)

type MockWorkerRepository struct {
	mock.Mock
}

func (m *MockWorkerRepository) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockUntil time.Time) (*queue.Task, error) {
	args := m.Called(ctx, workerID, queues, lockUntil)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*queue.Task), args.Error(1)
}

func (m *MockWorkerRepository) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return m.Called(ctx, taskID).Error(0)
}

func (m *MockWorkerRepository) RetryTask(ctx context.Context, taskID uuid.UUID, retryAt time.Time, errMsg string) error {
	return m.Called(ctx, taskID, retryAt, errMsg).Error(0)
}

func (m *MockWorkerRepository) FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error {
	return m.Called(ctx, taskID, errMsg).Error(0)
}

func newTestWorker(t *testing.T, repo queue.WorkerRepository, handlers ...queue.Handler) *queue.Worker {
	t.Helper()
	w, err := queue.NewWorker(repo,
		queue.WithWorkerLogger(logger.Discard()),
		queue.WithPollInterval(10*time.Millisecond),
		queue.WithRetryBackoff(time.Millisecond, time.Second),
	)
	require.NoError(t, err)
	require.NoError(t, w.RegisterHandlers(handlers...))
	return w
}

func TestNewWorker(t *testing.T) {
	t.Parallel()

	_, err := queue.NewWorker(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	w, err := queue.NewWorker(queue.NewMemoryStorage())
	require.NoError(t, err)
	assert.ErrorIs(t, w.RegisterHandlers(), queue.ErrNoHandlers)
	assert.ErrorIs(t, w.Run(context.Background()), queue.ErrNoHandlers)
}

func TestWorker_ProcessNext(t *testing.T) {
	t.Parallel()

	t.Run("completes successful task", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enq, _ := queue.NewEnqueuer(storage)
		require.NoError(t, enq.Enqueue(context.Background(), testPayload{Message: "ok"}))

		var got testPayload
		w := newTestWorker(t, storage, queue.NewTaskHandler(func(_ context.Context, p testPayload) error {
			got = p
			return nil
		}))

		assert.True(t, w.ProcessNext(context.Background()))
		assert.Equal(t, "ok", got.Message)
		assert.Len(t, storage.Tasks(queue.TaskStatusCompleted), 1)
		assert.False(t, w.ProcessNext(context.Background()))
	})

	t.Run("reschedules failed task with retries left", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enq, _ := queue.NewEnqueuer(storage)
		require.NoError(t, enq.Enqueue(context.Background(), testPayload{}, queue.WithMaxRetries(2)))

		w := newTestWorker(t, storage, queue.NewTaskHandler(func(context.Context, testPayload) error {
			return errors.New("smtp down")
		}))

		assert.True(t, w.ProcessNext(context.Background()))
		tasks := storage.Tasks(queue.TaskStatusPending)
		require.Len(t, tasks, 1)
		assert.Equal(t, 1, tasks[0].RetryCount)
		assert.Equal(t, "smtp down", tasks[0].Error)
	})

	t.Run("fails task when retries exhausted", func(t *testing.T) {
		t.Parallel()

		storage := queue.NewMemoryStorage()
		enq, _ := queue.NewEnqueuer(storage)
		require.NoError(t, enq.Enqueue(context.Background(), testPayload{}, queue.WithMaxRetries(0)))

		w := newTestWorker(t, storage, queue.NewTaskHandler(func(context.Context, testPayload) error {
			panic("boom")
		}))

		assert.True(t, w.ProcessNext(context.Background()))
		failed := storage.Tasks(queue.TaskStatusFailed)
		require.Len(t, failed, 1)
		assert.Contains(t, failed[0].Error, "boom")
	})

	t.Run("fails task without handler", func(t *testing.T) {
		t.Parallel()

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)

		task := &queue.Task{ID: uuid.New(), TaskName: "unknown", Payload: []byte(`{}`)}
		repo.On("ClaimTask", mock.Anything, mock.Anything, []string{queue.DefaultQueueName}, mock.Anything).Return(task, nil).Once()
		repo.On("FailTask", mock.Anything, task.ID, queue.ErrHandlerNotFound.Error()).Return(nil).Once()

		w := newTestWorker(t, repo, queue.NewTaskHandler(func(context.Context, testPayload) error { return nil }))
		assert.True(t, w.ProcessNext(context.Background()))
	})

	t.Run("claim error reports no task", func(t *testing.T) {
		t.Parallel()

		repo := new(MockWorkerRepository)
		defer repo.AssertExpectations(t)
		repo.On("ClaimTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()

		w := newTestWorker(t, repo, queue.NewTaskHandler(func(context.Context, testPayload) error { return nil }))
		assert.False(t, w.ProcessNext(context.Background()))
	})
}

func TestWorker_Run(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	enq, _ := queue.NewEnqueuer(storage)
	for i := range 5 {
		require.NoError(t, enq.Enqueue(context.Background(), testPayload{Value: i}))
	}

	var handled atomic.Int32
	w := newTestWorker(t, storage, queue.NewTaskHandler(func(context.Context, testPayload) error {
		handled.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return handled.Load() == 5 }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, w.Run(ctx), queue.ErrWorkerAlreadyRunning)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
