package queue

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage keeps tasks in process memory.
type MemoryStorage struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*Task
	now   func() time.Time
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{tasks: make(map[uuid.UUID]*Task), now: time.Now}
}

func (s *MemoryStorage) CreateTask(_ context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *task
	s.tasks[t.ID] = &t
	return nil
}

func (s *MemoryStorage) ClaimTask(_ context.Context, _ uuid.UUID, queues []string, lockUntil time.Time) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var next *Task
	for _, t := range s.tasks {
		if !slices.Contains(queues, t.Queue) || t.ScheduledAt.After(now) {
			continue
		}
		claimable := t.Status == TaskStatusPending ||
			(t.Status == TaskStatusProcessing && t.LockedUntil != nil && t.LockedUntil.Before(now))
		if !claimable {
			continue
		}
		if next == nil || t.Priority > next.Priority ||
			(t.Priority == next.Priority && t.ScheduledAt.Before(next.ScheduledAt)) {
			next = t
		}
	}
	if next == nil {
		return nil, ErrNoTaskToClaim
	}

	next.Status = TaskStatusProcessing
	lock := lockUntil
	next.LockedUntil = &lock
	out := *next
	return &out, nil
}

func (s *MemoryStorage) CompleteTask(_ context.Context, taskID uuid.UUID) error {
	return s.update(taskID, func(t *Task) {
		now := s.now()
		t.Status = TaskStatusCompleted
		t.LockedUntil = nil
		t.ProcessedAt = &now
	})
}

func (s *MemoryStorage) RetryTask(_ context.Context, taskID uuid.UUID, retryAt time.Time, errMsg string) error {
	return s.update(taskID, func(t *Task) {
		t.Status = TaskStatusPending
		t.RetryCount++
		t.ScheduledAt = retryAt
		t.LockedUntil = nil
		t.Error = errMsg
	})
}

func (s *MemoryStorage) FailTask(_ context.Context, taskID uuid.UUID, errMsg string) error {
	return s.update(taskID, func(t *Task) {
		now := s.now()
		t.Status = TaskStatusFailed
		t.LockedUntil = nil
		t.Error = errMsg
		t.ProcessedAt = &now
	})
}

// Tasks returns a snapshot of stored tasks, optionally filtered by status.
func (s *MemoryStorage) Tasks(status ...TaskStatus) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if len(status) > 0 && !slices.Contains(status, t.Status) {
			continue
		}
		out = append(out, *t)
	}
	slices.SortFunc(out, func(a, b Task) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (s *MemoryStorage) update(id uuid.UUID, fn func(*Task)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	fn(t)
	return nil
}
