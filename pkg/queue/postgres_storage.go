package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage stores tasks in the queue_tasks table.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const createTaskSQL = `
INSERT INTO queue_tasks (id, queue, task_name, payload, status, priority, retry_count, max_retries, scheduled_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

func (s *PostgresStorage) CreateTask(ctx context.Context, task *Task) error {
	_, err := s.pool.Exec(ctx, createTaskSQL,
		task.ID, task.Queue, task.TaskName, task.Payload, string(task.Status),
		int16(task.Priority), task.RetryCount, task.MaxRetries, task.ScheduledAt, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

const claimTaskSQL = `
UPDATE queue_tasks
SET status = 'processing', locked_until = $3, locked_by = $2
WHERE id = (
	SELECT id FROM queue_tasks
	WHERE queue = ANY($1)
	  AND scheduled_at <= now()
	  AND (status = 'pending' OR (status = 'processing' AND locked_until < now()))
	ORDER BY priority DESC, scheduled_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, queue, task_name, payload, status, priority, retry_count, max_retries, scheduled_at, locked_until, created_at`

func (s *PostgresStorage) ClaimTask(ctx context.Context, workerID uuid.UUID, queues []string, lockUntil time.Time) (*Task, error) {
	var (
		t        Task
		status   string
		priority int16
	)
	err := s.pool.QueryRow(ctx, claimTaskSQL, queues, workerID, lockUntil).Scan(
		&t.ID, &t.Queue, &t.TaskName, &t.Payload, &status, &priority,
		&t.RetryCount, &t.MaxRetries, &t.ScheduledAt, &t.LockedUntil, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoTaskToClaim
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	t.Status = TaskStatus(status)
	t.Priority = Priority(priority)
	return &t, nil
}

func (s *PostgresStorage) CompleteTask(ctx context.Context, taskID uuid.UUID) error {
	return s.exec(ctx, `
UPDATE queue_tasks SET status = 'completed', locked_until = NULL, locked_by = NULL, processed_at = now()
WHERE id = $1`, taskID)
}

func (s *PostgresStorage) RetryTask(ctx context.Context, taskID uuid.UUID, retryAt time.Time, errMsg string) error {
	return s.exec(ctx, `
UPDATE queue_tasks SET status = 'pending', retry_count = retry_count + 1, scheduled_at = $2,
	locked_until = NULL, locked_by = NULL, error = $3
WHERE id = $1`, taskID, retryAt, errMsg)
}

func (s *PostgresStorage) FailTask(ctx context.Context, taskID uuid.UUID, errMsg string) error {
	return s.exec(ctx, `
UPDATE queue_tasks SET status = 'failed', locked_until = NULL, locked_by = NULL, error = $2, processed_at = now()
WHERE id = $1`, taskID, errMsg)
}

func (s *PostgresStorage) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}
