package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStorage stores events in the audit_events table.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

const insertEventSQL = `
INSERT INTO audit_events (id, actor_id, action, resource, resource_id, result, error, request_id, metadata, created_at)
VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10)`

func (s *PostgresStorage) Store(ctx context.Context, events ...Event) error {
	batch := &pgx.Batch{}
	for _, e := range events {
		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("%w: metadata: %w", ErrEventValidation, err)
		}
		batch.Queue(insertEventSQL, e.ID, e.ActorID, e.Action, e.Resource, e.ResourceID,
			string(e.Result), e.Error, e.RequestID, meta, e.CreatedAt)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert audit events: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Query(ctx context.Context, c Criteria) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	add("actor_id", c.ActorID)
	add("action", c.Action)
	add("resource", c.Resource)
	add("resource_id", c.ResourceID)

	q := `SELECT id, COALESCE(actor_id, ''), action, COALESCE(resource, ''), COALESCE(resource_id, ''),
	result, COALESCE(error, ''), COALESCE(request_id, ''), metadata, created_at FROM audit_events`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if c.Limit > 0 {
		args = append(args, c.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if c.Offset > 0 {
		args = append(args, c.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			e      Event
			result string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Resource, &e.ResourceID,
			&result, &e.Error, &e.RequestID, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Result = Result(result)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
