// Package pgstore implements the billing stores on PostgreSQL with pgx.
// The schema lives in the top-level migrations package.
package pgstore

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements billing.PlanStore, SubscriptionStore, PaymentStore and
// UserAdminStore over one pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by pool. The schema comes from the migrations package.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows pgx.Rows, scan func(rowScanner) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}
