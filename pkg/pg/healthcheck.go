package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Healthcheck reports whether the billing database accepts queries. The
// check acquires a pooled connection so a pool exhausted by long-running
// queries also fails readiness.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("%w: acquire: %w", ErrHealthcheckFailed, err)
		}
		defer conn.Release()

		if err := conn.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrHealthcheckFailed, err)
		}
		return nil
	}
}
