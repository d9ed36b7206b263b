// Package pg connects the billing service to PostgreSQL through a pgx/v5
// pool and applies the goose migrations embedded in the binary.
//
// The package keeps a small surface on top of pgx and goose/v3. Repositories
// receive the *pgxpool.Pool directly and classify driver errors with the
// helpers below, so no query code depends on this package beyond that.
//
// # Architecture
//
// Three pieces cooperate during startup:
//
//   - Config is populated from PG_* environment variables through
//     github.com/caarlos0/env. It controls pool limits, connection retries,
//     the goose version table and whether migrations run on boot.
//   - Connect parses the connection URL, opens the pool and pings it. A
//     failed ping is retried RetryAttempts times with a delay that grows
//     linearly from RetryInterval, which lets the service start alongside a
//     database container that is still booting.
//   - Migrate bridges the pool to database/sql and runs every pending goose
//     migration from an fs.FS. Goose output is routed into slog under the
//     "migrations" component.
//
// Healthcheck returns a closure suitable for the readiness endpoint. It
// acquires a pooled connection before pinging, so an exhausted pool reports
// not ready as well.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if cfg.AutoMigrate {
//		if err := pg.Migrate(ctx, pool, migrations.FS, ".", cfg, log); err != nil {
//			return err
//		}
//	}
//
//	r.Get("/health/ready", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool)))
//
// # Configuration
//
// PG_CONN_URL is required. Every other variable has a default; see the field
// tags on Config. Set PG_AUTO_MIGRATE=false when migrations are applied by a
// separate deploy step.
//
// # Error Handling
//
// Startup failures are joined with a sentinel (ErrFailedToParseDBConfig,
// ErrFailedToOpenDBConnection, ErrFailedToApplyMigrations) so callers can
// match them with errors.Is while keeping the driver error in the chain.
//
// Store implementations translate driver errors into domain errors:
//
//	switch {
//	case pg.IsNotFoundError(err):
//		return billing.ErrPlanNotFound
//	case pg.IsDuplicateKeyError(err) && pg.ConstraintName(err) == "payments_provider_invoice_key":
//		return billing.ErrDuplicatePayment
//	case pg.IsForeignKeyViolationError(err):
//		return fmt.Errorf("%w: %s", billing.ErrInvalidInput, pg.ConstraintName(err))
//	}
package pg
