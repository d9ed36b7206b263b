// Package redis connects to Redis with go-redis/v9 and exposes a readiness
// check for it.
//
// In the billing service Redis holds the webhook deduplication keys: a short
// "processing" lease while an event is handled, then a "done" marker kept for
// the retention window. Losing Redis therefore stops webhook intake, and the
// readiness check reflects that.
//
// # Connecting
//
// Connect parses REDIS_URL with redis.ParseURL and pings the server until it
// answers. Each failed attempt closes its client and waits RetryInterval
// before the next one. ConnectTimeout bounds the whole procedure, including
// the waits:
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	rdb, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer rdb.Close()
//
//	dedup := billing.NewRedisDeduplicator(rdb, 72*time.Hour)
//
// # Health Checks
//
// Healthcheck accepts any redis.UniversalClient, so a cluster or sentinel
// client can be checked the same way as the single-node client Connect
// returns:
//
//	r.Get("/health/ready", httpserver.HealthCheckHandler(log, redis.Healthcheck(rdb)))
//
// # Configuration
//
//	REDIS_URL              connection URL, default redis://localhost:6379/0
//	REDIS_RETRY_ATTEMPTS   ping attempts before giving up, default 3
//	REDIS_RETRY_INTERVAL   delay between attempts, default 5s
//	REDIS_CONNECT_TIMEOUT  upper bound for Connect, default 30s
//
// # Errors
//
// ErrEmptyURL and ErrInvalidURL report configuration mistakes and are
// returned before any network call. ErrNotReady means the server never
// answered. ErrUnavailable comes from Healthcheck. All of them wrap the
// underlying go-redis error where one exists.
package redis
