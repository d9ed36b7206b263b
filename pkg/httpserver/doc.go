// Package httpserver runs an http.Handler with explicit timeouts and a
// graceful shutdown tied to the caller's context.
//
// The billing service runs the server and the queue worker side by side in an
// errgroup. Canceling the shared context (SIGINT or SIGTERM, or a failed
// sibling) stops accepting connections and gives in-flight requests, Stripe
// webhook deliveries included, ShutdownTimeout to finish.
//
// # Usage
//
//	var cfg httpserver.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(func() error { return srv.Run(ctx, router) })
//	g.Go(func() error { return worker.Run(ctx) })
//	return g.Wait()
//
// Run returns nil after a clean shutdown. A listen failure is joined with
// ErrStart and a shutdown that exceeds its budget with ErrShutdown. Calling Run
// again while the server is serving returns ErrAlreadyRunning.
//
// # Options
//
// NewFromConfig translates Config into options and appends the caller's own,
// so explicit options win. Zero durations in Config keep the defaults. The
// With* constructors panic on empty or non-positive values because those are
// programming errors caught at startup.
//
// # Health Endpoints
//
// HealthCheckHandler serves both health endpoints. Without checks it answers 200
// "ALIVE" and is mounted as the liveness endpoint. With checks it runs each
// one under a 3 second timeout and answers 200 "READY" or 503 "NOT_READY" on
// the first failure, logging the failing error:
//
//	r.Get("/health/live", httpserver.HealthCheckHandler(log))
//	r.Get("/health/ready", httpserver.HealthCheckHandler(log,
//		pg.Healthcheck(pool),
//		redis.Healthcheck(rdb),
//	))
//
// # Configuration
//
//	HTTP_ADDR              listen address, default :8080
//	HTTP_READ_TIMEOUT      default 15s
//	HTTP_WRITE_TIMEOUT     default 30s
//	HTTP_IDLE_TIMEOUT      default 120s
//	HTTP_SHUTDOWN_TIMEOUT  default 10s
package httpserver
