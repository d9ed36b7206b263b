// Command billingd serves the billing API, receives Stripe webhooks and
// delivers subscription emails from the background queue.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	httpbilling "github.com/dmitrymomot/saasbilling/modules/billing"
	"github.com/dmitrymomot/saasbilling/migrations"
	"github.com/dmitrymomot/saasbilling/pkg/audit"
	"github.com/dmitrymomot/saasbilling/pkg/billing"
	"github.com/dmitrymomot/saasbilling/pkg/billing/notify"
	"github.com/dmitrymomot/saasbilling/pkg/billing/pgstore"
	"github.com/dmitrymomot/saasbilling/pkg/config"
	"github.com/dmitrymomot/saasbilling/pkg/email"
	"github.com/dmitrymomot/saasbilling/pkg/httpserver"
	"github.com/dmitrymomot/saasbilling/pkg/jwt"
	"github.com/dmitrymomot/saasbilling/pkg/logger"
	"github.com/dmitrymomot/saasbilling/pkg/pg"
	"github.com/dmitrymomot/saasbilling/pkg/queue"
	"github.com/dmitrymomot/saasbilling/pkg/redis"
)

type appConfig struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	Name        string `env:"APP_NAME" envDefault:"billingd"`
	PlanCatalog string `env:"PLAN_CATALOG_PATH"`
	WorkerCount int    `env:"QUEUE_WORKER_CONCURRENCY" envDefault:"2"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	cancel()
	if err != nil {
		slog.Error("billingd stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		app       appConfig
		pgCfg     pg.Config
		redisCfg  redis.Config
		httpCfg   httpserver.Config
		jwtCfg    jwt.Config
		stripeCfg billing.StripeConfig
		billCfg   billing.Config
		emailCfg  email.Config
	)
	if err := errors.Join(
		config.Load(&app),
		config.Load(&pgCfg),
		config.Load(&redisCfg),
		config.Load(&httpCfg),
		config.Load(&jwtCfg),
		config.Load(&stripeCfg),
		config.Load(&billCfg),
		config.Load(&emailCfg),
	); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(app.Env, app.Name),
		logger.WithContextValue("request_id", middleware.RequestIDKey))
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if pgCfg.AutoMigrate {
		if err := pg.Migrate(ctx, pool, migrations.FS, ".", pgCfg, log); err != nil {
			return err
		}
	}

	rdb, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = rdb.Close() }()

	tokens, err := jwt.NewFromConfig(jwtCfg)
	if err != nil {
		return err
	}

	store := pgstore.New(pool)
	auditLog := audit.NewLogger(audit.NewPostgresStorage(pool),
		audit.WithActorExtractor(jwt.ActorID),
		audit.WithRequestIDExtractor(requestID))

	gateway, err := billing.NewStripeGateway(stripeCfg, store, billing.WithLogger(log))
	if err != nil {
		return err
	}

	tasks := queue.NewPostgresStorage(pool)
	enqueuer, err := queue.NewEnqueuer(tasks)
	if err != nil {
		return err
	}
	notifier := notify.NewQueueNotifier(enqueuer)

	opts := []billing.Option{
		billing.WithLogger(log),
		billing.WithNotifier(notifier),
		billing.WithAuditLogger(auditLog),
		billing.WithDeduplicator(billing.NewRedisDeduplicator(rdb, billCfg.EventDedupTTL)),
		billing.WithWebhookTimeout(billCfg.WebhookTimeout),
	}
	plans := billing.NewPlanService(store, gateway, opts...)
	subscriptions := billing.NewSubscriptionService(store, store, store, gateway, billCfg, opts...)
	reconciler := billing.NewReconciler(store, store, store, gateway, opts...)

	if app.PlanCatalog != "" {
		if err := seedCatalog(ctx, plans, app.PlanCatalog, log); err != nil {
			return err
		}
	}

	sender, err := newEmailSender(emailCfg)
	if err != nil {
		return err
	}
	mailer := notify.NewMailer(store, store, sender, emailCfg.SupportEmail, log)
	worker, err := queue.NewWorker(tasks,
		queue.WithQueues(notify.QueueName),
		queue.WithConcurrency(app.WorkerCount),
		queue.WithWorkerLogger(log))
	if err != nil {
		return err
	}
	if err := worker.RegisterHandlers(mailer.Handlers()...); err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/health/live", httpserver.HealthCheckHandler(log))
	r.Get("/health/ready", httpserver.HealthCheckHandler(log, pg.Healthcheck(pool), redis.Healthcheck(rdb)))
	r.Mount("/billing", httpbilling.Router(httpbilling.RouterOptions{
		Plans:         plans,
		Subscriptions: subscriptions,
		Payments:      billing.NewPaymentService(store),
		Webhooks:      reconciler,
		Users:         billing.NewAdminService(store, store, store, opts...),
		Audit:         auditLog,
		Tokens:        tokens,
		Logger:        log,
	}))

	server := httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx, r) })
	g.Go(func() error { return worker.Run(ctx) })
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func seedCatalog(ctx context.Context, plans *billing.PlanService, path string, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open plan catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	inputs, err := billing.LoadPlanCatalog(f)
	if err != nil {
		return err
	}
	created, err := plans.SeedPlans(ctx, inputs)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "plan catalog seeded",
		slog.String("path", path),
		slog.Int("created", created),
		slog.Int("total", len(inputs)))
	return nil
}

func newEmailSender(cfg email.Config) (email.EmailSender, error) {
	if cfg.UsePostmark() {
		return email.NewSender(cfg)
	}
	return email.NewDevSender(cfg.DevDir), nil
}

func requestID(ctx context.Context) (string, bool) {
	id := middleware.GetReqID(ctx)
	return id, id != ""
}
